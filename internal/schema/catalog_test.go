package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/warehouse"
)

type fakeStore struct {
	tables    []warehouse.TableSchema
	samples   map[string]warehouse.Result
	listCalls int
}

func (f *fakeStore) ListTables(context.Context) ([]warehouse.TableSchema, error) {
	f.listCalls++
	return f.tables, nil
}

func (f *fakeStore) SampleRows(_ context.Context, table string, _ int) (warehouse.Result, error) {
	return f.samples[table], nil
}

func (f *fakeStore) PlanCheck(context.Context, string) error { return nil }

func (f *fakeStore) Execute(context.Context, string, int) (warehouse.Result, error) {
	return warehouse.Result{}, nil
}

func (f *fakeStore) HealthCheck(context.Context) error { return nil }

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: []warehouse.TableSchema{
			{Name: "Artist", Columns: []warehouse.Column{
				{Name: "ArtistId", Type: "INTEGER"},
				{Name: "Name", Type: "VARCHAR"},
			}},
			{Name: "Staging", Columns: []warehouse.Column{
				{Name: "payload", Type: "VARCHAR"},
			}},
		},
		samples: map[string]warehouse.Result{
			"Artist": {Columns: []string{"ArtistId", "Name"}, Rows: [][]any{{int64(1), "AC/DC"}, {int64(2), "Accept"}}},
		},
	}
}

func TestAnnotatedSchemaIncludesDescriptions(t *testing.T) {
	catalog := NewCatalog(newFakeStore(), 3)

	text, err := catalog.AnnotatedSchema(context.Background())
	if err != nil {
		t.Fatalf("AnnotatedSchema() error = %v", err)
	}
	if !strings.Contains(text, "**Artist**: Music artists and bands") {
		t.Fatalf("missing table annotation in %q", text)
	}
	if !strings.Contains(text, "ArtistId (INTEGER): Unique identifier for each artist") {
		t.Fatalf("missing column annotation in %q", text)
	}
	if !strings.Contains(text, "**Staging**: No description available") {
		t.Fatalf("unannotated table should still appear, got %q", text)
	}
}

func TestSampleDataSkipsEmptyTables(t *testing.T) {
	catalog := NewCatalog(newFakeStore(), 3)

	text, err := catalog.SampleData(context.Background())
	if err != nil {
		t.Fatalf("SampleData() error = %v", err)
	}
	if !strings.Contains(text, "Artist (sample):") {
		t.Fatalf("missing sample section in %q", text)
	}
	if !strings.Contains(text, "Sample rows: 2") {
		t.Fatalf("missing row count in %q", text)
	}
	if strings.Contains(text, "Staging") {
		t.Fatalf("empty table should be skipped, got %q", text)
	}
}

func TestTablesCachesIntrospection(t *testing.T) {
	store := newFakeStore()
	catalog := NewCatalog(store, 3)

	if _, err := catalog.Tables(context.Background()); err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if _, err := catalog.TableNames(context.Background()); err != nil {
		t.Fatalf("TableNames() error = %v", err)
	}
	if store.listCalls != 1 {
		t.Fatalf("listCalls = %d, want 1", store.listCalls)
	}
}
