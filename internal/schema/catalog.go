package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/warehouse"
)

const defaultCacheTTL = 5 * time.Minute

// Catalog exposes the warehouse schema with business annotations layered
// on top. Introspection results are cached because the warehouse is
// opened read-only and its schema does not change under us.
type Catalog struct {
	store      warehouse.Store
	sampleRows int

	mu        sync.Mutex
	tables    []warehouse.TableSchema
	fetchedAt time.Time
	ttl       time.Duration
}

func NewCatalog(store warehouse.Store, sampleRows int) *Catalog {
	if sampleRows <= 0 {
		sampleRows = 3
	}
	return &Catalog{store: store, sampleRows: sampleRows, ttl: defaultCacheTTL}
}

func (c *Catalog) Tables(ctx context.Context) ([]warehouse.TableSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tables != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.tables, nil
	}
	tables, err := c.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect warehouse: %w", err)
	}
	c.tables = tables
	c.fetchedAt = time.Now()
	return tables, nil
}

// TableNames returns the warehouse table names as reported by
// introspection, preserving catalog order.
func (c *Catalog) TableNames(ctx context.Context) ([]string, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	return names, nil
}

// AnnotatedSchema renders the schema with per-table and per-column
// descriptions. Tables without an annotation still appear with their
// columns so the generator can reference them.
func (c *Catalog) AnnotatedSchema(ctx context.Context) (string, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, table := range tables {
		annotation, annotated := annotations[table.Name]
		description := "No description available"
		if annotated && annotation.Description != "" {
			description = annotation.Description
		}
		fmt.Fprintf(&builder, "\n**%s**: %s\n", table.Name, description)
		builder.WriteString("  Columns:\n")
		for _, column := range table.Columns {
			columnDescription := "No description available"
			if annotated {
				if text, ok := annotation.Columns[column.Name]; ok {
					columnDescription = text
				}
			}
			fmt.Fprintf(&builder, "    - %s (%s): %s\n", column.Name, column.Type, columnDescription)
		}
	}
	return builder.String(), nil
}

// SampleData summarizes a few rows from each table. Only shape
// information reaches the prompt, not the row values themselves.
func (c *Catalog) SampleData(ctx context.Context) (string, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, table := range tables {
		result, err := c.store.SampleRows(ctx, table.Name, c.sampleRows)
		if err != nil {
			return "", fmt.Errorf("sample table %s: %w", table.Name, err)
		}
		if len(result.Rows) == 0 {
			continue
		}
		fmt.Fprintf(&builder, "\n%s (sample):\n", table.Name)
		fmt.Fprintf(&builder, "  Columns: %s\n", strings.Join(result.Columns, ", "))
		fmt.Fprintf(&builder, "  Sample rows: %d\n", len(result.Rows))
	}
	return builder.String(), nil
}

// AnnotatedTable is the API-facing view of one warehouse table.
type AnnotatedTable struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Columns     []AnnotatedColumn `json:"columns"`
}

type AnnotatedColumn struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

func (c *Catalog) AnnotatedTables(ctx context.Context) ([]AnnotatedTable, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	annotated := make([]AnnotatedTable, 0, len(tables))
	for _, table := range tables {
		annotation := annotations[table.Name]
		out := AnnotatedTable{Name: table.Name, Description: annotation.Description}
		for _, column := range table.Columns {
			out.Columns = append(out.Columns, AnnotatedColumn{
				Name:        column.Name,
				Type:        column.Type,
				Description: annotation.Columns[column.Name],
			})
		}
		annotated = append(annotated, out)
	}
	return annotated, nil
}

// PromptContext bundles everything the generation prompts need about
// the warehouse.
type PromptContext struct {
	Schema  string
	Samples string
}

func (c *Catalog) PromptContext(ctx context.Context) (PromptContext, error) {
	schemaText, err := c.AnnotatedSchema(ctx)
	if err != nil {
		return PromptContext{}, err
	}
	samples, err := c.SampleData(ctx)
	if err != nil {
		return PromptContext{}, err
	}
	return PromptContext{Schema: schemaText, Samples: samples}, nil
}
