package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("sqlpilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Workflow.MaxRetries != 3 {
		t.Fatalf("Workflow.MaxRetries = %d", cfg.Workflow.MaxRetries)
	}
	if cfg.Workflow.MaxResultRows != 50 {
		t.Fatalf("Workflow.MaxResultRows = %d", cfg.Workflow.MaxResultRows)
	}
	if cfg.Warehouse.Path != "chinook.duckdb" {
		t.Fatalf("Warehouse.Path = %q", cfg.Warehouse.Path)
	}
	if cfg.Warehouse.SchemaSampleRows != 3 {
		t.Fatalf("Warehouse.SchemaSampleRows = %d", cfg.Warehouse.SchemaSampleRows)
	}
	if cfg.AI.GeneratorModel != "gpt-5" {
		t.Fatalf("AI.GeneratorModel = %q", cfg.AI.GeneratorModel)
	}
	if cfg.AI.RouterModel != "gpt-5-mini" {
		t.Fatalf("AI.RouterModel = %q", cfg.AI.RouterModel)
	}
	if cfg.History.Enabled {
		t.Fatal("History.Enabled should default to false")
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
	if cfg.Archive.Endpoint != "localhost:9000" {
		t.Fatalf("Archive.Endpoint = %q", cfg.Archive.Endpoint)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"SQLPILOT_PROFILE": "prod"})
	cfg, err := Load("sqlpilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL should default to true in prod")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLPILOT_PROFILE":                  "test",
		"SQLPILOT_SERVICE_NAME":             "sqlpilot-custom",
		"SQLPILOT_HTTP_ADDR":                ":9999",
		"SQLPILOT_HTTP_READ_TIMEOUT":        "2s",
		"SQLPILOT_HTTP_WRITE_TIMEOUT":       "3s",
		"SQLPILOT_LOG_LEVEL":                "error",
		"SQLPILOT_AUTH_REQUIRED":            "true",
		"SQLPILOT_AUTH_STATIC_KEYS":         "k1:query_reader",
		"SQLPILOT_WAREHOUSE_PATH":           "/data/store.duckdb",
		"SQLPILOT_WAREHOUSE_SCHEMA_SAMPLE_ROWS": "7",
		"SQLPILOT_WORKFLOW_MAX_RETRIES":     "5",
		"SQLPILOT_WORKFLOW_MAX_RESULT_ROWS": "200",
		"SQLPILOT_AI_BASE_URL":              "https://api.example.com",
		"SQLPILOT_AI_API_KEY":               "secret-key",
		"SQLPILOT_AI_ROUTER_MODEL":          "fast-1",
		"SQLPILOT_AI_GENERATOR_MODEL":       "big-1",
		"SQLPILOT_AI_REFLECTOR_MODEL":       "fast-2",
		"SQLPILOT_AI_VISUALIZER_MODEL":      "fast-3",
		"SQLPILOT_AI_TEMPERATURE":           "0.3",
		"SQLPILOT_AI_TIMEOUT":               "21s",
		"SQLPILOT_HISTORY_ENABLED":          "true",
		"SQLPILOT_HISTORY_DSN":              "postgres://example",
		"SQLPILOT_HISTORY_MAX_OPEN_CONNS":   "42",
		"SQLPILOT_HISTORY_MAX_IDLE_CONNS":   "17",
		"SQLPILOT_ARCHIVE_ENABLED":          "true",
		"SQLPILOT_ARCHIVE_ENDPOINT":         "s3.example.com",
		"SQLPILOT_ARCHIVE_BUCKET":           "sqlpilot-prod",
		"SQLPILOT_ARCHIVE_REGION":           "us-west-2",
		"SQLPILOT_ARCHIVE_ACCESS_KEY":       "abc",
		"SQLPILOT_ARCHIVE_SECRET_KEY":       "def",
		"SQLPILOT_ARCHIVE_USE_SSL":          "true",
		"SQLPILOT_ARCHIVE_PREFIX":           "results",
		"SQLPILOT_ARCHIVE_AUTO_CREATE_BUCKET": "false",
	})
	cfg, err := Load("sqlpilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "sqlpilot-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:query_reader" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Warehouse.Path != "/data/store.duckdb" {
		t.Fatalf("Warehouse.Path = %q", cfg.Warehouse.Path)
	}
	if cfg.Warehouse.SchemaSampleRows != 7 {
		t.Fatalf("Warehouse.SchemaSampleRows = %d", cfg.Warehouse.SchemaSampleRows)
	}
	if cfg.Workflow.MaxRetries != 5 {
		t.Fatalf("Workflow.MaxRetries = %d", cfg.Workflow.MaxRetries)
	}
	if cfg.Workflow.MaxResultRows != 200 {
		t.Fatalf("Workflow.MaxResultRows = %d", cfg.Workflow.MaxResultRows)
	}
	if cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.RouterModel != "fast-1" {
		t.Fatalf("AI.RouterModel = %q", cfg.AI.RouterModel)
	}
	if cfg.AI.GeneratorModel != "big-1" {
		t.Fatalf("AI.GeneratorModel = %q", cfg.AI.GeneratorModel)
	}
	if cfg.AI.ReflectorModel != "fast-2" {
		t.Fatalf("AI.ReflectorModel = %q", cfg.AI.ReflectorModel)
	}
	if cfg.AI.VisualizerModel != "fast-3" {
		t.Fatalf("AI.VisualizerModel = %q", cfg.AI.VisualizerModel)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if !cfg.History.Enabled {
		t.Fatal("History.Enabled = false, want true")
	}
	if cfg.History.DSN != "postgres://example" {
		t.Fatalf("History.DSN = %q", cfg.History.DSN)
	}
	if cfg.History.MaxOpenConns != 42 {
		t.Fatalf("History.MaxOpenConns = %d", cfg.History.MaxOpenConns)
	}
	if cfg.History.MaxIdleConns != 17 {
		t.Fatalf("History.MaxIdleConns = %d", cfg.History.MaxIdleConns)
	}
	if !cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled = false, want true")
	}
	if cfg.Archive.Endpoint != "s3.example.com" {
		t.Fatalf("Archive.Endpoint = %q", cfg.Archive.Endpoint)
	}
	if cfg.Archive.Bucket != "sqlpilot-prod" {
		t.Fatalf("Archive.Bucket = %q", cfg.Archive.Bucket)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL = false, want true")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket = true, want false")
	}
	if cfg.Archive.Prefix != "results" {
		t.Fatalf("Archive.Prefix = %q", cfg.Archive.Prefix)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLPILOT_PROFILE": "oops"},
		{"SQLPILOT_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLPILOT_WORKFLOW_MAX_RETRIES": "oops"},
		{"SQLPILOT_WORKFLOW_MAX_RETRIES": "0"},
		{"SQLPILOT_WORKFLOW_MAX_RESULT_ROWS": "0"},
		{"SQLPILOT_HISTORY_MAX_OPEN_CONNS": "oops"},
		{"SQLPILOT_AI_TEMPERATURE": "bad"},
		{"SQLPILOT_AI_TIMEOUT": "bad"},
		{"SQLPILOT_AUTH_REQUIRED": "not-bool"},
		{"SQLPILOT_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("sqlpilot-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
