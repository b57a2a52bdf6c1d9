package config

import "testing"

func TestModelsForLevel(t *testing.T) {
	m := ModelsConfig{Low: "l", Medium: "m", High: "h", Ultra: "u"}

	tests := []struct {
		level, want string
	}{
		{"low", "l"},
		{"medium", "m"},
		{"high", "h"},
		{"ultra", "u"},
		{"", "l"},
		{"nonsense", "l"},
	}
	for _, tt := range tests {
		if got := m.ForLevel(tt.level); got != tt.want {
			t.Errorf("ForLevel(%q) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "enchanter", User: "svc", Password: "pw"}
	want := "postgres://svc:pw@db:5432/enchanter?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Upstream.MaxAttempts != 3 {
		t.Errorf("expected 3 upstream attempts, got %d", cfg.Upstream.MaxAttempts)
	}
	if cfg.Batch.MaxParallel != 10 {
		t.Errorf("expected batch ceiling 10, got %d", cfg.Batch.MaxParallel)
	}
	if cfg.Cache.ResponseTTL >= cfg.Cache.ResearchTTLBasic {
		t.Error("research results should outlive final answers in the cache")
	}
	if cfg.Models.ForLevel("low") == "" {
		t.Error("default model map should cover the low tier")
	}
}
