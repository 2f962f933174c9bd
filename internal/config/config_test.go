package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plangate.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":9090\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.ListenAddr)
	}
	if cfg.RetentionLimit != 256 {
		t.Fatalf("expected default retention, got %d", cfg.RetentionLimit)
	}
	if cfg.Environments.Protected != "protected" {
		t.Fatalf("expected default protected env, got %s", cfg.Environments.Protected)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PLANGATE_TEST_ADDR", ":7070")
	path := writeConfig(t, "listen_addr: \"${PLANGATE_TEST_ADDR}\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("expected env expansion, got %s", cfg.ListenAddr)
	}
}

func TestLoadRules(t *testing.T) {
	path := writeConfig(t, `
rules:
  - name: max_blast_radius
    description: plans may touch at most 50 resources
    required: true
    expr: summary.total <= 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Name != "max_blast_radius" || !cfg.Rules[0].Required {
		t.Fatalf("unexpected rules: %+v", cfg.Rules)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"missing listen addr", func(c *Config) { c.ListenAddr = "" }, true},
		{"negative retention", func(c *Config) { c.RetentionLimit = -1 }, true},
		{"missing protected env", func(c *Config) { c.Environments.Protected = "" }, true},
		{"identical environments", func(c *Config) { c.Environments.Unprotected = c.Environments.Protected }, true},
		{"rule without name", func(c *Config) { c.Rules = []RuleConfig{{Expr: "true"}} }, true},
		{"rule without expr", func(c *Config) { c.Rules = []RuleConfig{{Name: "x"}} }, true},
		{"duplicate rule names", func(c *Config) {
			c.Rules = []RuleConfig{{Name: "x", Expr: "true"}, {Name: "x", Expr: "false"}}
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
