package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr     string             `yaml:"listen_addr"`
	RetentionLimit int                `yaml:"retention_limit"`
	Environments   EnvironmentsConfig `yaml:"environments"`
	Rules          []RuleConfig       `yaml:"rules"`
}

// EnvironmentsConfig names the execution environments the gateway routes
// applies to. Protected environments sit behind a manual deployment gate.
type EnvironmentsConfig struct {
	Protected   string `yaml:"protected"`
	Unprotected string `yaml:"unprotected"`
}

// RuleConfig declares an extra CEL policy rule evaluated after the
// built-in rule set.
type RuleConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Expr        string `yaml:"expr"`
}

func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		RetentionLimit: 256,
		Environments: EnvironmentsConfig{
			Protected:   "protected",
			Unprotected: "unprotected",
		},
	}
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.RetentionLimit < 0 {
		return fmt.Errorf("retention_limit must not be negative")
	}
	if c.Environments.Protected == "" || c.Environments.Unprotected == "" {
		return fmt.Errorf("environments.protected and environments.unprotected are required")
	}
	if c.Environments.Protected == c.Environments.Unprotected {
		return fmt.Errorf("environments.protected and environments.unprotected must differ")
	}

	seen := map[string]bool{}
	for i, rule := range c.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rules[%d].name is required", i)
		}
		if rule.Expr == "" {
			return fmt.Errorf("rules[%d].expr is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rules[%d].name %q is duplicated", i, rule.Name)
		}
		seen[rule.Name] = true
	}
	return nil
}
