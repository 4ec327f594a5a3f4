package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from override variables.
const envPrefix = "RENTADVISOR_"

// Load reads configuration from the YAML file at configPath, then
// overrides with RENTADVISOR_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (RENTADVISOR_ORACLE_API_KEY, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// An empty configPath uses ~/.config/rentadvisor/config.yaml; a missing
// file is not an error, the defaults plus env apply.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "rentadvisor", "config.yaml")
	}

	if content, err := os.ReadFile(configPath); err == nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// transformEnv maps override variables to config keys.
//
// Examples:
//
//	RENTADVISOR_ORACLE_API_KEY          -> oracle.api_key
//	RENTADVISOR_LOGGING_LEVEL           -> logging.level
//	RENTADVISOR_KNOWLEDGE_STORE_PATH    -> knowledge.store.path
//	RENTADVISOR_KNOWLEDGE_EMBEDDER_MODEL -> knowledge.embedder.model
//
// The first underscore separates the section; the knowledge section
// nests one level deeper, so its store/embedder segment splits too.
// Remaining underscores stay in the field name.
func transformEnv(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, field := parts[0], parts[1]

	if section == "knowledge" {
		sub := strings.SplitN(field, "_", 2)
		if len(sub) == 2 && (sub[0] == "store" || sub[0] == "embedder") {
			return section + "." + sub[0] + "." + sub[1]
		}
	}
	return section + "." + field
}
