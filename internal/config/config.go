// Package config provides configuration loading for rentadvisor.
//
// Configuration is loaded from a YAML file with environment variable
// overrides and hardcoded defaults, in that precedence order.
package config

import (
	"fmt"

	"github.com/taxease/rentadvisor/internal/advisor"
	"github.com/taxease/rentadvisor/internal/classifier"
	"github.com/taxease/rentadvisor/internal/knowledge"
	"github.com/taxease/rentadvisor/internal/logging"
	"github.com/taxease/rentadvisor/internal/oracle"
	"github.com/taxease/rentadvisor/internal/research"
)

// Config holds the complete rentadvisor configuration.
type Config struct {
	Logging    logging.Config    `koanf:"logging"`
	Knowledge  KnowledgeConfig   `koanf:"knowledge"`
	Oracle     oracle.Config     `koanf:"oracle"`
	Research   research.Config   `koanf:"research"`
	Classifier classifier.Config `koanf:"classifier"`
	Advisor    advisor.Config    `koanf:"advisor"`
}

// KnowledgeConfig groups the index store and its embedding client.
type KnowledgeConfig struct {
	Store    knowledge.StoreConfig    `koanf:"store"`
	Embedder knowledge.EmbedderConfig `koanf:"embedder"`
}

// applyDefaults fills unset fields across all sections.
func applyDefaults(cfg *Config) {
	cfg.Logging.ApplyDefaults()
	cfg.Knowledge.Store.ApplyDefaults()
	cfg.Knowledge.Embedder.ApplyDefaults()
	cfg.Oracle.ApplyDefaults()
	cfg.Research.ApplyDefaults()
	cfg.Classifier.ApplyDefaults()
	cfg.Advisor.ApplyDefaults()
}

// Validate validates the loaded configuration. The research section is
// only validated when the classifier's fallback-search path is enabled,
// since it is unused otherwise.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Knowledge.Store.Validate(); err != nil {
		return fmt.Errorf("knowledge.store: %w", err)
	}
	if err := c.Knowledge.Embedder.Validate(); err != nil {
		return fmt.Errorf("knowledge.embedder: %w", err)
	}
	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	if c.Classifier.FallbackSearch {
		if err := c.Research.Validate(); err != nil {
			return fmt.Errorf("research: %w", err)
		}
	}
	return nil
}
