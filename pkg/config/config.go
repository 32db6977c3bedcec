package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config holds memory engine settings, loaded from STILLMEM_* environment
// variables with sane defaults.
type Config struct {
	Workspace            string  `env:"STILLMEM_WORKSPACE"`
	RecallLimit          int     `env:"STILLMEM_RECALL_LIMIT" envDefault:"8"`
	WorkingSetCap        int     `env:"STILLMEM_WORKING_SET_CAP" envDefault:"100"`
	DedupeCap            int     `env:"STILLMEM_DEDUPE_CAP" envDefault:"5"`
	DedupeOverlap        float64 `env:"STILLMEM_DEDUPE_OVERLAP" envDefault:"0.70"`
	MinContentLen        int     `env:"STILLMEM_MIN_CONTENT_LEN" envDefault:"12"`
	MaxCandidatesPerTurn int     `env:"STILLMEM_MAX_PER_TURN" envDefault:"3"`
	DefaultConfidence    int     `env:"STILLMEM_DEFAULT_CONFIDENCE" envDefault:"60"`
}

// Load parses the environment and fills in the workspace default
// (~/.stillmem) when unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if cfg.Workspace == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.Workspace = filepath.Join(home, ".stillmem")
	}
	return cfg, nil
}
