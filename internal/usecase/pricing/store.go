// Package pricing resolves per-model token rates. An optional YAML price
// table can be loaded and watched for changes; reloads swap the table
// atomically, so sessions created before a reload keep their rates.
package pricing

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tokentab-io/tokentab/internal/domain"
)

// Store holds the current price table: default rates plus per-model overrides.
type Store struct {
	mu     sync.RWMutex
	def    domain.Pricing
	models map[string]domain.Pricing
	logger *zap.Logger
}

// New creates a price store. models may be nil.
func New(def domain.Pricing, models map[string]domain.Pricing, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	cp := make(map[string]domain.Pricing, len(models))
	for name, p := range models {
		cp[name] = p
	}
	return &Store{def: def, models: cp, logger: logger}
}

// RatesFor returns the rates for a model, falling back to the default.
func (s *Store) RatesFor(model string) domain.Pricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.models[model]; ok {
		return p
	}
	return s.def
}

// Default returns the fallback rates.
func (s *Store) Default() domain.Pricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def
}

// Models returns a copy of the per-model override table.
func (s *Store) Models() map[string]domain.Pricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]domain.Pricing, len(s.models))
	for name, p := range s.models {
		cp[name] = p
	}
	return cp
}

// tableFile mirrors the price table YAML layout.
type tableFile struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
	Models           map[string]struct {
		InputPerMillion  float64 `yaml:"input_per_million"`
		OutputPerMillion float64 `yaml:"output_per_million"`
	} `yaml:"models"`
}

// LoadFile replaces the table with the file contents. A read or parse
// failure leaves the current table untouched. File-level default rates are
// optional; when absent the current default is kept.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read price table: %w", err)
	}

	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parse price table: %w", err)
	}

	def := domain.Pricing{
		InputPerMillion:  tf.InputPerMillion,
		OutputPerMillion: tf.OutputPerMillion,
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("price table default: %w", err)
	}

	models := make(map[string]domain.Pricing, len(tf.Models))
	for name, m := range tf.Models {
		p := domain.Pricing{
			InputPerMillion:  m.InputPerMillion,
			OutputPerMillion: m.OutputPerMillion,
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("price table model %s: %w", name, err)
		}
		models[name] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if def.InputPerMillion > 0 || def.OutputPerMillion > 0 {
		s.def = def
	}
	s.models = models
	return nil
}
