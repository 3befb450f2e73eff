// Package prompt holds the fixed instruction texts sent to the model and
// lets them be swapped at runtime without a restart.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrUnknownVariant = errors.New("unknown describe variant")

// Set is one complete, immutable collection of instruction texts.
type Set struct {
	Describe      map[string]string `yaml:"describe"`
	SummaryPrefix string            `yaml:"summary_prefix"`
}

// Defaults returns the built-in set.
func Defaults() *Set {
	set, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in prompts are invalid: %v", err))
	}
	return set
}

// Parse decodes and validates a YAML prompt set.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// LoadFile reads a prompt set from disk.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	return Parse(data)
}

func (s *Set) Validate() error {
	if len(s.Describe) == 0 {
		return errors.New("prompts: at least one describe variant is required")
	}
	for name, text := range s.Describe {
		if strings.TrimSpace(name) == "" {
			return errors.New("prompts: describe variant name must not be empty")
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("prompts: describe variant %q is empty", name)
		}
	}
	if strings.TrimSpace(s.SummaryPrefix) == "" {
		return errors.New("prompts: summary_prefix is required")
	}
	return nil
}

// Store serves the active Set. Reads are lock-free; Replace swaps atomically.
type Store struct {
	current        atomic.Pointer[Set]
	defaultVariant string
}

// NewStore wraps set; defaultVariant must name one of its describe variants.
func NewStore(set *Set, defaultVariant string) (*Store, error) {
	s := &Store{defaultVariant: defaultVariant}
	if err := s.Replace(set); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace installs a new set if it is valid and still has the default variant.
func (s *Store) Replace(set *Set) error {
	if set == nil {
		return errors.New("prompts: nil set")
	}
	if err := set.Validate(); err != nil {
		return err
	}
	if _, ok := set.Describe[s.defaultVariant]; !ok {
		return fmt.Errorf("%w: default %q not in prompt set", ErrUnknownVariant, s.defaultVariant)
	}
	s.current.Store(set)
	return nil
}

// Reload re-reads path and replaces the active set. On error the old set stays.
func (s *Store) Reload(path string) error {
	set, err := LoadFile(path)
	if err != nil {
		return err
	}
	return s.Replace(set)
}

// Describe returns the instruction for variant, or the default variant when empty.
func (s *Store) Describe(variant string) (string, error) {
	if variant == "" {
		variant = s.defaultVariant
	}
	text, ok := s.current.Load().Describe[variant]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return text, nil
}

// SummaryPrefix returns the text prepended to caller-supplied descriptions.
func (s *Store) SummaryPrefix() string {
	return s.current.Load().SummaryPrefix
}

func (s *Store) DefaultVariant() string {
	return s.defaultVariant
}

// Variants lists the describe variant names in sorted order.
func (s *Store) Variants() []string {
	set := s.current.Load()
	names := make([]string, 0, len(set.Describe))
	for name := range set.Describe {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
