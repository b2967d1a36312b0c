package detector

import (
	"fmt"
	"sync"
)

// Config bundles the per-detector threshold sets. Read-only for the
// duration of a scan.
type Config struct {
	Reversal       ReversalConfig       `yaml:"reversal"`
	VolumeBreakout VolumeBreakoutConfig `yaml:"volume_breakout"`
	ShrinkBreakout ShrinkBreakoutConfig `yaml:"shrink_breakout"`
}

// DefaultConfig returns the default thresholds for all three detectors
func DefaultConfig() Config {
	return Config{
		Reversal:       DefaultReversalConfig(),
		VolumeBreakout: DefaultVolumeBreakoutConfig(),
		ShrinkBreakout: DefaultShrinkBreakoutConfig(),
	}
}

// Factory builds a detector from the bundled config
type Factory func(cfg Config) Detector

var (
	registry     = make(map[string]Factory)
	order        []string // registration order, used for deterministic evaluation
	registryLock sync.RWMutex
)

// Register adds a detector factory under a name. Registration order is
// the canonical evaluation and tie-break order.
func Register(name string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, dup := registry[name]; !dup {
		order = append(order, name)
	}
	registry[name] = factory
}

// Get builds a single detector by name
func Get(name string, cfg Config) (Detector, error) {
	registryLock.RLock()
	factory, ok := registry[name]
	registryLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown detector: %s (available: %v)", name, List())
	}
	return factory(cfg), nil
}

// List returns the registered detector names in registration order
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, len(order))
	copy(names, order)
	return names
}

// All builds every registered detector in registration order
func All(cfg Config) []Detector {
	registryLock.RLock()
	defer registryLock.RUnlock()

	detectors := make([]Detector, 0, len(order))
	for _, name := range order {
		detectors = append(detectors, registry[name](cfg))
	}
	return detectors
}

func init() {
	Register("reversal", func(cfg Config) Detector {
		return NewReversalDetector(cfg.Reversal)
	})
	Register("volume_breakout", func(cfg Config) Detector {
		return NewVolumeBreakoutDetector(cfg.VolumeBreakout)
	})
	Register("shrink_breakout", func(cfg Config) Detector {
		return NewShrinkBreakoutDetector(cfg.ShrinkBreakout)
	})
}
