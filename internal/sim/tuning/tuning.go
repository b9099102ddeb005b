package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz     int   `yaml:"tick_rate_hz"`
	ObserverRadius int   `yaml:"observer_radius"`
	ShifterRange   int   `yaml:"shifter_range"`
	PipeCapacity   int   `yaml:"pipe_capacity"`
	Seed           int64 `yaml:"seed"`

	// MaxTicks stops a run after that many ticks, 0 = run until cancelled.
	MaxTicks uint64 `yaml:"max_ticks"`

	Scenario Scenario `yaml:"scenario"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:     20,
		ObserverRadius: 32,
		ShifterRange:   64,
	}
}

// Normalize fills zero values with defaults and rejects nonsense.
func (t *Tuning) Normalize() error {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.ObserverRadius <= 0 {
		t.ObserverRadius = d.ObserverRadius
	}
	if t.ShifterRange <= 0 {
		t.ShifterRange = d.ShifterRange
	}
	if t.PipeCapacity < 0 {
		return fmt.Errorf("pipe_capacity=%d: must be >= 0", t.PipeCapacity)
	}
	return t.Scenario.validate()
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Normalize(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
