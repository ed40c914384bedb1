package game

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Tables are the static payout tables for table-driven games
type Tables struct {
	// risk -> rows -> bucket multipliers
	Plinko map[string]map[int][]float64 `yaml:"plinko" json:"plinko"`
	// risk -> picks -> multiplier by hits
	Keno map[string]map[int][]float64 `yaml:"keno" json:"keno"`
	// risk -> segments -> multiplier by segment
	Wheel map[string]map[int][]float64 `yaml:"wheel" json:"wheel"`
	Slots SlotsTable                   `yaml:"slots" json:"slots"`
}

// SlotsTable is the reel strip and paytable for slots
type SlotsTable struct {
	Strip []string `yaml:"strip" json:"strip"`
	// symbol -> multiplier for three of a kind
	Three map[string]float64 `yaml:"three" json:"three"`
	// cherry count -> multiplier when not three of a kind
	Cherries map[int]float64 `yaml:"cherries" json:"cherries"`
}

// DefaultTables parses the embedded tables
func DefaultTables() (*Tables, error) {
	return ParseTables(defaultTablesYAML)
}

// LoadTables reads tables from a yaml file
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payout tables: %w", err)
	}
	return ParseTables(data)
}

// ParseTables decodes and validates yaml payout tables
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse payout tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every table has the shape its game expects
func (t *Tables) Validate() error {
	for risk, rows := range t.Plinko {
		for n, buckets := range rows {
			if n < PlinkoMinRows || n > PlinkoMaxRows {
				return fmt.Errorf("plinko %s: rows %d out of range", risk, n)
			}
			if len(buckets) != n+1 {
				return fmt.Errorf("plinko %s rows %d: expected %d buckets, got %d", risk, n, n+1, len(buckets))
			}
		}
	}
	for risk, picks := range t.Keno {
		for n, hits := range picks {
			if n < 1 || n > KenoMaxPicks {
				return fmt.Errorf("keno %s: picks %d out of range", risk, n)
			}
			if len(hits) != n+1 {
				return fmt.Errorf("keno %s picks %d: expected %d entries, got %d", risk, n, n+1, len(hits))
			}
		}
	}
	for risk, segs := range t.Wheel {
		for n, values := range segs {
			if n < 1 {
				return fmt.Errorf("wheel %s: segments %d out of range", risk, n)
			}
			if len(values) != n {
				return fmt.Errorf("wheel %s segments %d: expected %d entries, got %d", risk, n, n, len(values))
			}
		}
	}
	if len(t.Slots.Strip) == 0 {
		return fmt.Errorf("slots strip is empty")
	}
	for _, symbol := range t.Slots.Strip {
		if _, ok := t.Slots.Three[symbol]; !ok {
			return fmt.Errorf("slots symbol %q has no three-of-a-kind payout", symbol)
		}
	}
	return nil
}

func tableRow(tables map[string]map[int][]float64, game, risk string, n int) ([]float64, error) {
	byRisk, ok := tables[risk]
	if !ok {
		return nil, invalid("unknown %s risk: %s", game, risk)
	}
	row, ok := byRisk[n]
	if !ok {
		return nil, invalid("no %s table for risk %s and %d", game, risk, n)
	}
	return row, nil
}

func maxOf(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
