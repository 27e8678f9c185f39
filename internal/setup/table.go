package setup

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transition is one changeover entry: minutes of lost line time and its
// direct cost.
type Transition struct {
	Minutes int     `yaml:"minutes"`
	Cost    float64 `yaml:"cost"`
}

// Table resolves changeover transitions from a per-process compatibility
// table. Keyed process type -> from key -> to key.
type Table struct {
	entries map[string]map[string]map[string]Transition
}

// tableFile is the YAML layout:
//
//	process_types:
//	  ASSEMBLY:
//	    transitions:
//	      - from: red/std
//	        to: blue/std
//	        minutes: 25
//	        cost: 50
type tableFile struct {
	ProcessTypes map[string]struct {
		Transitions []struct {
			From       string  `yaml:"from"`
			To         string  `yaml:"to"`
			Minutes    int     `yaml:"minutes"`
			Cost       float64 `yaml:"cost"`
			Symmetric  bool    `yaml:"symmetric,omitempty"`
		} `yaml:"transitions"`
	} `yaml:"process_types"`
}

// Load reads a setup table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read setup table: %w", err)
	}
	return Parse(data)
}

// Parse builds a table from YAML bytes.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse setup table: %w", err)
	}

	t := &Table{entries: make(map[string]map[string]map[string]Transition)}
	for pt, def := range f.ProcessTypes {
		for _, tr := range def.Transitions {
			if tr.From == "" || tr.To == "" {
				return nil, fmt.Errorf("process type %s: transition needs both from and to", pt)
			}
			if tr.Minutes < 0 || tr.Cost < 0 {
				return nil, fmt.Errorf("process type %s: negative transition %s -> %s", pt, tr.From, tr.To)
			}
			t.add(pt, tr.From, tr.To, Transition{Minutes: tr.Minutes, Cost: tr.Cost})
			if tr.Symmetric {
				t.add(pt, tr.To, tr.From, Transition{Minutes: tr.Minutes, Cost: tr.Cost})
			}
		}
	}
	return t, nil
}

func (t *Table) add(processType, from, to string, tr Transition) {
	if t.entries[processType] == nil {
		t.entries[processType] = make(map[string]map[string]Transition)
	}
	if t.entries[processType][from] == nil {
		t.entries[processType][from] = make(map[string]Transition)
	}
	t.entries[processType][from][to] = tr
}

// SetupMinutes resolves a changeover. Identical keys never cost anything,
// regardless of table contents.
func (t *Table) SetupMinutes(processType, fromKey, toKey string) (int, float64, bool) {
	if fromKey == toKey {
		return 0, 0, true
	}
	tr, ok := t.entries[processType][fromKey][toKey]
	if !ok {
		return 0, 0, false
	}
	return tr.Minutes, tr.Cost, true
}

// Heuristic estimates changeovers from key structure when no table is
// configured. Keys are "/"-separated attribute lists (for example
// "red/std/frameA"); each differing attribute adds a fixed penalty.
type Heuristic struct {
	MinutesPerChange int
	CostPerChange    float64
}

// Default returns the fallback lookup used when no setup table file is
// configured.
func Default() *Heuristic {
	return &Heuristic{MinutesPerChange: 15, CostPerChange: 30}
}

func (h *Heuristic) SetupMinutes(processType, fromKey, toKey string) (int, float64, bool) {
	if fromKey == toKey {
		return 0, 0, true
	}
	from := strings.Split(fromKey, "/")
	to := strings.Split(toKey, "/")

	changes := 0
	n := len(from)
	if len(to) > n {
		n = len(to)
	}
	for i := 0; i < n; i++ {
		var f, s string
		if i < len(from) {
			f = from[i]
		}
		if i < len(to) {
			s = to[i]
		}
		if f != s {
			changes++
		}
	}
	return changes * h.MinutesPerChange, float64(changes) * h.CostPerChange, true
}
