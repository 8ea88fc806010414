package agent

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/factory-sim/factory-sim/sim"
)

// The value table persists in two interchangeable forms: a gob dump for
// same-binary reuse and a portable two-array JSON layout (state-key strings
// plus a dense value matrix) for cross-language consumers.

// portableTable is the on-disk layout of the portable form. QValues rows
// align with StateKeys by index; columns are action indices.
type portableTable struct {
	StateKeys []string    `json:"state_keys"`
	QValues   [][]float64 `json:"q_values"`
}

// SaveTable writes the native gob dump.
func (q *QLearning) SaveTable(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save value table: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(q.table); err != nil {
		return fmt.Errorf("save value table: %w", err)
	}
	return nil
}

// LoadTable reads a gob dump written by SaveTable, replacing the current
// table. A missing or malformed file is a fatal condition for the caller;
// the table is left untouched on error.
func (q *QLearning) LoadTable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load value table: %w", err)
	}
	defer f.Close()
	table := make(map[string][]float64)
	if err := gob.NewDecoder(f).Decode(&table); err != nil {
		return fmt.Errorf("load value table: %w", err)
	}
	for key, row := range table {
		if _, err := sim.ParseStateKey(key); err != nil {
			return fmt.Errorf("load value table: %w", err)
		}
		if len(row) != q.cfg.NumActions {
			return fmt.Errorf("load value table: state %q has %d actions, want %d", key, len(row), q.cfg.NumActions)
		}
	}
	q.table = table
	return nil
}

// SavePortable writes the portable two-array form. Keys are sorted so the
// file is reproducible for a given table.
func (q *QLearning) SavePortable(path string) error {
	keys := make([]string, 0, len(q.table))
	for key := range q.table {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make([][]float64, len(keys))
	for i, key := range keys {
		row := make([]float64, q.cfg.NumActions)
		copy(row, q.table[key])
		values[i] = row
	}

	data, err := json.MarshalIndent(portableTable{StateKeys: keys, QValues: values}, "", " ")
	if err != nil {
		return fmt.Errorf("save portable table: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save portable table: %w", err)
	}
	return nil
}

// LoadPortable reads a portable file, parsing every state-key string back
// into its structured form and keeping only states with at least one
// non-zero entry. The current table is replaced; on any error it is left
// untouched.
func (q *QLearning) LoadPortable(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load portable table: %w", err)
	}
	var pt portableTable
	if err := json.Unmarshal(data, &pt); err != nil {
		return fmt.Errorf("load portable table: %w", err)
	}
	if len(pt.StateKeys) != len(pt.QValues) {
		return fmt.Errorf("load portable table: %d keys but %d value rows", len(pt.StateKeys), len(pt.QValues))
	}

	table := make(map[string][]float64, len(pt.StateKeys))
	for i, key := range pt.StateKeys {
		parsed, err := sim.ParseStateKey(key)
		if err != nil {
			return fmt.Errorf("load portable table: %w", err)
		}
		row := pt.QValues[i]
		if len(row) != q.cfg.NumActions {
			return fmt.Errorf("load portable table: state %q has %d actions, want %d", key, len(row), q.cfg.NumActions)
		}
		nonZero := false
		for _, v := range row {
			if v != 0 {
				nonZero = true
				break
			}
		}
		if !nonZero {
			continue
		}
		stored := make([]float64, q.cfg.NumActions)
		copy(stored, row)
		table[parsed.Encode()] = stored
	}
	q.table = table
	return nil
}
