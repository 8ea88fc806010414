package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_GobRoundTrip(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	q.Update(testState(0), 2, 5.0, testState(1), true, 0)
	q.Update(testState(1), 4, -3.0, testState(2), true, 0)
	path := filepath.Join(t.TempDir(), "qtable.gob")
	require.NoError(t, q.SaveTable(path))

	loaded := mustAgent(t, testAgentConfig(), 2)
	require.NoError(t, loaded.LoadTable(path))
	assert.Equal(t, q.NumStates(), loaded.NumStates())
	assert.InDelta(t, q.Value(testState(0), 2), loaded.Value(testState(0), 2), 1e-12)
	assert.InDelta(t, q.Value(testState(1), 4), loaded.Value(testState(1), 4), 1e-12)
}

func TestPersistence_PortableRoundTrip(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	q.Update(testState(0), 2, 5.0, testState(1), true, 0)
	q.Update(testState(3), 6, 1.5, testState(2), true, 0)
	path := filepath.Join(t.TempDir(), "qtable.json")
	require.NoError(t, q.SavePortable(path))

	loaded := mustAgent(t, testAgentConfig(), 2)
	require.NoError(t, loaded.LoadPortable(path))
	assert.Equal(t, 2, loaded.NumStates())
	assert.InDelta(t, q.Value(testState(0), 2), loaded.Value(testState(0), 2), 1e-12)
	assert.InDelta(t, q.Value(testState(3), 6), loaded.Value(testState(3), 6), 1e-12)
}

func TestPersistence_PortableLayout(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	q.Update(testState(1), 0, 2.0, testState(0), true, 0)
	q.Update(testState(0), 0, 1.0, testState(1), true, 0)
	path := filepath.Join(t.TempDir(), "qtable.json")
	require.NoError(t, q.SavePortable(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var pt struct {
		StateKeys []string    `json:"state_keys"`
		QValues   [][]float64 `json:"q_values"`
	}
	require.NoError(t, json.Unmarshal(data, &pt))
	require.Len(t, pt.StateKeys, 2)
	require.Len(t, pt.QValues, 2)
	assert.Less(t, pt.StateKeys[0], pt.StateKeys[1], "keys are written sorted")
	for _, row := range pt.QValues {
		assert.Len(t, row, q.cfg.NumActions)
	}
}

func TestPersistence_PortableDropsAllZeroRows(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	q.ensureRow(testState(0).Encode()) // never written, stays all zero
	q.Update(testState(1), 1, 3.0, testState(2), true, 0)
	path := filepath.Join(t.TempDir(), "qtable.json")
	require.NoError(t, q.SavePortable(path))

	loaded := mustAgent(t, testAgentConfig(), 2)
	require.NoError(t, loaded.LoadPortable(path))
	assert.Equal(t, 1, loaded.NumStates())
	assert.InDelta(t, q.Value(testState(1), 1), loaded.Value(testState(1), 1), 1e-12)
}

func TestPersistence_MissingFile(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	assert.Error(t, q.LoadTable(filepath.Join(t.TempDir(), "nope.gob")))
	assert.Error(t, q.LoadPortable(filepath.Join(t.TempDir(), "nope.json")))
}

func TestPersistence_MalformedPortableLeavesTableUntouched(t *testing.T) {
	q := mustAgent(t, testAgentConfig(), 1)
	q.Update(testState(0), 0, 1.0, testState(1), true, 0)

	dir := t.TempDir()
	cases := map[string]string{
		"not-json.json":  `{{{`,
		"length.json":    `{"state_keys": ["M0;P1;S0;T3;G3;A111111;K210121;U0000"], "q_values": []}`,
		"bad-key.json":   `{"state_keys": ["garbage"], "q_values": [[1,0,0,0,0,0,0]]}`,
		"short-row.json": `{"state_keys": ["M0;P1;S0;T3;G3;A111111;K210121;U0000"], "q_values": [[1,2]]}`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		assert.Error(t, q.LoadPortable(path), name)
		assert.Equal(t, 1, q.NumStates(), "table must survive a failed load")
	}
}
