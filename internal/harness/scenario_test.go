package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "partial_failure.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "partial_failure", scenario.Name)
	assert.False(t, scenario.Online)
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, "Gateway.failNext", scenario.Setup[0].Action)
	assert.Equal(t, []any{"network"}, scenario.Setup[0].Args["errors"])
	require.Len(t, scenario.Flow, 3)
	assert.Equal(t, "Coordinator.submit", scenario.Flow[0].Invoke)
	assert.Equal(t, "A", scenario.Flow[0].Args["description"])
	require.NotNil(t, scenario.Flow[2].Expect)
	assert.Equal(t, "Changed", scenario.Flow[2].Expect.Case)
	assert.Len(t, scenario.Assertions, 3)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	content := `
name: tmp
description: "temp"
flow:
  - invoke: Coordinator.drain
    args: {}
assertions:
  - type: trace_count
    action: Gateway.createStory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 0, scenario.Assertions[0].Count)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown field",
			yaml: `
name: x
description: x
flwo: []
`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: `
description: x
flow: [{invoke: Coordinator.drain}]
assertions: [{type: trace_count, action: A}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: x
flow: [{invoke: Coordinator.drain}]
assertions: [{type: trace_count, action: A}]
`,
			wantErr: "description is required",
		},
		{
			name: "empty flow",
			yaml: `
name: x
description: x
assertions: [{type: trace_count, action: A}]
`,
			wantErr: "flow list is required",
		},
		{
			name: "no assertions",
			yaml: `
name: x
description: x
flow: [{invoke: Coordinator.drain}]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown flow action",
			yaml: `
name: x
description: x
flow: [{invoke: Cart.addItem}]
assertions: [{type: trace_count, action: A}]
`,
			wantErr: `flow[0]: unknown action "Cart.addItem"`,
		},
		{
			name: "unknown setup action",
			yaml: `
name: x
description: x
setup: [{action: Cart.addItem}]
flow: [{invoke: Coordinator.drain}]
assertions: [{type: trace_count, action: A}]
`,
			wantErr: `setup[0]: unknown action "Cart.addItem"`,
		},
		{
			name: "expect without case",
			yaml: `
name: x
description: x
flow: [{invoke: Coordinator.drain, expect: {result: {synced: 1}}}]
assertions: [{type: trace_count, action: A}]
`,
			wantErr: "flow[0].expect: case is required",
		},
		{
			name: "unknown assertion type",
			yaml: `
name: x
description: x
flow: [{invoke: Coordinator.drain}]
assertions: [{type: eventually}]
`,
			wantErr: `unknown assertion type "eventually"`,
		},
		{
			name: "final_state without expect",
			yaml: `
name: x
description: x
flow: [{invoke: Coordinator.drain}]
assertions: [{type: final_state, table: pending}]
`,
			wantErr: "expect is required for final_state",
		},
		{
			name: "unknown table",
			yaml: `
name: x
description: x
flow: [{invoke: Coordinator.drain}]
assertions: [{type: table_count, table: users}]
`,
			wantErr: `unknown table "users"`,
		},
		{
			name: "trace_order without actions",
			yaml: `
name: x
description: x
flow: [{invoke: Coordinator.drain}]
assertions: [{type: trace_order}]
`,
			wantErr: "actions list is required for trace_order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
