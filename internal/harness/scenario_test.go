package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/larder/internal/queryir"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
view:
  sort: last_updated
  search: soup
steps:
  - sync:
      recipes:
        - uuid: "00000000-0000-4000-8000-000000000001"
          name: Soup
    expect:
      inserted: 1
  - search: ""
assertions:
  - type: commit_count
    count: 1
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Len(t, scenario.Steps, 2)
	assert.Len(t, scenario.Assertions, 1)
	require.NotNil(t, scenario.Steps[0].Sync)
	assert.Equal(t, "Soup", scenario.Steps[0].Sync.Recipes[0]["name"])
	require.NotNil(t, scenario.Steps[0].Expect.Inserted)
	assert.Equal(t, 1, *scenario.Steps[0].Expect.Inserted)
	require.NotNil(t, scenario.Steps[1].Search)
	assert.Equal(t, "", *scenario.Steps[1].Search)

	view, err := scenario.View.Build()
	require.NoError(t, err)
	assert.Equal(t, queryir.ByLastUpdated{}, view.Sort)
	assert.Equal(t, "soup", queryir.SearchText(view.Filter))
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	const header = "name: x\ndescription: y\n"
	const assertions = "assertions:\n  - type: commit_count\n    count: 0\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    header + "stepz: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: y\nsteps:\n  - sort: name\n" + assertions,
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps:\n  - sort: name\n" + assertions,
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    header + assertions,
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    header + "steps:\n  - sort: name\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "bad view sort",
			yaml:    header + "view:\n  sort: random\nsteps:\n  - sort: name\n" + assertions,
			wantErr: "view: unknown sort",
		},
		{
			name:    "empty step",
			yaml:    header + "steps:\n  - expect:\n      rows: []\n" + assertions,
			wantErr: "exactly one of sync, sort or search",
		},
		{
			name:    "two actions in one step",
			yaml:    header + "steps:\n  - sort: name\n    search: soup\n" + assertions,
			wantErr: "exactly one of sync, sort or search",
		},
		{
			name:    "two responses in one sync",
			yaml:    header + "steps:\n  - sync:\n      error: down\n      fail: refused\n" + assertions,
			wantErr: "at most one of recipes, error, payload or fail",
		},
		{
			name:    "bad step sort",
			yaml:    header + "steps:\n  - sort: random\n" + assertions,
			wantErr: "steps[0]: unknown sort",
		},
		{
			name:    "sync expect on sort step",
			yaml:    header + "steps:\n  - sort: name\n    expect:\n      error: transport\n" + assertions,
			wantErr: "sync fields on a sort step",
		},
		{
			name:    "unknown assertion",
			yaml:    header + "steps:\n  - sort: name\nassertions:\n  - type: trace_order\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "store_ids without ids",
			yaml:    header + "steps:\n  - sort: name\nassertions:\n  - type: store_ids\n",
			wantErr: "ids is required for store_ids",
		},
		{
			name:    "recipe without expect",
			yaml:    header + "steps:\n  - sort: name\nassertions:\n  - type: recipe\n    id: a\n",
			wantErr: "expect is required for recipe",
		},
		{
			name:    "loading without value",
			yaml:    header + "steps:\n  - sort: name\nassertions:\n  - type: loading\n",
			wantErr: "loading is required",
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

func TestSyncStep_Body(t *testing.T) {
	body, err := SyncStep{}.body()
	require.NoError(t, err)
	assert.JSONEq(t, `{"recipes": []}`, string(body))

	body, err = SyncStep{Error: "down"}.body()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": {"message": "down"}}`, string(body))

	body, err = SyncStep{Payload: `[1]`}.body()
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(body))

	body, err = SyncStep{Recipes: []map[string]any{{"uuid": "a"}}}.body()
	require.NoError(t, err)
	assert.JSONEq(t, `{"recipes": [{"uuid": "a"}]}`, string(body))
}
