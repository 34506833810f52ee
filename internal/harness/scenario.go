package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/larder/internal/queryir"
	"github.com/roach88/larder/internal/testutil"
)

// Scenario defines an end-to-end test scenario: a view, a sequence of
// syncs and view changes, and assertions on the final store and rows.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// View is the initial live query view.
	View ViewSpec `yaml:"view,omitempty"`

	// Steps run in order. Each step does exactly one thing.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store and live query state.
	// Supported types: store_ids, recipe, rows, commit_count, loading
	Assertions []Assertion `yaml:"assertions"`
}

// ViewSpec is the YAML form of a queryir.View.
type ViewSpec struct {
	Sort   string `yaml:"sort,omitempty"`
	Search string `yaml:"search,omitempty"`
}

// Build converts the YAML view into a queryir.View.
func (v ViewSpec) Build() (queryir.View, error) {
	sort, err := queryir.ParseSort(v.Sort)
	if err != nil {
		return queryir.View{}, err
	}
	return queryir.View{Sort: sort, Filter: queryir.Search(v.Search)}, nil
}

// Step is one scenario action. Exactly one of Sync, Sort or Search is set.
type Step struct {
	Sync *SyncStep `yaml:"sync,omitempty"`

	// Sort switches the live query sort order.
	Sort string `yaml:"sort,omitempty"`

	// Search switches the live query filter. An empty string clears it.
	Search *string `yaml:"search,omitempty"`

	// Expect validates the step. If nil, nothing is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// action names the step for traces.
func (s Step) action() string {
	switch {
	case s.Sync != nil:
		return ActionSync
	case s.Sort != "":
		return ActionSort
	default:
		return ActionSearch
	}
}

// SyncStep describes the single response served to one sync cycle.
type SyncStep struct {
	// Recipes are encoded as {"recipes": [...]}.
	Recipes []map[string]any `yaml:"recipes,omitempty"`

	// Error serves {"error": {"message": Error}}.
	Error string `yaml:"error,omitempty"`

	// Payload serves the bytes verbatim.
	Payload string `yaml:"payload,omitempty"`

	// Fail makes the fetch itself fail with this message.
	Fail string `yaml:"fail,omitempty"`
}

// body renders the response body. Fail steps have none.
func (s SyncStep) body() ([]byte, error) {
	switch {
	case s.Payload != "":
		return []byte(s.Payload), nil
	case s.Error != "":
		return testutil.ErrorPayload(s.Error), nil
	}
	recipes := s.Recipes
	if recipes == nil {
		recipes = []map[string]any{}
	}
	return json.Marshal(map[string]any{"recipes": recipes})
}

func (s SyncStep) sources() int {
	n := 0
	if len(s.Recipes) > 0 {
		n++
	}
	for _, v := range []string{s.Error, s.Payload, s.Fail} {
		if v != "" {
			n++
		}
	}
	return n
}

// Expect specifies the expected step result. Nil fields are not checked.
type Expect struct {
	// Error is the expected sync error kind (e.g. "service_rejected").
	// Empty means the sync must succeed.
	Error string `yaml:"error,omitempty"`

	// Message is the expected user-facing error message.
	Message string `yaml:"message,omitempty"`

	Inserted *int `yaml:"inserted,omitempty"`
	Updated  *int `yaml:"updated,omitempty"`
	Dropped  *int `yaml:"dropped,omitempty"`

	// Rows is the expected live query row order after the step.
	Rows []string `yaml:"rows,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "store_ids": stored id set equals IDs
	// - "recipe": recipe ID has the Expect field values (subset match)
	// - "rows": live query rows are exactly IDs, in order
	// - "commit_count": store recorded Count commits
	// - "loading": live query loading flag equals Loading
	Type string `yaml:"type"`

	IDs     []string       `yaml:"ids,omitempty"`
	ID      string         `yaml:"id,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Loading *bool          `yaml:"loading,omitempty"`
}

// Assertion type constants.
const (
	AssertStoreIDs    = "store_ids"
	AssertRecipe      = "recipe"
	AssertRows        = "rows"
	AssertCommitCount = "commit_count"
	AssertLoading     = "loading"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := s.View.Build(); err != nil {
		return fmt.Errorf("view: %w", err)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	set := 0
	if step.Sync != nil {
		set++
	}
	if step.Sort != "" {
		set++
	}
	if step.Search != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of sync, sort or search is required", index)
	}

	if step.Sync != nil && step.Sync.sources() > 1 {
		return fmt.Errorf("steps[%d].sync: at most one of recipes, error, payload or fail", index)
	}
	if step.Sort != "" {
		if _, err := queryir.ParseSort(step.Sort); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	if step.Expect != nil && step.Sync == nil {
		e := step.Expect
		if e.Error != "" || e.Message != "" || e.Inserted != nil || e.Updated != nil || e.Dropped != nil {
			return fmt.Errorf("steps[%d].expect: sync fields on a %s step", index, step.action())
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStoreIDs, AssertRows:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for %s (use [] for none)", index, a.Type)
		}
	case AssertRecipe:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for recipe", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for recipe", index)
		}
	case AssertCommitCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for commit_count", index)
		}
	case AssertLoading:
		if a.Loading == nil {
			return fmt.Errorf("assertions[%d]: loading is required for loading", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
