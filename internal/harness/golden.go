package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/queryshift/queryshift/internal/rules"
)

// Snapshot is the deterministic JSON form of a scenario outcome. The
// report's random ID is left out so golden files stay stable.
type Snapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Output       string         `json:"output"`
	Passes       int            `json:"passes"`
	Firings      []rules.Firing `json:"firings"`
	Notes        []rules.Note   `json:"notes,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// RunWithGolden executes a scenario and compares the outcome against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := Snapshot{
		ScenarioName: scenario.Name,
		Output:       result.Output,
		Passes:       result.Report.Passes,
		Firings:      result.Report.Firings,
		Notes:        result.Report.Notes,
		Warnings:     result.Report.Warnings,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
