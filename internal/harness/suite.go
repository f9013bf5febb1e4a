package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScenarioResult is the outcome of one scenario file in a suite.
type ScenarioResult struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against the scenario file name without
	// extension.
	Filter string

	// Update rewrites golden files instead of comparing them.
	Update bool

	// Run passes options through to Run.
	Run []Option

	// OnResult, if set, is called after each scenario.
	OnResult func(ScenarioResult)
}

// RunSuite runs every scenario under dir.
//
// For each scenario file:
// 1. Load and validate it
// 2. Run it
// 3. Compare with golden/<name>.golden next to it, if present
// 4. Collect the result
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := FindScenarioFiles(dir, opts.Filter)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{Scenarios: make([]ScenarioResult, 0, len(files))}
	for _, path := range files {
		res := runOne(path, opts)
		suite.Scenarios = append(suite.Scenarios, res)
		suite.Total++
		if res.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		if opts.OnResult != nil {
			opts.OnResult(res)
		}
	}
	return suite, nil
}

func runOne(path string, opts SuiteOptions) ScenarioResult {
	res := ScenarioResult{Name: filepath.Base(path), Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := Run(scenario, opts.Run...)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}
	res.Errors = result.Errors

	golden := GoldenPath(path)
	if opts.Update {
		if err := UpdateGolden(golden, scenario.Name, result); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return res
		}
		res.GoldenUpdated = true
	} else if _, err := os.Stat(golden); err == nil {
		match, err := CompareGolden(golden, scenario.Name, result)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		case !match:
			res.Errors = append(res.Errors, "trace does not match golden file")
		}
	}

	res.Pass = len(res.Errors) == 0
	return res
}

// FindScenarioFiles finds all YAML scenario files under dir. Golden
// directories are skipped.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns golden/<name>.golden next to the scenario file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// UpdateGolden writes the canonical snapshot of result to path.
func UpdateGolden(path, name string, result *Result) error {
	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether result matches the golden file at path
// byte for byte.
func CompareGolden(path, name string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := MarshalSnapshot(name, result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal current trace: %w", err)
	}
	return bytes.Equal(bytes.TrimSpace(want), got), nil
}
