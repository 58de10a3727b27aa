package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ValidationError represents a single validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds the result of checking one script file.
type ValidationResult struct {
	Key      string            `json:"key"`
	Name     string            `json:"name,omitempty"`
	Scenario bool              `json:"scenario"`
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []ValidationError `json:"warnings,omitempty"`
}

// Validate compiles src the way the loader does and reports what would go
// wrong when it is run.
func Validate(file, src string) *ValidationResult {
	result := &ValidationResult{Key: KeyFor(file), Valid: true}

	s, err := Compile(file, src)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{"syntax", err.Error()})
		return result
	}
	result.Name, result.Scenario = s.Name(), s.IsScenario()

	switch {
	case looksLikeScenario(src) && !s.IsScenario():
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{"scenario",
			"defines getScenarioName and runScenario but evaluating the file did not yield a scenario object"})
	case !s.IsScenario():
		result.Warnings = append(result.Warnings, ValidationError{"scenario", "no getScenarioName/runScenario; runs as a plain script"})
	case s.Name() == "":
		result.Warnings = append(result.Warnings, ValidationError{"name", "getScenarioName returned an empty name"})
	}

	if !keyPattern.MatchString(filepath.Base(file)) {
		result.Warnings = append(result.Warnings, ValidationError{"file",
			fmt.Sprintf("no numeric prefix; id is %q", result.Key)})
	}
	return result
}

// ValidateFile reads and validates a script file.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Validate(filepath.Base(path), string(data)), nil
}

// ValidateDirectory validates all scripts in a directory, keyed by file
// name. Files sharing an id are flagged since only one can be loaded.
func ValidateDirectory(dir string) (map[string]*ValidationResult, error) {
	results := make(map[string]*ValidationResult)

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	byKey := make(map[string][]string)
	for _, file := range files {
		if file.IsDir() || !isScript(file.Name()) {
			continue
		}

		result, err := ValidateFile(filepath.Join(dir, file.Name()))
		if err != nil {
			result = &ValidationResult{
				Key:    KeyFor(file.Name()),
				Valid:  false,
				Errors: []ValidationError{{Field: "file", Message: err.Error()}},
			}
		}
		results[file.Name()] = result
		byKey[result.Key] = append(byKey[result.Key], file.Name())
	}

	for key, names := range byKey {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		for _, name := range names {
			r := results[name]
			r.Valid = false
			r.Errors = append(r.Errors, ValidationError{"id", fmt.Sprintf("id %s is shared by %v", key, names)})
		}
	}

	return results, nil
}
