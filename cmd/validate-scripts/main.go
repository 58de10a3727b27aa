// Command validate-scripts checks scenario scripts without running them.
//
// Usage:
//
//	validate-scripts [options] [path...]
//
// If no paths are provided, validates ./scripts by default.
//
// Options:
//
//	-strict     Treat warnings as errors
//	-json       Output results as JSON
//	-quiet      Only output errors
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/scenariokit/harness/internal/domain/script"
)

var (
	strict = false
	asJSON = false
	quiet  = false
)

func main() {
	fs := flag.NewFlagSet("validate-scripts", flag.ExitOnError)
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.BoolVar(&asJSON, "json", false, "Output results as JSON")
	fs.BoolVar(&quiet, "quiet", false, "Only output errors")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	exitCode := run(os.Stdout, fs.Args(), strict, asJSON, quiet)
	os.Exit(exitCode)
}

func run(w io.Writer, paths []string, strict, asJSON, quiet bool) int {
	if len(paths) == 0 {
		paths = []string{"scripts"}
	}

	exitCode := 0
	allResults := make(map[string]*script.ValidationResult)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			exitCode = 1
			continue
		}

		if info.IsDir() {
			results, err := script.ValidateDirectory(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error validating directory %s: %v\n", path, err)
				exitCode = 1
				continue
			}
			for name, result := range results {
				allResults[filepath.Join(path, name)] = result
			}
		} else {
			result, err := script.ValidateFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error validating file %s: %v\n", path, err)
				exitCode = 1
				continue
			}
			allResults[path] = result
		}
	}

	if asJSON {
		outputJSON(w, allResults)
	} else {
		outputText(w, allResults, quiet, strict)
	}

	for _, result := range allResults {
		if !result.Valid {
			exitCode = 1
		}
		if strict && len(result.Warnings) > 0 {
			exitCode = 1
		}
	}

	return exitCode
}

func outputJSON(w io.Writer, results map[string]*script.ValidationResult) {
	output := struct {
		Results map[string]*script.ValidationResult `json:"results"`
		Summary struct {
			Total   int `json:"total"`
			Valid   int `json:"valid"`
			Invalid int `json:"invalid"`
		} `json:"summary"`
	}{
		Results: results,
	}

	for _, r := range results {
		output.Summary.Total++
		if r.Valid {
			output.Summary.Valid++
		} else {
			output.Summary.Invalid++
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

func outputText(w io.Writer, results map[string]*script.ValidationResult, quiet, strict bool) {
	validCount := 0
	invalidCount := 0

	paths := make([]string, 0, len(results))
	for path := range results {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		result := results[path]
		if result.Valid && len(result.Warnings) == 0 && quiet {
			validCount++
			continue
		}

		if result.Valid {
			validCount++
			if !quiet {
				fmt.Fprintf(w, "✓ %s [%s] %s\n", path, result.Key, result.Name)
			}
		} else {
			invalidCount++
			fmt.Fprintf(w, "✗ %s\n", path)
		}

		for _, err := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s: %s\n", err.Field, err.Message)
		}

		if !quiet || strict {
			for _, warn := range result.Warnings {
				fmt.Fprintf(w, "  WARN:  %s: %s\n", warn.Field, warn.Message)
			}
		}
	}

	if !quiet {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Summary: %d valid, %d invalid\n", validCount, invalidCount)
	}
}
