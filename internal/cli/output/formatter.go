package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/scenariokit/harness/internal/cli/errors"
	"github.com/scenariokit/harness/internal/domain/harness"
)

type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

type Formatter struct {
	format OutputFormat
	color  bool
	w      io.Writer
}

// NewFormatter writes to w, or stdout when w is nil.
func NewFormatter(format OutputFormat, useColor bool, w io.Writer) *Formatter {
	if w == nil {
		w = os.Stdout
	}
	return &Formatter{
		format: format,
		color:  useColor,
		w:      w,
	}
}

func (f *Formatter) IsJSON() bool { return f.format == FormatJSON }

func (f *Formatter) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f.w, string(data))
	return err
}

func (f *Formatter) FormatError(err errors.ClassifiedError) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(err, "", "  ")
		return string(data)
	}

	var msg string
	if f.color {
		msg = color.RedString("Error [%s]: %s", err.Kind, err.Message)
		if err.Hint != "" {
			msg += "\n" + color.YellowString("Hint: %s", err.Hint)
		}
	} else {
		msg = fmt.Sprintf("Error [%s]: %s", err.Kind, err.Message)
		if err.Hint != "" {
			msg += "\nHint: " + err.Hint
		}
	}
	return msg
}

// ScriptInfo is the listing form of a loaded script.
type ScriptInfo struct {
	Key      string `json:"key"`
	File     string `json:"file"`
	Name     string `json:"name,omitempty"`
	Scenario bool   `json:"scenario"`
}

func NewScriptInfo(e harness.Entry) ScriptInfo {
	info := ScriptInfo{Key: e.Key, File: e.File}
	if e.Scenario != nil {
		info.Name = e.Scenario.Name()
		info.Scenario = true
	}
	// Plain scripts run top to bottom and carry no name.
	if s, ok := e.Scenario.(interface{ IsScenario() bool }); ok {
		info.Scenario = s.IsScenario()
	}
	return info
}

func (f *Formatter) FormatScripts(entries []harness.Entry) error {
	infos := make([]ScriptInfo, len(entries))
	for i, e := range entries {
		infos[i] = NewScriptInfo(e)
	}
	if f.format == FormatJSON {
		return f.writeJSON(infos)
	}

	table := tablewriter.NewTable(f.w,
		tablewriter.WithHeader([]string{"ID", "File", "Scenario"}),
	)
	for _, s := range infos {
		name := s.Name
		if !s.Scenario {
			name = "(script)"
		}
		table.Append([]string{s.Key, s.File, name})
	}
	return table.Render()
}

func (f *Formatter) FormatResults(results []harness.Result) error {
	summary := NewRunSummary(results)
	if f.format == FormatJSON {
		return f.writeJSON(summary)
	}

	table := tablewriter.NewTable(f.w,
		tablewriter.WithHeader([]string{"ID", "Scenario", "Status", "Duration", "Error"}),
	)
	for _, r := range results {
		table.Append([]string{r.Key, r.Name, f.status(r.Passed), roundDuration(r.Duration), r.Error})
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.w, summary.Text())
	return err
}

func (f *Formatter) status(passed bool) string {
	switch {
	case !f.color && passed:
		return "PASS"
	case !f.color:
		return "FAIL"
	case passed:
		return color.GreenString("PASS")
	}
	return color.RedString("FAIL")
}

// FormatContext prints the shared context as JSON in both modes; values are
// structured.
func (f *Formatter) FormatContext(all any) error {
	return f.writeJSON(all)
}

// Info prints a plain status line, suppressed in JSON mode.
func (f *Formatter) Info(format string, args ...any) {
	if f.format == FormatJSON {
		return
	}
	if f.color {
		fmt.Fprintln(f.w, color.CyanString(format, args...))
		return
	}
	fmt.Fprintf(f.w, format+"\n", args...)
}
