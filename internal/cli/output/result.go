package output

import (
	"fmt"
	"time"

	"github.com/scenariokit/harness/internal/domain/harness"
)

// RunSummary aggregates a batch of results.
type RunSummary struct {
	Results []harness.Result `json:"results"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Total   time.Duration    `json:"total_duration"`
}

func NewRunSummary(results []harness.Result) *RunSummary {
	s := &RunSummary{Results: results}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		s.Total += r.Duration
	}
	return s
}

func (s *RunSummary) OK() bool {
	return s.Failed == 0
}

func (s *RunSummary) Text() string {
	return fmt.Sprintf("%d passed, %d failed in %s", s.Passed, s.Failed, roundDuration(s.Total))
}

func roundDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
