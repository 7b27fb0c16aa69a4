package script

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// CommandResult is the outcome of one script command.
type CommandResult struct {
	Step        int           `json:"step"`
	Description string        `json:"description,omitempty"`
	Command     string        `json:"command"`
	Payload     string        `json:"payload"`
	ReadAfter   bool          `json:"read_after"`
	Expect      string        `json:"expect,omitempty"`
	ExchangeID  string        `json:"exchange_id,omitempty"`
	Response    string        `json:"response,omitempty"`
	Outcome     string        `json:"outcome"`
	Attempts    int           `json:"attempts,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns,omitempty"`
	Passed      bool          `json:"passed"`
	Error       string        `json:"error,omitempty"`
}

// Report collects the results of running a script against one device.
type Report struct {
	RunID    string          `json:"run_id"`
	Script   string          `json:"script"`
	Device   string          `json:"device"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Total    int             `json:"total"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
	Passed   bool            `json:"passed"`
	Results  []CommandResult `json:"results"`
}

func (r *Report) finish() {
	r.Failed = 0
	for _, res := range r.Results {
		if !res.Passed {
			r.Failed++
		}
	}
	r.Skipped = r.Total - len(r.Results)
	r.Passed = r.Failed == 0 && r.Skipped == 0
}

// SaveReports writes reports to path as indented JSON.
func SaveReports(path string, reports []*Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// LoadReports reads reports saved by SaveReports.
func LoadReports(path string) ([]*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	var reports []*Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return reports, nil
}
