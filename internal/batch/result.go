package batch

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Result contains the results of a complete batch run
type Result struct {
	TotalFiles     int           `yaml:"total_files"`
	ProcessedFiles int           `yaml:"processed_files"`
	SuccessCount   int           `yaml:"success_count"`
	FailureCount   int           `yaml:"failure_count"`
	SkippedCount   int           `yaml:"skipped_count"`
	UnchangedCount int           `yaml:"unchanged_count"`
	Duration       time.Duration `yaml:"duration"`
	Successes      []FileResult  `yaml:"successes"`
	Failures       []FileFailure `yaml:"failures"`
	Skipped        []FileFailure `yaml:"skipped"`
}

// FileResult contains the results of converting a single file
type FileResult struct {
	InputPath  string        `yaml:"input"`
	OutputPath string        `yaml:"output"`
	JobID      string        `yaml:"job_id"`
	PageCount  int           `yaml:"pages"`
	Words      int           `yaml:"words"`
	Confidence float64       `yaml:"confidence"`
	Warnings   []string      `yaml:"warnings,omitempty"`
	StartTime  time.Time     `yaml:"started"`
	Duration   time.Duration `yaml:"duration"`
}

// FileFailure contains information about a file that failed or was skipped
type FileFailure struct {
	InputPath string `yaml:"input"`
	Reason    string `yaml:"reason"`
	Err       error  `yaml:"-"`
}

// NewResult creates a new batch result
func NewResult() *Result {
	return &Result{
		Successes: make([]FileResult, 0),
		Failures:  make([]FileFailure, 0),
		Skipped:   make([]FileFailure, 0),
	}
}

// AddSuccess adds a successful file result
func (r *Result) AddSuccess(result *FileResult) {
	r.Successes = append(r.Successes, *result)
	r.SuccessCount++
}

// AddError adds a failed file
func (r *Result) AddError(path string, err error) {
	r.Failures = append(r.Failures, FileFailure{InputPath: path, Reason: err.Error(), Err: err})
	r.FailureCount++
}

// AddSkipped adds a file that was rejected before conversion
func (r *Result) AddSkipped(path string, err error) {
	r.Skipped = append(r.Skipped, FileFailure{InputPath: path, Reason: err.Error(), Err: err})
	r.SkippedCount++
}

// HasFailures returns true if there were any failures
func (r *Result) HasFailures() bool {
	return r.FailureCount > 0
}

// Summary returns a human-readable summary of the batch result
func (r *Result) Summary() string {
	var sb strings.Builder

	sb.WriteString("Batch Summary:\n")
	fmt.Fprintf(&sb, "  Total Files: %d\n", r.TotalFiles)
	fmt.Fprintf(&sb, "  Processed: %d\n", r.ProcessedFiles)
	fmt.Fprintf(&sb, "  Successful: %d\n", r.SuccessCount)
	fmt.Fprintf(&sb, "  Failed: %d\n", r.FailureCount)
	fmt.Fprintf(&sb, "  Skipped: %d\n", r.SkippedCount)
	fmt.Fprintf(&sb, "  Unchanged: %d\n", r.UnchangedCount)
	fmt.Fprintf(&sb, "  Duration: %v\n", r.Duration)

	if r.HasFailures() {
		sb.WriteString("\nFailures:\n")
		for _, failure := range r.Failures {
			fmt.Fprintf(&sb, "  - %s: %s\n", failure.InputPath, failure.Reason)
		}
	}

	if len(r.Skipped) > 0 {
		sb.WriteString("\nSkipped:\n")
		for _, skipped := range r.Skipped {
			fmt.Fprintf(&sb, "  - %s: %s\n", skipped.InputPath, skipped.Reason)
		}
	}

	return sb.String()
}

// YAML renders the result as a YAML report
func (r *Result) YAML() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch report: %w", err)
	}
	return data, nil
}

// String returns a string representation of the batch result
func (r *Result) String() string {
	return r.Summary()
}
