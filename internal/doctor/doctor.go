package doctor

import (
	"context"
	"fmt"
	"log/slog"
)

// Status is the outcome of one health check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
)

// CheckResult is one named check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Check is a single read-only health probe. Checks are independent and
// unordered.
type Check interface {
	Name() string
	Run(ctx context.Context) CheckResult
}

// Report aggregates a doctor run. Healthy iff no check failed.
type Report struct {
	Results []CheckResult `json:"results"`
	Pass    int           `json:"pass"`
	Fail    int           `json:"fail"`
	Warn    int           `json:"warn"`
	Healthy bool          `json:"healthy"`
}

// Doctor runs a set of checks, isolating each: a panic inside one check is
// recorded as that check's failure, never propagated.
type Doctor struct {
	checks []Check
	logger *slog.Logger
}

// New builds a doctor over the given checks.
func New(logger *slog.Logger, checks ...Check) *Doctor {
	return &Doctor{checks: checks, logger: logger}
}

// Run executes every check and aggregates the report.
func (d *Doctor) Run(ctx context.Context) Report {
	report := Report{}
	for _, check := range d.checks {
		result := d.runIsolated(ctx, check)
		report.Results = append(report.Results, result)
		switch result.Status {
		case StatusPass:
			report.Pass++
		case StatusWarn:
			report.Warn++
		default:
			report.Fail++
		}
		d.logger.Info("doctor check",
			slog.String("name", result.Name),
			slog.String("status", string(result.Status)),
			slog.String("detail", result.Detail),
		)
	}
	report.Healthy = report.Fail == 0
	return report
}

func (d *Doctor) runIsolated(ctx context.Context, check Check) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{
				Name:   check.Name(),
				Status: StatusFail,
				Detail: fmt.Sprintf("check panicked: %v", r),
			}
		}
	}()
	return check.Run(ctx)
}
