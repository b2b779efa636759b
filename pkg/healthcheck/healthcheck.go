// Package healthcheck inspects the local tabcat setup and reports what
// is working. Each Runner signals its outcome through a serum error
// code: okay, ambiguous (informational), or fail.
package healthcheck

import (
	"context"
	"fmt"
	"io"

	"github.com/serum-errors/go-serum"
)

const (
	CodeRunOkay      = "tabcat-healthcheck-run-okay"
	CodeRunAmbiguous = "tabcat-healthcheck-run-ambiguous"
	CodeRunFailure   = "tabcat-healthcheck-run-fail"
)

// Runner is a single check. Run never returns nil: the result, good or
// bad, rides on the error's serum code.
type Runner interface {
	fmt.Stringer
	Run(ctx context.Context) error
}

// HealthCheck runs a list of checks and collects their outcomes.
type HealthCheck struct {
	Runners []Runner
	Results []Result
}

type Result struct {
	Runner  Runner
	Outcome error
}

// Run executes every runner in order. Only a panic-level problem stops
// the sweep; individual failures are recorded and reported by Fprint.
func (hc *HealthCheck) Run(ctx context.Context) error {
	hc.Results = hc.Results[:0]
	for _, r := range hc.Runners {
		hc.Results = append(hc.Results, Result{Runner: r, Outcome: r.Run(ctx)})
	}
	return nil
}

// Fprint writes a human-readable report of the collected results.
func (hc *HealthCheck) Fprint(w io.Writer) error {
	for _, res := range hc.Results {
		status := "????"
		switch serum.Code(res.Outcome) {
		case CodeRunOkay:
			status = " ok "
		case CodeRunAmbiguous:
			status = "info"
		case CodeRunFailure:
			status = "FAIL"
		}
		msg := ""
		if res.Outcome != nil {
			msg = serum.Message(res.Outcome)
		}
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", status, res.Runner, msg); err != nil {
			return err
		}
	}
	return nil
}

// Failed reports whether any check ended in failure.
func (hc *HealthCheck) Failed() bool {
	for _, res := range hc.Results {
		if serum.Code(res.Outcome) == CodeRunFailure {
			return true
		}
	}
	return false
}
