// Package health runs readiness checks against the storage backend and the
// other dependencies a subreconcile run needs.
//
// A [Report] has a top-level Status ("ok" or "fail") and the outcome of each
// named [Checker], in the order the checkers were given.
package health

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// checkTimeout is the maximum time a single check may take before its
// context is cancelled.
const checkTimeout = 5 * time.Second

const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Checker is a named check. Check returns nil when the dependency is healthy
// and an error describing the failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "storage", "dictionary").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Result is the outcome of one [Checker].
type Result struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Report is the outcome of a [Run].
type Report struct {
	Status string   `json:"status"`
	Checks []Result `json:"checks"`
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return r.Status == StatusOK
}

// WriteJSON writes r to w as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Run evaluates the checkers sequentially in the order provided. Each one is
// given a context with a [checkTimeout] deadline derived from ctx.
func Run(ctx context.Context, checkers ...Checker) Report {
	rep := Report{Status: StatusOK, Checks: make([]Result, 0, len(checkers))}

	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		err := c.Check(cctx)
		cancel()

		res := Result{Name: c.Name, Status: StatusOK, Duration: time.Since(start)}
		if err != nil {
			res.Status = StatusFail
			res.Error = err.Error()
			rep.Status = StatusFail
		}
		rep.Checks = append(rep.Checks, res)
	}
	return rep
}
