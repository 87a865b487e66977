package limits

import (
	"fmt"
	"regexp"
	"time"

	"looper/internal/models"
)

// StopReason identifies which budget, if any, ended the loop.
type StopReason string

const (
	ReasonNone       StopReason = ""
	ReasonIterations StopReason = "max_iterations"
	ReasonDuration   StopReason = "max_duration"
	ReasonCost       StopReason = "max_cost"
)

// Limits holds the per-run budgets. MaxDuration and MaxCostUSD are
// optional: the zero value means that check always passes.
type Limits struct {
	MaxIterations int
	MaxDuration   time.Duration
	MaxCostUSD    float64
}

// durationExpr accepts expressions built from hour/minute/second
// components, e.g. "2h30m", "90m", "1h", "45s".
var durationExpr = regexp.MustCompile(`^(\d+h)?(\d+m)?(\d+s)?$`)

// ParseMaxDuration parses a wall-clock budget expression. Only h/m/s
// components are allowed; anything else is an error.
func ParseMaxDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	m := durationExpr.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("invalid duration %q: expected hour/minute/second components like 2h30m", s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Evaluate decides whether the loop may run another iteration. The
// three checks are independent and ANDed; the first failing one is
// reported so logs can name the exhausted budget. Whether stopping is
// a success or not is the controller's call, not ours.
func Evaluate(sess *models.Session, l Limits) (bool, StopReason) {
	return evaluateAt(sess, l, time.Now().UTC())
}

func evaluateAt(sess *models.Session, l Limits, now time.Time) (bool, StopReason) {
	if sess.Iteration >= l.MaxIterations {
		return false, ReasonIterations
	}
	if l.MaxDuration > 0 && now.Sub(sess.StartedAt) >= l.MaxDuration {
		return false, ReasonDuration
	}
	// Cost is advisory: if nothing has been observed yet there is no
	// number to compare against, so the check passes.
	if l.MaxCostUSD > 0 && sess.TotalCostUSD > 0 && sess.TotalCostUSD >= l.MaxCostUSD {
		return false, ReasonCost
	}
	return true, ReasonNone
}
