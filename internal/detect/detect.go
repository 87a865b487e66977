package detect

import (
	"regexp"
	"strconv"
)

// DefaultPhrase is the literal the agent is instructed to emit when it
// believes the task is done.
const DefaultPhrase = "TASK_COMPLETE"

// DefaultThreshold is how many consecutive iterations must contain the
// phrase before the loop trusts the claim. Requiring two affirmations
// in a row guards against an agent spuriously declaring victory once.
const DefaultThreshold = 2

// Detector tracks consecutive completion-phrase sightings across
// iterations. Not safe for concurrent use; the loop is sequential.
type Detector struct {
	phrase    *regexp.Regexp
	threshold int
	count     int
}

// New creates a Detector for the given phrase and threshold. The phrase
// must appear as a standalone token: adjacent letters, digits, or
// underscores disqualify the match, so NOT_TASK_COMPLETE_YET never
// counts for TASK_COMPLETE.
func New(phrase string, threshold int) *Detector {
	if phrase == "" {
		phrase = DefaultPhrase
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	re := regexp.MustCompile(`(?:^|[^0-9A-Za-z_])` + regexp.QuoteMeta(phrase) + `(?:[^0-9A-Za-z_]|$)`)
	return &Detector{phrase: re, threshold: threshold}
}

// Check scans one iteration's output. A match increments the running
// count; a miss resets it to zero — consecutiveness is required, not a
// cumulative total. The first return value reports whether the
// threshold has been reached.
func (d *Detector) Check(output string) (done bool, count int) {
	if d.phrase.MatchString(output) {
		d.count++
	} else {
		d.count = 0
	}
	return d.count >= d.threshold, d.count
}

// Count returns the current consecutive-match count.
func (d *Detector) Count() int { return d.count }

// SetCount restores a count, e.g. when resuming from persisted state.
func (d *Detector) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	d.count = n
}

// costExpr matches best-effort cost reports in agent output, e.g.
// "Total cost: $1.23" or "cost (USD): 0.0421". The agent gives no
// format guarantee, so this is an advisory signal only.
var costExpr = regexp.MustCompile(`(?i)(?:total\s+)?cost[^0-9$\n]*\$?\s*([0-9]+(?:\.[0-9]+)?)`)

// ExtractCost pulls a cost delta out of free-text agent output.
// Returns zero when nothing parseable is found; never an error, since
// missing cost data must not fail an iteration.
func ExtractCost(output string) float64 {
	m := costExpr.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
