package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck_NoMatchNeverCounts(t *testing.T) {
	d := New("TASK_COMPLETE", 2)

	outputs := []string{"working on it", "still going", "almost there"}
	for _, out := range outputs {
		done, count := d.Check(out)
		assert.False(t, done)
		assert.Equal(t, 0, count)
	}
}

func TestCheck_SuccessExactlyAtThreshold(t *testing.T) {
	d := New("TASK_COMPLETE", 2)

	done, count := d.Check("TASK_COMPLETE")
	assert.False(t, done, "one match is not enough")
	assert.Equal(t, 1, count)

	done, count = d.Check("all done.\nTASK_COMPLETE\n")
	assert.True(t, done, "second consecutive match meets the threshold")
	assert.Equal(t, 2, count)
}

func TestCheck_MissResetsCount(t *testing.T) {
	d := New("TASK_COMPLETE", 2)

	_, _ = d.Check("TASK_COMPLETE")
	done, count := d.Check("wait, found another bug")
	assert.False(t, done)
	assert.Equal(t, 0, count, "consecutiveness is required, not a cumulative total")

	// A fresh run of threshold consecutive matches still succeeds.
	_, _ = d.Check("TASK_COMPLETE")
	done, count = d.Check("TASK_COMPLETE")
	assert.True(t, done)
	assert.Equal(t, 2, count)
}

func TestCheck_SuperstringDoesNotMatch(t *testing.T) {
	d := New("TASK_COMPLETE", 1)

	done, count := d.Check("status: NOT_TASK_COMPLETE_YET")
	assert.False(t, done)
	assert.Equal(t, 0, count)

	done, count = d.Check("TASK_COMPLETED")
	assert.False(t, done)
	assert.Equal(t, 0, count)

	done, count = d.Check("xTASK_COMPLETE")
	assert.False(t, done)
	assert.Equal(t, 0, count)
}

func TestCheck_DelimitedTokenMatches(t *testing.T) {
	for _, out := range []string{
		"TASK_COMPLETE",
		"done. TASK_COMPLETE",
		"TASK_COMPLETE.",
		"> TASK_COMPLETE <",
		"line one\nTASK_COMPLETE\nline three",
	} {
		d := New("TASK_COMPLETE", 1)
		done, _ := d.Check(out)
		assert.True(t, done, "output %q should match", out)
	}
}

func TestNew_Defaults(t *testing.T) {
	d := New("", 0)
	assert.Equal(t, DefaultThreshold, d.threshold)

	done, _ := d.Check(DefaultPhrase)
	assert.False(t, done)
	done, _ = d.Check(DefaultPhrase)
	assert.True(t, done)
}

func TestSetCount(t *testing.T) {
	d := New("TASK_COMPLETE", 3)
	d.SetCount(2)

	done, count := d.Check("TASK_COMPLETE")
	assert.True(t, done)
	assert.Equal(t, 3, count)

	d.SetCount(-5)
	assert.Equal(t, 0, d.Count())
}

func TestExtractCost(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   float64
	}{
		{"dollar sign", "Total cost: $1.23", 1.23},
		{"no dollar sign", "cost: 0.0421 USD", 0.0421},
		{"mixed case", "TOTAL COST $2.50", 2.5},
		{"embedded in output", "did things\ntotal cost:    $0.97\nbye", 0.97},
		{"integer", "cost: 3", 3},
		{"no cost present", "nothing to see here", 0},
		{"word cost without number", "this was costly work", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExtractCost(tt.output), 1e-9)
		})
	}
}
