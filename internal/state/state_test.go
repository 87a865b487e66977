package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looper/internal/models"
)

func TestSaveAndLoadSession(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	sess := models.NewSession("build the thing", "/tmp/work")
	sess.Iteration = 4
	sess.CompletionCount = 1
	sess.TotalCostUSD = 0.42

	require.NoError(t, st.SaveSession(sess))

	loaded, err := st.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, models.SessionStatusRunning, loaded.Status)
	assert.Equal(t, 4, loaded.Iteration)
	assert.Equal(t, 1, loaded.CompletionCount)
	assert.InDelta(t, 0.42, loaded.TotalCostUSD, 1e-9)
	assert.Equal(t, "build the thing", loaded.Task)
}

func TestSaveSession_RewriteReplacesState(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	sess := models.NewSession("task", ".")
	require.NoError(t, st.SaveSession(sess))

	sess.Iteration = 7
	sess.Finalize(models.SessionStatusCompleted)
	require.NoError(t, st.SaveSession(sess))

	loaded, err := st.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Iteration)
	assert.Equal(t, models.SessionStatusCompleted, loaded.Status)

	// No temp file left behind by the atomic rewrite.
	_, err = os.Stat(st.StatePath() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSession_Missing(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = st.LoadSession()
	assert.Error(t, err)
}

func TestAppendAndTailEvents(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, st.Append(models.Event{
			Level:     models.EventInfo,
			Message:   "iteration finished",
			SessionID: "s1",
			Iteration: i,
			Fields:    map[string]any{"exit_code": 0},
		}))
	}

	events, err := st.TailEvents(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 3, events[0].Iteration, "tail returns the most recent events, oldest first")
	assert.Equal(t, 5, events[2].Iteration)
	assert.False(t, events[0].Timestamp.IsZero(), "append stamps events")
}

func TestTailEvents_NoLog(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	events, err := st.TailEvents(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTailEvents_SkipsMalformedLines(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Append(models.Event{Level: models.EventInfo, Message: "good"}))
	f, err := os.OpenFile(st.LogPath(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, st.Append(models.Event{Level: models.EventWarning, Message: "also good"}))

	events, err := st.TailEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "good", events[0].Message)
	assert.Equal(t, "also good", events[1].Message)
}
