package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(id, macro, reason string, started time.Time) *Run {
	return &Run{
		ID:         id,
		Macro:      macro,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		LoopCount:  3,
		Iterations: 3,
		Executed:   9,
		Failed:     1,
		Reason:     reason,
	}
}

func TestSaveAndGetRuns(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().Truncate(time.Millisecond)

	require.NoError(t, db.SaveRun(testRun("a", "daily", "completed", now.Add(-time.Hour))))
	require.NoError(t, db.SaveRun(testRun("b", "daily", "hotkey", now)))

	runs, err := db.GetRuns(10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "b", runs[0].ID, "newest first")
	require.True(t, now.Equal(runs[0].StartedAt))
	require.Equal(t, 2*time.Second, runs[0].Duration())
	require.Equal(t, "hotkey", runs[0].Reason)

	page, err := db.GetRuns(1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "a", page[0].ID)

	r, err := db.GetRun("a")
	require.NoError(t, err)
	require.Equal(t, 9, r.Executed)

	count, err := db.GetRunCount()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestSaveRunReplacesSameID(t *testing.T) {
	db := openTestDB(t)
	run := testRun("a", "daily", "stopped", time.Now())
	require.NoError(t, db.SaveRun(run))

	run.Reason = "completed"
	require.NoError(t, db.SaveRun(run))

	count, err := db.GetRunCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := db.GetRun("a")
	require.NoError(t, err)
	require.Equal(t, "completed", got.Reason)

	require.Error(t, db.SaveRun(&Run{}))
}

func TestDeleteRun(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveRun(testRun("a", "daily", "completed", time.Now())))

	require.NoError(t, db.DeleteRun("a"))
	require.ErrorIs(t, db.DeleteRun("a"), ErrNotFound)

	_, err := db.GetRun("a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, db.SaveRun(testRun("a", "daily", "completed", now)))
	require.NoError(t, db.SaveRun(testRun("b", "daily", "stopped", now)))
	require.NoError(t, db.SaveRun(testRun("c", "weekly", "error", now)))
	require.NoError(t, db.SaveRun(testRun("old", "daily", "completed", now.AddDate(0, 0, -60))))

	overall, err := db.GetOverallStats(30)
	require.NoError(t, err)
	require.Equal(t, 3, overall.TotalRuns)
	require.Equal(t, 27, overall.TotalExecuted)
	require.Equal(t, 3, overall.TotalFailed)
	require.Equal(t, 1, overall.CompletedCount)
	require.Equal(t, 1, overall.StoppedCount)
	require.Equal(t, 1, overall.ErrorCount)
	require.InDelta(t, 2000, overall.AvgDurationMs, 0.5)

	macros, err := db.GetMacroStats(30)
	require.NoError(t, err)
	require.Len(t, macros, 2)
	require.Equal(t, "daily", macros[0].Macro)
	require.Equal(t, 2, macros[0].Runs)

	daily, err := db.GetDailyStats(90)
	require.NoError(t, err)
	total := 0
	for _, d := range daily {
		total += d.Runs
	}
	require.Equal(t, 4, total)

	ranged, err := db.GetStatsForDateRange(now.AddDate(0, 0, -61), now.AddDate(0, 0, -59))
	require.NoError(t, err)
	require.Equal(t, 1, ranged.TotalRuns)
}

func TestEmptyStats(t *testing.T) {
	db := openTestDB(t)

	overall, err := db.GetOverallStats(7)
	require.NoError(t, err)
	require.Zero(t, overall.TotalRuns)

	runs, err := db.GetRuns(10, 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}
