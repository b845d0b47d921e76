package record

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/linecart/pkg/line"
	"github.com/gwillem/linecart/pkg/mission"
	"github.com/gwillem/linecart/pkg/nav"
	"github.com/gwillem/linecart/pkg/robot"
)

func openTemp(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecorderKeepsOnlyChanges(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := mission.Telemetry{RunID: "run-a", Time: t0, Mission: mission.Initialized, Navigation: nav.FollowingLine}
	require.NoError(t, r.Publish(ctx, snap))

	snap.Time = t0.Add(20 * time.Millisecond)
	snap.Position = 12
	require.NoError(t, r.Publish(ctx, snap))

	snap.Time = t0.Add(40 * time.Millisecond)
	snap.Mission = mission.ObjectFind
	snap.Junction = line.TLeft
	snap.Color = robot.ColorBlue
	snap.Distance, snap.HasDistance = 33.5, true
	require.NoError(t, r.Publish(ctx, snap))

	rows, err := r.Transitions(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "initialized", rows[0].Mission)
	assert.False(t, rows[0].Distance.Valid)
	assert.Equal(t, t0, rows[0].Time)

	assert.Equal(t, "object_find", rows[1].Mission)
	assert.Equal(t, "t_left", rows[1].Junction)
	assert.Equal(t, "blue", rows[1].Color)
	assert.Equal(t, "following_line", rows[1].Navigation)
	assert.InDelta(t, 33.5, rows[1].Distance.Float64, 1e-9)
}

func TestRecorderRetriesFailedWrite(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := mission.Telemetry{RunID: "run-a", Time: t0, Mission: mission.Initialized}
	require.NoError(t, r.Publish(ctx, snap))

	_, err := r.db.ExecContext(ctx, "DROP TABLE transitions")
	require.NoError(t, err)

	snap.Time = t0.Add(20 * time.Millisecond)
	snap.Mission = mission.ObjectFind
	require.Error(t, r.Publish(ctx, snap))

	_, err = r.db.ExecContext(ctx, schema)
	require.NoError(t, err)

	// the failed transition is still pending
	require.NoError(t, r.Publish(ctx, snap))
	rows, err := r.Transitions(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "object_find", rows[0].Mission)
}

func TestRecorderRuns(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()

	_, err := r.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.Publish(ctx, mission.Telemetry{RunID: "old", Time: t0}))
	require.NoError(t, r.Publish(ctx, mission.Telemetry{RunID: "old", Time: t0.Add(time.Second), Mission: mission.End, Blocks: 2}))
	require.NoError(t, r.Publish(ctx, mission.Telemetry{RunID: "new", Time: t0.Add(time.Hour)}))

	latest, err := r.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest)

	runs, err := r.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, Run{ID: "old", Started: t0, Ended: t0.Add(time.Second), Rows: 2, Final: "end", Delivered: 2}, runs[1])
}

func TestRecorderReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.Publish(context.Background(), mission.Telemetry{RunID: "x", Time: time.Unix(0, 0)}))
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()
	rows, err := r.Transitions(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
