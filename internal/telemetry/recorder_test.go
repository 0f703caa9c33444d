package telemetry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombalink/internal/robot"
	"roombalink/internal/store"
)

func newTestRecorder(t *testing.T) (*Recorder, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.DB.Close() })
	return NewRecorder(st, 72*time.Hour, slog.Default()), st
}

func TestRecordDropsConsecutiveDuplicates(t *testing.T) {
	r, st := newTestRecorder(t)
	at := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	state := robot.State{BatteryPercent: 90, Phase: "charge", UpdatedAt: at}
	r.Record(state)
	state.UpdatedAt = at.Add(time.Minute)
	r.Record(state) // identical reading, only the timestamp moved

	state.BatteryPercent = 89
	state.UpdatedAt = at.Add(2 * time.Minute)
	r.Record(state)

	samples, err := st.ListSamples(context.Background(), at.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 89, samples[0].BatteryPercent)
	assert.Equal(t, 90, samples[1].BatteryPercent)
}

func TestRecordCapturesAllTrackedFields(t *testing.T) {
	r, st := newTestRecorder(t)
	at := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	r.Record(robot.State{BatteryPercent: 55, BinFull: true, Phase: "run", ErrorCode: 15, UpdatedAt: at})

	samples, err := st.ListSamples(context.Background(), at.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 55, samples[0].BatteryPercent)
	assert.True(t, samples[0].BinFull)
	assert.Equal(t, "run", samples[0].Phase)
	assert.Equal(t, 15, samples[0].ErrorCode)
}

func TestStartAndStop(t *testing.T) {
	r, _ := newTestRecorder(t)
	require.NoError(t, r.Start(context.Background()))

	stopped := r.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}
