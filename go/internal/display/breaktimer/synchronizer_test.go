package breaktimer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
)

type scheduled struct {
	key        string
	generation uint64
	after      time.Duration
}

type recordingScheduler struct {
	scheduled []scheduled
	cancelled []string
}

func (r *recordingScheduler) Schedule(key string, generation uint64, after time.Duration) {
	r.scheduled = append(r.scheduled, scheduled{key, generation, after})
}

func (r *recordingScheduler) Cancel(key string) {
	r.cancelled = append(r.cancelled, key)
}

func (r *recordingScheduler) last() scheduled {
	return r.scheduled[len(r.scheduled)-1]
}

func newTestSynchronizer() (*Synchronizer, *recordingScheduler) {
	rs := &recordingScheduler{}
	return New("A", time.Second, rs), rs
}

func TestStart_SchedulesTickUnderNewGeneration(t *testing.T) {
	s, rs := newTestSynchronizer()

	u := s.Start(5000, false)
	assert.Equal(t, KindStarted, u.Kind)
	assert.True(t, u.State.Running)
	require.NotNil(t, u.State.RemainingMillis)
	assert.Equal(t, 5000, *u.State.RemainingMillis)
	assert.Equal(t, uint64(1), u.State.Generation)

	require.Len(t, rs.scheduled, 1)
	assert.Equal(t, scheduled{TaskKey, 1, time.Second}, rs.last())
}

func TestStart_Indefinite(t *testing.T) {
	s, rs := newTestSynchronizer()

	u := s.Start(5000, true)
	assert.True(t, u.State.Indefinite())
	assert.True(t, u.State.Running)
	assert.Empty(t, rs.scheduled, "an indefinite timer never ticks")

	_, ok := s.Fire(u.State.Generation)
	assert.False(t, ok)
}

func TestGeneration_IncreasesOnEveryCommand(t *testing.T) {
	s, _ := newTestSynchronizer()

	var last uint64
	for _, u := range []Update{s.Start(1000, false), s.Set(2000, false), s.Pause(), s.Stop(), s.Start(0, true)} {
		assert.Greater(t, u.State.Generation, last)
		last = u.State.Generation
	}
}

func TestFire_StaleGenerationAfterStopIsNoop(t *testing.T) {
	s, rs := newTestSynchronizer()

	started := s.Start(5000, false)
	stale := rs.last().generation
	require.Equal(t, uint64(1), stale)

	stopped := s.Stop()
	assert.Equal(t, uint64(2), stopped.State.Generation)

	_, ok := s.Fire(stale)
	assert.False(t, ok)

	st := s.State()
	require.NotNil(t, st.RemainingMillis)
	assert.Equal(t, *started.State.RemainingMillis, *st.RemainingMillis)
	assert.False(t, st.Running)
	assert.Len(t, rs.scheduled, 1, "stale tick must not reschedule")
}

func TestFire_StaleGenerationAfterRestart(t *testing.T) {
	s, _ := newTestSynchronizer()

	s.Start(10000, false)
	s.Start(3000, false)

	_, ok := s.Fire(1)
	assert.False(t, ok)
	assert.Equal(t, 3000, *s.State().RemainingMillis)
}

func TestFire_CountsDownAndExpiresOnce(t *testing.T) {
	s, rs := newTestSynchronizer()
	s.Start(2500, false)

	u, ok := s.Fire(rs.last().generation)
	require.True(t, ok)
	assert.Equal(t, KindTick, u.Kind)
	assert.Equal(t, 1500, *u.State.RemainingMillis)

	u, ok = s.Fire(rs.last().generation)
	require.True(t, ok)
	assert.Equal(t, KindTick, u.Kind)
	assert.Equal(t, 500, *u.State.RemainingMillis)
	assert.Equal(t, 500*time.Millisecond, rs.last().after, "the last tick waits only for what is left")

	u, ok = s.Fire(rs.last().generation)
	require.True(t, ok)
	assert.Equal(t, KindExpired, u.Kind)
	assert.Equal(t, 0, *u.State.RemainingMillis)
	assert.False(t, u.State.Running)

	_, ok = s.Fire(rs.last().generation)
	assert.False(t, ok, "expiry fires exactly once")
}

func TestSetAndPause_DoNotRun(t *testing.T) {
	s, rs := newTestSynchronizer()

	u := s.Set(60000, false)
	assert.Equal(t, KindSet, u.Kind)
	assert.False(t, u.State.Running)
	assert.Empty(t, rs.scheduled)

	s.Start(60000, false)
	u = s.Pause()
	assert.Equal(t, KindPaused, u.Kind)
	assert.False(t, u.State.Running)
	assert.Equal(t, 60000, *u.State.RemainingMillis)
	assert.Contains(t, rs.cancelled, TaskKey)
}

func TestHandle_IgnoresForeignPlatform(t *testing.T) {
	s, rs := newTestSynchronizer()

	_, ok := s.Handle(events.TimerCommand{PlatformName: "B", Op: events.TimerStart, Millis: 1000})
	assert.False(t, ok)
	assert.Equal(t, uint64(0), s.State().Generation)
	assert.Empty(t, rs.scheduled)
}

func TestHandle_DispatchesOps(t *testing.T) {
	s, _ := newTestSynchronizer()

	tests := []struct {
		op   events.TimerOp
		want Kind
	}{
		{events.TimerStart, KindStarted},
		{events.TimerSet, KindSet},
		{events.TimerPause, KindPaused},
		{events.TimerStop, KindStopped},
	}
	for _, tt := range tests {
		u, ok := s.Handle(events.TimerCommand{PlatformName: "A", Op: tt.op, Millis: 1000})
		require.True(t, ok)
		assert.Equal(t, tt.want, u.Kind, tt.op)
	}

	_, ok := s.Handle(events.TimerCommand{PlatformName: "A", Op: "rewind"})
	assert.False(t, ok)
}

func TestResync(t *testing.T) {
	s, _ := newTestSynchronizer()

	_, ok := s.Resync(0)
	assert.False(t, ok)

	u, ok := s.Resync(42000)
	require.True(t, ok)
	assert.Equal(t, KindStarted, u.Kind)
	assert.Equal(t, 42000, *u.State.RemainingMillis)
}

func TestState_IsACopy(t *testing.T) {
	s, _ := newTestSynchronizer()
	s.Set(1000, false)

	st := s.State()
	*st.RemainingMillis = 1

	assert.Equal(t, 1000, *s.State().RemainingMillis)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "expired", KindExpired.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestStart_ShortRemainderTicksOnce(t *testing.T) {
	s, rs := newTestSynchronizer()

	s.Start(400, false)
	assert.Equal(t, 400*time.Millisecond, rs.last().after)

	u, ok := s.Fire(rs.last().generation)
	require.True(t, ok)
	assert.Equal(t, KindExpired, u.Kind)
	assert.Equal(t, 0, *u.State.RemainingMillis)
}
