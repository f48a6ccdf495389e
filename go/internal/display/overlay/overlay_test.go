package overlay

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liftdisplay/go/internal/display/schedule"
)

type countingScheduler struct {
	schedules   int
	cancels     int
	generations []uint64
}

func (c *countingScheduler) Schedule(_ string, generation uint64, _ time.Duration) {
	c.schedules++
	c.generations = append(c.generations, generation)
}

func (c *countingScheduler) Cancel(string) { c.cancels++ }

func TestOpen_TwiceSchedulesOnce(t *testing.T) {
	cs := &countingScheduler{}
	o := New(cs)

	assert.True(t, o.Open("settings"))
	assert.False(t, o.Open("other"))

	assert.Equal(t, 1, cs.schedules)
	assert.Equal(t, "settings", o.Content())
}

func TestClose_CancelsAutoClose(t *testing.T) {
	cs := &countingScheduler{}
	o := New(cs)

	o.Open("settings")
	assert.True(t, o.Close())
	assert.Equal(t, 1, cs.cancels)
	assert.False(t, o.Close(), "closing a closed overlay is a no-op")

	assert.False(t, o.Fire(cs.generations[0]), "late auto-close after close takes no action")
	assert.False(t, o.IsOpen())
}

func TestFire_StaleInstanceDoesNotCloseNewOne(t *testing.T) {
	cs := &countingScheduler{}
	o := New(cs)

	o.Open("first")
	first := cs.generations[0]
	o.Close()
	o.Open("second")

	assert.False(t, o.Fire(first))
	assert.True(t, o.IsOpen())

	assert.True(t, o.Fire(cs.generations[1]))
	assert.False(t, o.IsOpen())
}

func TestAutoClose_AfterEightSeconds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	fired := make(chan schedule.Fired, 1)
	o := New(schedule.New(ctx, clock, func(f schedule.Fired) { fired <- f }))

	require.True(t, o.Open("settings"))

	clock.Advance(AutoCloseDelay - time.Millisecond)
	select {
	case <-fired:
		t.Fatal("auto-close fired early")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Millisecond)
	select {
	case f := <-fired:
		assert.Equal(t, TaskKey, f.Key)
		assert.True(t, o.Fire(f.Generation))
	case <-time.After(time.Second):
		t.Fatal("auto-close did not fire")
	}
	assert.False(t, o.IsOpen())
}
