package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)

func TestManualNowAdvances(t *testing.T) {
	c := NewManual(epoch)

	assert.Equal(t, epoch, c.Now())
	c.Advance(5 * time.Second)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
}

func TestManualFiresInDeadlineOrder(t *testing.T) {
	c := NewManual(epoch)
	var order []string

	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	c.Advance(10 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, c.Pending())
}

func TestManualDoesNotFireEarly(t *testing.T) {
	c := NewManual(epoch)
	var fired atomic.Bool

	c.AfterFunc(45*time.Second, func() { fired.Store(true) })

	c.Advance(44 * time.Second)
	assert.False(t, fired.Load())
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.True(t, fired.Load())
}

func TestManualStop(t *testing.T) {
	c := NewManual(epoch)
	var fired atomic.Bool

	timer := c.AfterFunc(time.Second, func() { fired.Store(true) })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second Stop should report already stopped")

	c.Advance(time.Minute)
	assert.False(t, fired.Load())
}

func TestManualStopAfterFire(t *testing.T) {
	c := NewManual(epoch)
	timer := c.AfterFunc(time.Second, func() {})

	c.Advance(time.Second)

	assert.False(t, timer.Stop())
}

func TestManualCallbackSeesDeadlineTime(t *testing.T) {
	c := NewManual(epoch)
	var seen time.Time

	c.AfterFunc(10*time.Second, func() { seen = c.Now() })
	c.Advance(time.Minute)

	assert.Equal(t, epoch.Add(10*time.Second), seen)
	assert.Equal(t, epoch.Add(time.Minute), c.Now())
}

func TestManualCallbackSchedulesWithinWindow(t *testing.T) {
	c := NewManual(epoch)
	var count int

	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})

	c.Advance(5 * time.Second)

	assert.Equal(t, 2, count)
}

func TestRealAfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}

func TestOrReal(t *testing.T) {
	assert.NotNil(t, OrReal(nil))

	m := NewManual(epoch)
	assert.Same(t, m, OrReal(m))
}
