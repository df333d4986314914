package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	c.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, c.Since(start), time.Millisecond)
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(time.Second)
	assert.Equal(t, time.Second, c.Since(start))

	c.Sleep(2 * time.Second)
	c.Sleep(2 * time.Second)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, c.Sleeps())
	assert.Equal(t, start.Add(5*time.Second), c.Now())

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestMockClock_After(t *testing.T) {
	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(2 * time.Second)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	select {
	case <-ch:
		t.Fatal("fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(2*time.Second), got)
	default:
		t.Fatal("did not fire at its deadline")
	}
	assert.Equal(t, 0, c.Pending())

	// A non-positive wait is already due.
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero wait did not fire")
	}
}

func TestRealClock_After(t *testing.T) {
	var c Clock = RealClock{}
	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("RealClock.After did not fire")
	}
}
