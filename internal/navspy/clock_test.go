package navspy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestVirtualClockRunsDueActionsInOrder(t *testing.T) {
	c := NewVirtualClock(epoch)
	var fired []string
	var at []time.Duration

	c.AfterFunc(300*time.Millisecond, func() {
		fired = append(fired, "late")
		at = append(at, c.Now().Sub(epoch))
	})
	c.AfterFunc(100*time.Millisecond, func() {
		fired = append(fired, "early")
		at = append(at, c.Now().Sub(epoch))
	})

	c.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"early"}, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}, at)
	assert.Equal(t, 400*time.Millisecond, c.Now().Sub(epoch))
}

func TestVirtualClockStop(t *testing.T) {
	c := NewVirtualClock(epoch)
	ran := false
	timer := c.AfterFunc(time.Second, func() { ran = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	assert.False(t, ran)
	assert.Equal(t, 0, c.Pending())
}

func TestVirtualClockChainedActions(t *testing.T) {
	c := NewVirtualClock(epoch)
	count := 0
	c.AfterFunc(10*time.Millisecond, func() {
		count++
		c.AfterFunc(10*time.Millisecond, func() { count++ })
	})

	c.Advance(25 * time.Millisecond)
	assert.Equal(t, 2, count)
}
