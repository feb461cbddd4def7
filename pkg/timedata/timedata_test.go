package timedata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOffsetZeroUntilEnoughSamples(t *testing.T) {
	c := New()
	for i := 0; i < 4; i++ {
		c.Add(peerKey(i), time.Now().Add(time.Hour))
	}
	assert.Equal(t, time.Duration(0), c.Offset())
}

func TestOffsetTracksMedian(t *testing.T) {
	c := New()
	offsets := []time.Duration{
		-2 * time.Second, -1 * time.Second, 0, time.Second, 2 * time.Second,
	}
	for i, d := range offsets {
		c.Add(peerKey(i), time.Now().Add(d))
	}
	assert.InDelta(t, 0, c.Offset().Seconds(), 0.5)
}

func TestOffsetIgnoresSingleWildOutlier(t *testing.T) {
	c := New()
	// Five peers reporting near-zero skew...
	for i := 0; i < 5; i++ {
		c.Add(peerKey(i), time.Now())
	}
	// ...a sixth claiming wild skew does not move the median off bounds.
	c.Add(peerKey(99), time.Now().Add(5*time.Hour))
	assert.Less(t, c.Offset().Abs(), time.Minute)
}

func TestAddIgnoresRepeatPeer(t *testing.T) {
	c := New()
	for i := 0; i < 10; i++ {
		c.Add("same-peer", time.Now().Add(time.Duration(i)*time.Hour))
	}
	assert.Equal(t, 1, c.SampleCount())
}

func peerKey(i int) string {
	return "peer-" + string(rune('a'+i))
}
