package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddContains(t *testing.T) {
	f := New(100, 0.01)
	f.Add([]byte("hello"))
	assert.True(t, f.Contains([]byte("hello")))
	assert.False(t, f.Contains([]byte("world")))
}

func TestFalsePositiveRateIsBounded(t *testing.T) {
	const n = 1000
	f := New(n, 0.01)
	for i := 0; i < n; i++ {
		f.Add([]byte(fmt.Sprintf("item-%d", i)))
	}

	fp := 0
	const trials = 2000
	for i := 0; i < trials; i++ {
		if f.Contains([]byte(fmt.Sprintf("absent-%d", i))) {
			fp++
		}
	}
	// Generous bound: true FPR should be near 1%, allow well under 10%.
	assert.Less(t, fp, trials/10)
}
