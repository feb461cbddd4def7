package checksum

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumEmpty(t *testing.T) {
	sum := Sum(nil)
	assert.Equal(t, "5df6e0e2", hex.EncodeToString(sum[:]))
}

func TestSumFlipBitChanges(t *testing.T) {
	a := Sum([]byte{1, 2, 3, 4})
	b := Sum([]byte{1, 2, 3, 5})
	assert.NotEqual(t, a, b)
}
