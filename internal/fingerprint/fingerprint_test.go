package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDeterministic(t *testing.T) {
	content := []byte("%PDF-1.7 Invoice #123, $500")
	a := Compute(content, "123")
	b := Compute(content, "123")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.False(t, IsPending(a))
}

func TestComputeChangesWithEitherInput(t *testing.T) {
	content := []byte("Invoice #123, $500")
	base := Compute(content, "123")

	assert.NotEqual(t, base, Compute(content, "124"), "key change")
	assert.NotEqual(t, base, Compute([]byte("Invoice #123, $501"), "123"), "content change")

	// shifting bytes across the boundary must not collide
	assert.NotEqual(t, Compute([]byte("ab"), "c"), Compute([]byte("a"), "bc"))
}

func TestComputePendingWithoutKey(t *testing.T) {
	assert.Equal(t, Pending, Compute([]byte("anything"), ""))
	assert.Equal(t, Pending, Compute(nil, "   "))
	assert.True(t, IsPending(Compute(nil, "")))
}

func TestComputeTrimsKey(t *testing.T) {
	content := []byte("x")
	assert.Equal(t, Compute(content, "INV-9"), Compute(content, " INV-9 "))
}

func TestContentID(t *testing.T) {
	assert.Equal(t, ContentID([]byte("a")), ContentID([]byte("a")))
	assert.NotEqual(t, ContentID([]byte("a")), ContentID([]byte("b")))
	assert.NotEqual(t, ContentID([]byte("a")), Compute([]byte("a"), "k"))
}
