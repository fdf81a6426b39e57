package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSizeAndGet(t *testing.T) {
	b := New(16)
	assert.Equal(t, 16, b.Size())
	assert.Len(t, b.Get(), 16)
}

func TestRetainReleaseSharesBytes(t *testing.T) {
	b := New(4)
	copy(b.Get(), []byte{1, 2, 3, 4})

	b2 := b.Retain()
	assert.Equal(t, int32(2), b.RefCount())
	assert.Same(t, b, b2)

	b.Release()
	assert.Equal(t, int32(1), b.RefCount())
	assert.NotNil(t, b.Get())

	b.Release()
	assert.Equal(t, int32(0), b.RefCount())
	assert.Nil(t, b.Get())
}

func TestReleaseUnderflowPanics(t *testing.T) {
	b := New(1)
	b.Release()
	assert.Panics(t, func() { b.Release() })
}

func TestWrapTakesOwnership(t *testing.T) {
	raw := []byte("hello")
	b := Wrap(raw)
	assert.Equal(t, 5, b.Size())
	assert.Equal(t, raw, b.Get())
}
