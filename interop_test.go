package allocproxy_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"go.yuchanns.xyz/allocproxy"
	"go.yuchanns.xyz/xxchan"
)

// The proxy hands raw storage to foreign structures just as well as to
// typed elements; here a fixed-capacity channel lives in proxy-allocated
// memory.
func TestChannelStorage(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	const capacity = 16

	p := allocproxy.New[byte]()
	size := uint(xxchan.Sizeof[int](capacity))
	ptr := p.Allocate(size)
	defer p.Deallocate(ptr, size)

	ch := xxchan.Make[int](unsafe.Pointer(ptr), capacity)
	for i := range 8 {
		assert.True(ch.Push(i))
	}
	for i := range 8 {
		v, ok := ch.Pop()
		assert.True(ok)
		assert.Equal(i, v)
	}
}

func TestRouteTimerAllocations(t *testing.T) {
	assert := require.New(t)

	allocproxy.RouteTimerAllocations()
	assert.Panics(func() { allocproxy.RouteTimerAllocations() })
}
