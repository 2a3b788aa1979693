package allocproxy

import (
	"sync/atomic"
	"unsafe"

	"go.yuchanns.xyz/timefall"
)

// timerForwarder adapts the timefall allocator contract to whatever the
// default mechanism is at the time of each call.
type timerForwarder struct{}

func (t *timerForwarder) Alloc(size uint) unsafe.Pointer {
	return Default().Allocate(int(size))
}

func (t *timerForwarder) Free(ptr unsafe.Pointer) {
	Default().Deallocate(ptr)
}

var timerRouted atomic.Int32

// RouteTimerAllocations makes timefall timers draw their memory through
// the current default mechanism instead of their built-in allocator. It
// may be called at most once, before any timer is created.
func RouteTimerAllocations() {
	if timerRouted.Add(1) != 1 {
		panic("timer allocations already routed")
	}
	timefall.SetAllocator(&timerForwarder{})
}
