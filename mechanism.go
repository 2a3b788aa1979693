package allocproxy

import (
	"unsafe"

	"github.com/phuslu/log"
	"github.com/smasher164/mem"
)

// Mechanism is the polymorphic allocation service a Proxy forwards to.
//
// Allocate returns storage for size bytes, or whatever the mechanism's own
// failure policy dictates (nil, panic, ...) when it cannot. Deallocate
// returns storage previously obtained from Allocate on the same mechanism;
// passing anything else is a contract violation handled (or not) by the
// mechanism itself. The size is signed; proxies reserve half the unsigned
// range so element counts never wrap when crossing this boundary.
//
// A mechanism is identified by interface equality. Implementations should
// use pointer receivers so that identity is address identity.
//
// Mechanisms define their own concurrency guarantees; a Proxy adds no
// locking of its own.
type Mechanism interface {
	Allocate(size int) unsafe.Pointer
	Deallocate(p unsafe.Pointer)
}

// mallocMechanism allocates unmanaged memory with malloc/free.
type mallocMechanism struct{}

func (m *mallocMechanism) Allocate(size int) unsafe.Pointer {
	return mem.Alloc(uint(size))
}

func (m *mallocMechanism) Deallocate(p unsafe.Pointer) {
	mem.Free(p)
}

var mallocMech = &mallocMechanism{}

// Malloc returns the process-wide malloc-backed mechanism. It is the
// initial default mechanism.
func Malloc() Mechanism {
	return mallocMech
}

var defaultMechanism Mechanism = mallocMech

// Default returns the current process-wide default mechanism. Proxies
// constructed without an explicit mechanism bind to the value returned
// here at construction time.
func Default() Mechanism {
	return defaultMechanism
}

// SetDefault installs m as the process-wide default mechanism and returns
// the previous one. It panics if m is nil.
//
// SetDefault is not synchronized against concurrent construction of
// proxies; install the default before handing it out.
func SetDefault(m Mechanism) Mechanism {
	if m == nil {
		panic("default mechanism cannot be nil")
	}
	prev := defaultMechanism
	defaultMechanism = m
	log.Debug().Msgf("default mechanism set to %T", m)
	return prev
}
