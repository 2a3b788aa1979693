//go:build unix

package allocproxy

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/phuslu/log"
	"golang.org/x/sys/unix"
)

// Mmap is a Mechanism backed by anonymous private mappings. Every block
// gets its own mapping, so storage is page-aligned and returned to the
// kernel on Deallocate. Allocation failure yields nil; deallocating an
// address this mechanism did not hand out panics.
type Mmap struct {
	maps sync.Map // unsafe.Pointer -> []byte
}

func NewMmap() *Mmap {
	return &Mmap{}
}

func (m *Mmap) Allocate(size int) unsafe.Pointer {
	if size < 0 {
		panic(fmt.Sprintf("negative allocation size %d", size))
	}
	if size == 0 {
		size = 1 // zero-length mappings are invalid
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil
	}
	p := unsafe.Pointer(&b[0])
	m.maps.Store(p, b)
	return p
}

func (m *Mmap) Deallocate(p unsafe.Pointer) {
	if p == nil {
		return
	}
	v, ok := m.maps.LoadAndDelete(p)
	if !ok {
		panic(fmt.Sprintf("unmapping unknown address %p", p))
	}
	b := v.([]byte)
	if err := unix.Munmap(b); err != nil {
		log.Warn().Msgf("munmap of %d bytes at %p failed: %v", len(b), p, err)
	}
}
