package allocproxy

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// arenaAlign keeps every bump-allocated block word-aligned so the storage
// is suitable for any element type a proxy may place in it.
const arenaAlign = 8

// cursor packs (chunk index, byte offset) into one word so allocation is a
// single atomic add on the fast path.
type cursor uint64

func (c *cursor) load() (chunk, offset uint64) {
	v := atomic.LoadUint64((*uint64)(c))
	offset = v & 0xFFFFFFFF
	chunk = v >> 32
	return
}

func (c *cursor) add(size uint64) (chunk, offset uint64) {
	v := atomic.AddUint64((*uint64)(c), size)
	offset = v & 0xFFFFFFFF
	chunk = v >> 32
	return
}

// advance moves the cursor to the next chunk with its first n bytes
// already reserved for the caller.
func (c *cursor) advance(chunk, offset, n uint64) bool {
	return atomic.CompareAndSwapUint64((*uint64)(c), chunk<<32|offset, (chunk+1)<<32|n)
}

func (c *cursor) rewind(chunk, offset uint64) bool {
	return atomic.CompareAndSwapUint64((*uint64)(c), chunk<<32|offset, 0)
}

// Arena is a Mechanism that bump-allocates out of fixed-size chunks.
// Deallocate is a no-op: an arena releases everything at once through
// Reset, which is why the mechanism contract carries no size on release.
// Allocation is lock-free on the fast path and safe for concurrent use;
// Reset must not race with allocation.
//
// The chunk table is published through an atomic pointer: growth builds a
// fresh header under the mutex and stores it before the cursor advances
// into the new chunk, so the unlocked fast path never observes a header
// mid-rewrite.
type Arena struct {
	lock      sync.Mutex
	chunkSize uint64
	limit     int

	cursor cursor
	chunks atomic.Pointer[[][]byte]
}

// NewArena returns an arena drawing from chunks of chunkSize bytes. No
// single allocation may exceed chunkSize. Panics if chunkSize does not fit
// the cursor's offset field.
func NewArena(chunkSize uint64) *Arena {
	if chunkSize > 0x7FFFFFFF {
		panic("chunk size too large")
	}
	a := &Arena{chunkSize: chunkSize}
	a.chunks.Store(&[][]byte{make([]byte, chunkSize)})
	return a
}

// SetLimit caps the arena at n chunks; 0 means unlimited. Exceeding the
// cap panics, which is this mechanism's exhaustion policy.
func (a *Arena) SetLimit(n int) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.limit = n
}

// Allocate returns size bytes of zeroed, word-aligned arena storage.
// Panics if size is negative or exceeds the chunk size.
func (a *Arena) Allocate(size int) unsafe.Pointer {
	if size < 0 {
		panic(fmt.Sprintf("negative allocation size %d", size))
	}
	n := uint64(size+arenaAlign-1) &^ uint64(arenaAlign-1)
	if n == 0 {
		n = arenaAlign
	}
	if n > a.chunkSize {
		panic(fmt.Sprintf("object size %d is larger than chunk size %d", n, a.chunkSize))
	}
	return a.alloc(n)
}

// Deallocate is a no-op; arena storage is reclaimed in bulk by Reset.
func (a *Arena) Deallocate(p unsafe.Pointer) {}

func (a *Arena) alloc(n uint64) unsafe.Pointer {
	chunk, next := a.cursor.add(n)
	if next <= a.chunkSize {
		chunks := *a.chunks.Load()
		return unsafe.Pointer(&chunks[chunk][next-n : next][0])
	}
	return a.overflow(chunk, next, n)
}

func (a *Arena) overflow(chunk, cur, n uint64) unsafe.Pointer {
	a.lock.Lock() // Unlock is not deferred here because overflow recurses through alloc
	if a.limit != 0 && int(chunk)+1 >= a.limit {
		a.lock.Unlock()
		panic(fmt.Sprintf("arena limit of %d chunks reached", a.limit))
	}
	// Another goroutine may have advanced the chunk already.
	if actualChunk, actualCur := a.cursor.load(); actualChunk != chunk || actualCur != cur {
		a.lock.Unlock()
		return a.alloc(n)
	}

	chunks := *a.chunks.Load()
	if chunk >= uint64(len(chunks)-1) {
		grown := make([][]byte, len(chunks)+1)
		copy(grown, chunks)
		grown[len(chunks)] = make([]byte, a.chunkSize)
		a.chunks.Store(&grown)
		chunks = grown
	}
	if !a.cursor.advance(chunk, cur, n) {
		a.lock.Unlock()
		return a.alloc(n)
	}
	defer a.lock.Unlock()
	return unsafe.Pointer(&chunks[chunk+1][:n][0])
}

// Reset rewinds the arena to empty and zeroes its chunks, invalidating
// every pointer previously handed out. Panics if an allocation races with
// the rewind.
func (a *Arena) Reset() {
	a.lock.Lock()
	defer a.lock.Unlock()
	beforeChunk, beforeCur := a.cursor.load()
	for _, chunk := range *a.chunks.Load() {
		for i := range chunk {
			chunk[i] = 0
		}
	}
	if !a.cursor.rewind(beforeChunk, beforeCur) {
		panic("reset failed, another goroutine is using the arena")
	}
}
