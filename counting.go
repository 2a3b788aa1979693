package allocproxy

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/phuslu/log"
)

// Counting is a Mechanism that forwards to another mechanism while
// tracking every outstanding block and the call site that allocated it.
// It is meant for tests and leak hunting; wrap the mechanism under test
// and assert emptiness at the end.
type Counting struct {
	next   Mechanism
	blocks int64
	bytes  int64

	sites sync.Map // unsafe.Pointer -> *allocSite
}

type allocSite struct {
	pc   uintptr
	line int
	size int
}

// NewCounting returns a counting mechanism forwarding to next, or to the
// current default mechanism when next is nil.
func NewCounting(next Mechanism) *Counting {
	if next == nil {
		next = Default()
	}
	return &Counting{next: next}
}

func (c *Counting) Allocate(size int) unsafe.Pointer {
	p := c.next.Allocate(size)
	if p == nil {
		return nil
	}
	atomic.AddInt64(&c.blocks, 1)
	atomic.AddInt64(&c.bytes, int64(size))
	site := &allocSite{size: size}
	if pc, _, line, ok := runtime.Caller(countFrames); ok {
		site.pc, site.line = pc, line
	}
	c.sites.Store(p, site)
	return p
}

func (c *Counting) Deallocate(p unsafe.Pointer) {
	if p == nil {
		return
	}
	v, ok := c.sites.LoadAndDelete(p)
	if !ok {
		// Forwarding would hand the inner mechanism a likely double free.
		log.Warn().Msgf("deallocate of untracked address %p (double free or foreign pointer?)", p)
		return
	}
	site := v.(*allocSite)
	atomic.AddInt64(&c.blocks, -1)
	atomic.AddInt64(&c.bytes, -int64(site.size))
	c.next.Deallocate(p)
}

// Blocks returns the number of blocks allocated but not yet deallocated.
func (c *Counting) Blocks() int {
	return int(atomic.LoadInt64(&c.blocks))
}

// Bytes returns the total size of the outstanding blocks.
func (c *Counting) Bytes() int {
	return int(atomic.LoadInt64(&c.bytes))
}

// TestingT is the subset of testing.TB that AssertEmpty needs.
type TestingT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// AssertEmpty reports one error per outstanding block, naming the function
// and line that allocated it.
func (c *Counting) AssertEmpty(t TestingT) {
	t.Helper()
	c.sites.Range(func(_, v interface{}) bool {
		site := v.(*allocSite)
		f := runtime.FuncForPC(site.pc)
		name := "unknown"
		if f != nil {
			name = f.Name()
		}
		t.Errorf("leak of %d bytes allocated at %s line %d", site.size, name, site.line)
		return true
	})
}

// ReportLeaks logs every outstanding block and returns how many there are.
func (c *Counting) ReportLeaks() (n int) {
	c.sites.Range(func(p, v interface{}) bool {
		site := v.(*allocSite)
		f := runtime.FuncForPC(site.pc)
		name := "unknown"
		if f != nil {
			name = f.Name()
		}
		log.Warn().Msgf("leak of %d bytes at %p allocated by %s line %d", site.size, p, name, site.line)
		n++
		return true
	})
	return
}

// Allocations usually arrive through a Proxy, so the interesting caller is
// two frames up. ALLOCPROXY_COUNT_FRAMES overrides the depth when the
// mechanism is driven directly or through extra layers.
const defCountFrames = 2

var countFrames = defCountFrames

func init() {
	if val, ok := os.LookupEnv("ALLOCPROXY_COUNT_FRAMES"); ok {
		if f, err := strconv.Atoi(val); err == nil {
			countFrames = f
		}
	}
}
