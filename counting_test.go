package allocproxy_test

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"go.yuchanns.xyz/allocproxy"
)

func TestCountingCounts(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	c := allocproxy.NewCounting(allocproxy.Malloc())
	p := allocproxy.NewWith[byte](c)

	b1 := p.Allocate(100)
	b2 := p.Allocate(28)
	assert.Equal(2, c.Blocks())
	assert.Equal(128, c.Bytes())

	p.Deallocate(b1, 100)
	assert.Equal(1, c.Blocks())
	assert.Equal(28, c.Bytes())

	p.Deallocate(b2, 28)
	assert.Zero(c.Blocks())
	assert.Zero(c.Bytes())
	c.AssertEmpty(t)
}

type recordingT struct {
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) Helper() {}

func TestCountingLeakReport(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	c := allocproxy.NewCounting(allocproxy.Malloc())
	p := allocproxy.NewWith[int64](c)
	ptr := p.Allocate(4)

	rt := &recordingT{}
	c.AssertEmpty(rt)
	assert.Len(rt.errors, 1)
	assert.Contains(rt.errors[0], "32 bytes")
	assert.Equal(1, c.ReportLeaks())

	p.Deallocate(ptr, 4)
	c.AssertEmpty(t)
	assert.Zero(c.ReportLeaks())
}

// spyMechanism counts the releases reaching it.
type spyMechanism struct {
	arena *allocproxy.Arena
	frees int
}

func (s *spyMechanism) Allocate(size int) unsafe.Pointer {
	return s.arena.Allocate(size)
}

func (s *spyMechanism) Deallocate(p unsafe.Pointer) {
	s.frees++
	s.arena.Deallocate(p)
}

func TestCountingUntracked(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	spy := &spyMechanism{arena: allocproxy.NewArena(1024)}
	c := allocproxy.NewCounting(spy)
	p := allocproxy.NewWith[int32](c)

	ptr := p.Allocate(1)
	p.Deallocate(ptr, 1)
	// The second release is untracked and must not reach the inner
	// mechanism as a double free.
	p.Deallocate(ptr, 1)
	assert.Zero(c.Blocks())
	assert.Zero(c.Bytes())
	assert.Equal(1, spy.frees)
}
