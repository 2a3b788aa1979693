package allocproxy_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"go.yuchanns.xyz/allocproxy"
)

type misdirected struct {
	v     int
	decoy int
}

// Addr mimics types that expose their own notion of address and hand back
// something other than their storage.
func (m *misdirected) Addr() unsafe.Pointer {
	return unsafe.Pointer(&m.decoy)
}

func TestAddressOf(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	var m misdirected
	assert.Equal(unsafe.Pointer(&m), allocproxy.AddressOf(&m))
	assert.NotEqual(m.Addr(), allocproxy.AddressOf(&m))

	p := allocproxy.New[misdirected]()
	assert.Same(&m, p.Address(&m))
	assert.Equal(unsafe.Pointer(&m.v), unsafe.Pointer(p.Address(&m)))
}
