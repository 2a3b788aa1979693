package allocproxy

import "unsafe"

// maxBytes is the largest byte count a proxy will ever hand to a
// mechanism. Mechanism sizes are signed, so half the unsigned range is
// reserved to keep counts from wrapping at the boundary.
const maxBytes = uint(^uint(0) >> 1)

func sizeOf[T any]() uintptr {
	var t T
	return unsafe.Sizeof(t)
}

// Proxy is a value-semantic handle that forwards allocation calls for
// elements of type T to a Mechanism chosen at run time. Copies share the
// mechanism; the proxy never owns it, and destroying a proxy leaves the
// mechanism untouched. Proxies of the same element type compare with ==;
// use Equal to compare across element types.
//
// The zero Proxy has no mechanism. Construct proxies with New, NewWith,
// Rebind or Typed.
type Proxy[T any] struct {
	mechanism Mechanism
}

// New returns a proxy bound to the default mechanism current at the time
// of the call.
func New[T any]() Proxy[T] {
	return Proxy[T]{mechanism: Default()}
}

// NewWith returns a proxy bound to m, or to the current default mechanism
// when m is nil.
func NewWith[T any](m Mechanism) Proxy[T] {
	if m == nil {
		m = Default()
	}
	return Proxy[T]{mechanism: m}
}

// Rebind returns a proxy for elements of type T sharing other's mechanism.
// The result compares equal to other even though the element types differ.
func Rebind[T, U any](other Proxy[U]) Proxy[T] {
	return Proxy[T]{mechanism: other.mechanism}
}

// Allocate returns storage for n elements of T, suitably aligned for T,
// obtained from the mechanism. The storage is uninitialized; use Construct
// before reading through it. The behavior is undefined if n > MaxSize().
// Allocation failure is whatever the mechanism makes of it; the proxy
// neither checks nor translates it.
func (p Proxy[T]) Allocate(n uint) *T {
	return (*T)(p.mechanism.Allocate(int(n * uint(sizeOf[T]()))))
}

// AllocateSlice is Allocate exposed as a slice of n elements over the
// same storage.
func (p Proxy[T]) AllocateSlice(n uint) []T {
	return unsafe.Slice(p.Allocate(n), n)
}

// Deallocate returns storage previously obtained from Allocate to the
// mechanism. ptr must come from Allocate on a proxy comparing equal to p
// and must not have been deallocated already. n is ignored; the mechanism
// contract carries no size on release.
func (p Proxy[T]) Deallocate(ptr *T, n uint) {
	p.mechanism.Deallocate(unsafe.Pointer(ptr))
}

// Construct places a copy of v at ptr. It does not allocate. The behavior
// is undefined unless ptr refers to properly aligned storage for T.
func (p Proxy[T]) Construct(ptr *T, v T) {
	*ptr = v
}

// Destroy resets *ptr to the zero value of T, dropping any references the
// value held. It does not deallocate.
func (p Proxy[T]) Destroy(ptr *T) {
	var zero T
	*ptr = zero
}

// Mechanism returns the mechanism this proxy forwards to.
func (p Proxy[T]) Mechanism() Mechanism {
	return p.mechanism
}

// Address returns the true storage address of *x, independent of anything
// the type T defines.
func (p Proxy[T]) Address(x *T) *T {
	return (*T)(AddressOf(x))
}

// MaxSize returns the largest n for which n elements of T stay within the
// mechanism's signed size range.
func (p Proxy[T]) MaxSize() uint {
	size := uint(sizeOf[T]())
	if size == 0 {
		return maxBytes
	}
	return maxBytes / size
}

// Raw rebinds this proxy to its element-type-free form.
func (p Proxy[T]) Raw() Raw {
	return Raw{mechanism: p.mechanism}
}

// Equal reports whether a and b forward to the same mechanism, regardless
// of their element types. Memory allocated through one proxy may be
// deallocated through another iff they compare equal; containers must test
// this at run time before transferring ownership, never assume it from the
// element type.
func Equal[T, U any](a Proxy[T], b Proxy[U]) bool {
	return a.mechanism == b.mechanism
}

// EqualMechanism reports whether p forwards to m.
func EqualMechanism[T any](p Proxy[T], m Mechanism) bool {
	return p.mechanism == m
}

// Raw is a proxy with no element type: it carries the mechanism binding
// and equality relation of Proxy but none of the allocation interface,
// since there is no element to size, construct or address. It is the base
// case for rebinding: Typed turns a Raw back into a Proxy[T].
type Raw struct {
	mechanism Mechanism
}

// NewRaw returns an element-type-free proxy bound to the current default
// mechanism.
func NewRaw() Raw {
	return Raw{mechanism: Default()}
}

// NewRawWith returns an element-type-free proxy bound to m, or to the
// current default mechanism when m is nil.
func NewRawWith(m Mechanism) Raw {
	if m == nil {
		m = Default()
	}
	return Raw{mechanism: m}
}

// Mechanism returns the mechanism this proxy forwards to.
func (r Raw) Mechanism() Mechanism {
	return r.mechanism
}

// Typed returns a Proxy[T] sharing r's mechanism.
func Typed[T any](r Raw) Proxy[T] {
	return Proxy[T]{mechanism: r.mechanism}
}
