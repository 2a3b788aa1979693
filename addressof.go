package allocproxy

import "unsafe"

// AddressOf returns the address of the storage occupied by *obj. The
// address is taken through a view of that storage as raw bytes, so the
// result never depends on anything the type T defines: a type may expose
// its own notion of "address" (a handle, a wrapper, an Addr method) and
// AddressOf still yields the real location. The behavior is undefined if
// obj does not point at a live object.
func AddressOf[T any](obj *T) unsafe.Pointer {
	return unsafe.Pointer((*byte)(unsafe.Pointer(obj)))
}
