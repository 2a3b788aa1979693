// Package allocproxy decouples the compile-time type of a container from
// the run-time memory mechanism it allocates through.
//
// A Proxy[T] is a small copyable value holding a non-owning reference to a
// Mechanism. All allocation calls are forwarded to that mechanism, so two
// containers of the same Go type can draw memory from entirely different
// sources. Two proxies compare equal iff they reference the same mechanism,
// and memory allocated through one proxy may be released through another
// only when the two compare equal.
//
// Memory returned by a mechanism lives outside the garbage collector's
// view. Element types whose values contain Go pointers must keep those
// pointers alive elsewhere for as long as they are stored there.
package allocproxy
