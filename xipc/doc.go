// Package xipc implements a local inter-process byte-stream transport over
// POSIX shared memory and named pipes: a socket-like, full-duplex
// connection between exactly two peers (a Creator and an Attacher),
// backed by a lock-free single-producer/single-consumer ring buffer per
// direction and synchronised by a pair of wakeup pipes.
//
// Message framing, many-to-many topologies, authentication, encryption
// and persistence across restarts are explicitly not this package's job;
// it behaves like a stream socket and leaves those to the caller.
package xipc

// vim: foldmethod=marker
