// Package coro provides a goroutine-native port of a stackless-coroutine
// concurrency core: a lazy, single-result Task, a pull-driven Generator, a
// blocking sync-wait bridge, and a WhenAll structured-concurrency combinator.
//
// Sibling packages round out the rest of the core:
//   - pool: a bounded/dynamic FIFO thread pool that resumes coroutine handles.
//   - csync: Event, Latch, and a fair reader/writer SharedMutex.
//   - ioscheduler: an epoll-backed event loop with timers, the scheduling
//     surface Task bodies call into when they need to suspend on I/O.
//
// None of these packages parse HTTP, speak WebSocket, or serialize JSON —
// that is explicitly out of scope; this module is the concurrency engine
// underneath such layers, not the layers themselves.
package coro
