// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

/*
Package eventqueue provides a goroutine-safe, blocking FIFO event queue.
Multiple producer go-routines post opaque events, and multiple consumer
go-routines receive them in the order they were posted, blocking until an
event arrives or, optionally, until a deadline.

Two watchers can be registered on a Queue to observe changes of the number
of queued events and of the number of go-routines blocked waiting for one.
Watchers are called synchronously while the queue is locked, so they must
return quickly and must not call any method of the same Queue.

Storage for queued events is obtained from an Allocator. The default
HeapAllocator simply uses the garbage collected heap; a Pool can be shared
among many queues to recycle nodes and to put an upper bound on the number
of events held at once.
*/
package eventqueue
