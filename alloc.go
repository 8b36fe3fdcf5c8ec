// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package eventqueue

// Node is the storage cell that holds one queued event. Nodes are obtained
// from an Allocator on Post and returned to it once the event is received or
// the queue is closed. The fields are private to the queue.
type Node struct {
	event any
	next  *Node
}

// Allocator supplies and reclaims Nodes for one or more queues. All methods
// are called while the calling queue is locked, possibly from many
// go-routines and many queues at once, so implementations must be safe for
// concurrent use without any external locking.
type Allocator interface {
	// Attach is called once by each queue created with the allocator.
	// Returning an error makes the queue creation fail.
	Attach() error

	// Detach is called once by each queue when it is closed.
	Detach()

	// Alloc returns a zeroed Node. It should return an error wrapping
	// ErrAllocation when no node can be supplied.
	Alloc() (*Node, error)

	// Free takes back a Node that is no longer in use.
	Free(*Node)
}

// HeapAllocator is an Allocator that allocates every Node on the heap and
// leaves unused ones to the garbage collector. It never fails. The zero
// value is ready to use and can be shared freely.
type HeapAllocator struct{}

// Attach implements Allocator.
func (HeapAllocator) Attach() error { return nil }

// Detach implements Allocator.
func (HeapAllocator) Detach() {}

// Alloc implements Allocator.
func (HeapAllocator) Alloc() (*Node, error) { return &Node{}, nil }

// Free implements Allocator.
func (HeapAllocator) Free(*Node) {}
