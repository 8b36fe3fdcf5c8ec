// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package eventqueue

// line is the unsynchronized FIFO store of a Queue. All methods must be
// called with the queue locked.
type line struct {
	head, tail *Node
	n          int
	alloc      Allocator
}

func (l *line) append(event any) error {
	e, err := l.alloc.Alloc()
	if err != nil {
		return err
	}
	e.event = event
	e.next = nil
	if l.tail == nil {
		l.head = e
		l.tail = e
	} else {
		l.tail.next = e
		l.tail = e
	}
	l.n++

	return nil
}

func (l *line) pop() (any, bool) {
	e := l.head
	if e == nil {
		return nil, false
	}
	l.head = e.next
	if l.head == nil {
		l.tail = nil
	}
	l.n--

	event := e.event
	l.alloc.Free(e)

	return event, true
}

func (l *line) drain(fn func(any)) int {
	var cnt int
	for {
		event, ok := l.pop()
		if !ok {
			return cnt
		}
		cnt++
		fn(event)
	}
}
