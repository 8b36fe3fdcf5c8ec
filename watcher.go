// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package eventqueue

// Direction tells a Watcher how the observed count has just changed.
type Direction int

const (
	// Decrement means the count has just been decreased by one.
	Decrement Direction = -1
	// Report is passed once at registration time. The count did not
	// change; it is the current value.
	Report Direction = 0
	// Increment means the count has just been increased by one.
	Increment Direction = +1
)

func (d Direction) String() string {
	switch d {
	case Decrement:
		return "-1"
	case Report:
		return "0"
	case Increment:
		return "+1"
	}
	return "invalid"
}

// Watcher observes one of the counters of a Queue. Watch is called with the
// new value of the counter while the queue is locked. It must not block and
// must not call any method of the queue it is registered on.
type Watcher interface {
	Watch(count int, dir Direction)
}

// WatcherFunc is an adapter to use an ordinary function as a Watcher.
type WatcherFunc func(count int, dir Direction)

// Watch calls f(count, dir).
func (f WatcherFunc) Watch(count int, dir Direction) { f(count, dir) }
