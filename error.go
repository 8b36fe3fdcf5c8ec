// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package eventqueue

import (
	"errors"
)

// ErrAllocation is returned by Post when the Allocator could not supply a
// node for the event. The queue is left unchanged and remains usable; retry
// policy is up to the caller.
var ErrAllocation = errors.New("node allocation failed")

// ErrEmpty is returned by TryWait when there is no event in the queue. It is
// a normal outcome rather than a failure.
var ErrEmpty = errors.New("queue is empty")

// ErrTimedOut is returned by TimedWait when the deadline passed before an
// event was received.
var ErrTimedOut = errors.New("timed out")

// ErrInvalidConfig is an error thrown when a config parameter is invalid.
var ErrInvalidConfig = errors.New("invalid config")

// ErrPoolClosed is returned when attaching a queue to, or allocating from, a
// Pool that has already been closed.
var ErrPoolClosed = errors.New("pool closed")

// ErrPoolInUse is returned by Pool.Close while queues are still attached.
var ErrPoolInUse = errors.New("pool in use")
