// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package eventqueue

import (
	"io"
	"log/slog"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Config is the set of configuration parameters for Queue.
type Config struct {
	// Allocator supplies the nodes holding queued events. If nil, the
	// HeapAllocator is used. A shared Pool must outlive every queue
	// created with it.
	Allocator Allocator

	// Logger receives a warning for each event still queued when the
	// queue is closed. If nil, nothing is logged.
	Logger *slog.Logger

	// LeakHandler, if set, is called by Close with each event that was
	// still queued. The queue never owns events, so this is the last
	// chance for the application to release whatever they refer to.
	LeakHandler func(event any)
}
