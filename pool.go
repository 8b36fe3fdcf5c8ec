// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package eventqueue

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

const defaultFreeListSize = 128

// PoolConfig is the set of configuration parameters for Pool.
type PoolConfig struct {
	// Maximum number of nodes handed out at the same time, summed over all
	// attached queues. Post fails with ErrAllocation while the limit is
	// reached. Zero means no limit.
	MaxNodes int

	// Number of freed nodes kept for reuse. Rounded up to a power of two.
	// Nodes freed while the free list is full are left to the garbage
	// collector. Zero selects the default of 128.
	FreeListSize int

	// Number of shards of the free list. Freeing go-routines are spread
	// over the shards to reduce contention. Rounded up to a power of two.
	// Zero is treated as 1.
	Shards int

	// Logger receives the usage statistics when the pool is closed. If nil,
	// nothing is logged.
	Logger *slog.Logger
}

// PoolStats is a snapshot of the counters of a Pool.
type PoolStats struct {
	Allocated uint64 // nodes newly created
	Reused    uint64 // nodes taken from the free list
	Freed     uint64 // nodes given back
	Failed    uint64 // Alloc calls rejected by MaxNodes or Close
	Live      int64  // nodes currently handed out
}

// Pool is an Allocator shared by any number of queues. It recycles freed
// nodes through a lock-free free list and optionally limits the number of
// nodes in use.
//
// The lifetime of a Pool is managed explicitly: every queue created with it
// attaches on creation and detaches on Close, and the Pool itself is closed
// by its owner once no queue is attached any more.
type Pool struct {
	free   *ring.ShardedRing
	readMu sync.Mutex // the free list has a single reader at a time
	shards uint64
	nextID atomic.Uint64

	maxNodes int64
	live     atomic.Int64

	allocated atomic.Uint64
	reused    atomic.Uint64
	freed     atomic.Uint64
	failed    atomic.Uint64

	mu     sync.Mutex
	refs   int
	closed atomic.Bool

	logger *slog.Logger
}

// NewPool creates a new Pool with the specified configuration. If conf is
// nil, the default configuration will be used.
func NewPool(conf *PoolConfig) (*Pool, error) {
	if conf == nil {
		conf = &PoolConfig{}
	}
	if conf.MaxNodes < 0 {
		return nil, fmt.Errorf("%w: negative MaxNodes %d", ErrInvalidConfig, conf.MaxNodes)
	}
	size := conf.FreeListSize
	switch {
	case size == 0:
		size = defaultFreeListSize
	case size < 0:
		return nil, fmt.Errorf("%w: negative FreeListSize %d", ErrInvalidConfig, size)
	}
	shards := conf.Shards
	switch {
	case shards == 0:
		shards = 1
	case shards < 0:
		return nil, fmt.Errorf("%w: negative Shards %d", ErrInvalidConfig, shards)
	}
	nShards := roundPow2(uint64(shards))
	nSize := roundPow2(uint64(size))
	if nSize < nShards {
		nSize = nShards
	}
	free, err := ring.NewShardedRing(nSize, nShards)
	if err != nil {
		return nil, fmt.Errorf("%w: free list: %v", ErrInvalidConfig, err)
	}
	logger := conf.Logger
	if logger == nil {
		logger = discardLogger
	}

	return &Pool{
		free:     free,
		shards:   nShards,
		maxNodes: int64(conf.MaxNodes),
		logger:   logger,
	}, nil
}

// Attach implements Allocator. It fails with ErrPoolClosed after Close.
func (p *Pool) Attach() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.refs++
	return nil
}

// Detach implements Allocator.
func (p *Pool) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs > 0 {
		p.refs--
	}
}

// Alloc implements Allocator.
func (p *Pool) Alloc() (*Node, error) {
	if p.closed.Load() {
		p.failed.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrAllocation, ErrPoolClosed)
	}
	if !p.reserve() {
		p.failed.Add(1)
		return nil, fmt.Errorf("%w: %d nodes in use", ErrAllocation, p.maxNodes)
	}

	p.readMu.Lock()
	v, ok := p.free.TryRead()
	p.readMu.Unlock()
	if ok {
		if n, isNode := v.(*Node); isNode {
			p.reused.Add(1)
			return n, nil
		}
	}
	p.allocated.Add(1)

	return &Node{}, nil
}

// Free implements Allocator.
func (p *Pool) Free(n *Node) {
	if n == nil {
		return
	}
	n.event, n.next = nil, nil
	p.live.Add(-1)
	p.freed.Add(1)
	if p.closed.Load() {
		return
	}
	id := p.nextID.Add(1) % p.shards
	_ = p.free.Write(id, n) // dropped to the GC when the shard is full
}

// reserve accounts for one more node in use, respecting MaxNodes.
func (p *Pool) reserve() bool {
	if p.maxNodes == 0 {
		p.live.Add(1)
		return true
	}
	for {
		cur := p.live.Load()
		if cur >= p.maxNodes {
			return false
		}
		if p.live.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Allocated: p.allocated.Load(),
		Reused:    p.reused.Load(),
		Freed:     p.freed.Load(),
		Failed:    p.failed.Load(),
		Live:      p.live.Load(),
	}
}

// Close releases the free list and logs the usage statistics. It returns
// ErrPoolInUse while any queue is still attached, and ErrPoolClosed if the
// pool has already been closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed.Load():
		return ErrPoolClosed
	case 0 < p.refs:
		return fmt.Errorf("%w: %d queues attached", ErrPoolInUse, p.refs)
	}
	p.closed.Store(true)

	p.readMu.Lock()
	for {
		if _, ok := p.free.TryRead(); !ok {
			break
		}
	}
	p.readMu.Unlock()

	st := p.Stats()
	p.logger.Info("node pool closed",
		slog.Uint64("allocated", st.Allocated),
		slog.Uint64("reused", st.Reused),
		slog.Uint64("freed", st.Freed),
		slog.Uint64("failed", st.Failed),
		slog.Int64("live", st.Live),
	)

	return nil
}

func roundPow2(v uint64) uint64 {
	n := uint64(1)
	for n < v {
		n <<= 1
	}
	return n
}
