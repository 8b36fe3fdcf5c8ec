// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/tunabay/go-eventqueue"
)

// stop is posted once per consumer after all producers are done.
type stop struct{}

type runConfig struct {
	producers int
	consumers int
	events    int
	timeout   time.Duration
	maxNodes  int
	shards    int
}

type runStats struct {
	posted     atomic.Int64
	delivered  atomic.Int64
	retries    atomic.Int64
	idle       atomic.Int64
	depth      atomic.Int64
	waiters    atomic.Int64
	peakDepth  atomic.Int64
	peakWaiter atomic.Int64
	elapsed    time.Duration
	pool       eventqueue.PoolStats
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	rc := runConfig{
		producers: int(cmd.Int("producers")),
		consumers: int(cmd.Int("consumers")),
		events:    int(cmd.Int("events")),
		timeout:   cmd.Duration("timeout"),
		maxNodes:  int(cmd.Int("max-nodes")),
		shards:    int(cmd.Int("shards")),
	}
	if rc.producers < 1 || rc.consumers < 1 || rc.events < 0 {
		return fmt.Errorf("producers and consumers must be positive, events non-negative")
	}

	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var progress io.Writer
	if !cmd.Bool("quiet") && term.IsTerminal(int(os.Stderr.Fd())) {
		progress = os.Stderr
	}

	st, err := run(ctx, rc, logger, progress)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, rc, st)

	want := int64(rc.producers * rc.events)
	if got := st.delivered.Load(); got != want {
		return fmt.Errorf("delivered %d events, want %d", got, want)
	}
	return nil
}

func run(ctx context.Context, rc runConfig, logger *slog.Logger, progress io.Writer) (*runStats, error) {
	pool, err := eventqueue.NewPool(&eventqueue.PoolConfig{
		MaxNodes: rc.maxNodes,
		Shards:   rc.shards,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	q, err := eventqueue.NewWithConfig(&eventqueue.Config{
		Allocator: pool,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	st := &runStats{}
	q.RegisterEventWatcher(eventqueue.WatcherFunc(func(count int, _ eventqueue.Direction) {
		st.depth.Store(int64(count))
		if int64(count) > st.peakDepth.Load() {
			st.peakDepth.Store(int64(count))
		}
	}))
	q.RegisterWaiterWatcher(eventqueue.WatcherFunc(func(count int, _ eventqueue.Direction) {
		st.waiters.Store(int64(count))
		if int64(count) > st.peakWaiter.Load() {
			st.peakWaiter.Store(int64(count))
		}
	}))

	started := time.Now()
	done := make(chan struct{})
	if progress != nil {
		go reportProgress(progress, st, done)
	}

	var consumers sync.WaitGroup
	for i := 0; i < rc.consumers; i++ {
		consumers.Add(1)
		go func(id int) {
			defer consumers.Done()
			consume(q, rc.timeout, st, logger.With(slog.Int("consumer", id)))
		}(i)
	}

	var producers sync.WaitGroup
	for i := 0; i < rc.producers; i++ {
		producers.Add(1)
		go func(id int) {
			defer producers.Done()
			for n := 0; n < rc.events; n++ {
				if err := post(ctx, q, id*rc.events+n, st); err != nil {
					logger.Error("producer stopped", slog.Int("producer", id), slog.Any("error", err))
					return
				}
				st.posted.Add(1)
			}
		}(i)
	}
	producers.Wait()

	for i := 0; i < rc.consumers; i++ {
		if err := post(context.Background(), q, stop{}, st); err != nil {
			return nil, err
		}
	}
	consumers.Wait()
	st.elapsed = time.Since(started)
	close(done)
	if progress != nil {
		fmt.Fprintln(progress)
	}

	if lost := q.Close(); lost != 0 {
		logger.Warn("events left in queue", slog.Int("count", lost))
	}
	st.pool = pool.Stats()
	if err := pool.Close(); err != nil {
		return nil, err
	}

	return st, nil
}

// post retries on allocation failure until the event is queued or ctx is
// done.
func post(ctx context.Context, q *eventqueue.Queue, ev any, st *runStats) error {
	backoff := time.Microsecond
	for {
		err := q.Post(ev)
		if err == nil {
			return nil
		}
		if !errors.Is(err, eventqueue.ErrAllocation) {
			return err
		}
		st.retries.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < time.Millisecond {
			backoff *= 2
		}
	}
}

func consume(q *eventqueue.Queue, timeout time.Duration, st *runStats, logger *slog.Logger) {
	for {
		ev, err := q.TimedWaitFor(timeout)
		switch {
		case errors.Is(err, eventqueue.ErrTimedOut):
			st.idle.Add(1)
			logger.Debug("idle", slog.Duration("timeout", timeout))
			continue
		case err != nil:
			logger.Error("wait failed", slog.Any("error", err))
			return
		}
		if _, ok := ev.(stop); ok {
			return
		}
		st.delivered.Add(1)
	}
}

func reportProgress(w io.Writer, st *runStats, done <-chan struct{}) {
	t := time.NewTicker(time.Second / 10)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			fmt.Fprintf(w, "\rdelivered %d  depth %d  waiters %d  ",
				st.delivered.Load(), st.depth.Load(), st.waiters.Load())
		}
	}
}

func printSummary(w io.Writer, rc runConfig, st *runStats) {
	fmt.Fprintf(w, "producers:     %d\n", rc.producers)
	fmt.Fprintf(w, "consumers:     %d\n", rc.consumers)
	fmt.Fprintf(w, "posted:        %d\n", st.posted.Load())
	fmt.Fprintf(w, "delivered:     %d\n", st.delivered.Load())
	fmt.Fprintf(w, "post retries:  %d\n", st.retries.Load())
	fmt.Fprintf(w, "idle waits:    %d\n", st.idle.Load())
	fmt.Fprintf(w, "peak depth:    %d\n", st.peakDepth.Load())
	fmt.Fprintf(w, "peak waiters:  %d\n", st.peakWaiter.Load())
	fmt.Fprintf(w, "nodes created: %d (reused %d)\n", st.pool.Allocated, st.pool.Reused)
	fmt.Fprintf(w, "elapsed:       %s\n", st.elapsed.Round(time.Millisecond))
	if secs := st.elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "throughput:    %.0f events/s\n", float64(st.delivered.Load())/secs)
	}
}
