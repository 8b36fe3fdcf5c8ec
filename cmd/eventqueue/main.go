// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

// Command eventqueue drives an eventqueue.Queue with concurrent producers and
// consumers and reports what happened.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

var version = "v0.1.0"

func main() {
	cmd := &cli.Command{
		Name:    "eventqueue",
		Usage:   "Exercise a blocking FIFO event queue with producers and consumers",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Post events from producers and receive them with consumers",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "producers",
						Aliases: []string{"p"},
						Usage:   "Number of producer go-routines",
						Value:   4,
					},
					&cli.IntFlag{
						Name:    "consumers",
						Aliases: []string{"c"},
						Usage:   "Number of consumer go-routines",
						Value:   4,
					},
					&cli.IntFlag{
						Name:    "events",
						Aliases: []string{"n"},
						Usage:   "Events posted by each producer",
						Value:   10000,
					},
					&cli.DurationFlag{
						Name:    "timeout",
						Aliases: []string{"t"},
						Usage:   "Deadline of each consumer wait before it counts as idle",
						Value:   100 * time.Millisecond,
					},
					&cli.IntFlag{
						Name:  "max-nodes",
						Usage: "Maximum number of queued events (0 for unlimited)",
					},
					&cli.IntFlag{
						Name:  "shards",
						Usage: "Shards of the node free list",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Enable debug logging",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Disable the progress line",
					},
				},
				Action: runAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
