// Command headerfetch drives a headerfetch.Fetcher to completion against a
// synthetic in-memory chain and synthetic peers (--demo, also used when no
// --config is given), reporting progress and terminal events. A TOML config
// sets the range and flow-control options; a run with --config but without
// --demo returns an error, since no SQL-backed chain or real transport is
// wired in.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/ethfetch/headerpipe/fetcher"
	"github.com/ethfetch/headerpipe/headerfetch"
	"github.com/ethfetch/headerpipe/log"
	"github.com/ethfetch/headerpipe/metrics"
	"github.com/ethfetch/headerpipe/peerpool"
)

func main() {
	app := &cli.App{
		Name:  "headerfetch",
		Usage: "pipelined block-header backfill over a peer-to-peer network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a TOML config file"},
			&cli.BoolFlag{Name: "demo", Usage: "run against a synthetic in-memory chain instead of --config's db"},
			&cli.IntFlag{Name: "peers", Value: 4, Usage: "number of synthetic peers to register in --demo mode"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		color.Red("headerfetch: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfgPath := c.String("config")
	var cfg fileConfig
	if cfgPath != "" {
		loaded, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cfg.First == "" {
		cfg.First = "1"
	}
	if cfg.Count == 0 {
		cfg.Count = 1024
	}
	first, ok := new(big.Int).SetString(cfg.First, 10)
	if !ok {
		return fmt.Errorf("invalid first block number %q", cfg.First)
	}

	pool := peerpool.NewPool(requestRateOrDefault(cfg.RequestsPerSecond), requestBurstOrDefault(cfg.RequestBurst))

	var chain headerfetch.Chain
	if c.Bool("demo") || cfgPath == "" {
		demo := newDemoChain()
		chain = demo
		for i := 0; i < c.Int("peers"); i++ {
			pool.Register(newDemoWire(fmt.Sprintf("demo-peer-%d", i)))
		}
		color.Yellow("running in --demo mode against %d synthetic peers", c.Int("peers"))
	} else {
		return fmt.Errorf("sql-backed runs need a devp2p transport wired into peerpool.Wire, which this command does not yet provide; pass --demo")
	}

	flow, err := headerfetch.NewLRUFlowControl(
		flowCacheSizeOrDefault(cfg.FlowControl.CacheSize),
		flowCostOrDefault(cfg.FlowControl.CostPerHeader),
		1<<30,
	)
	if err != nil {
		return fmt.Errorf("building flow control: %w", err)
	}

	hooks := headerfetch.New(headerfetch.Config{
		First:             first,
		Count:             cfg.Count,
		Reverse:           cfg.Reverse,
		MaxPerRequest:     maxPerRequestOrDefault(cfg.MaxPerRequest),
		SafeReorgDistance: cfg.SafeReorgDistance,
	}, chain, flow, reportingEvents{})

	reg := metrics.NewRegistry()
	engine := fetcher.New[headerfetch.Task, headerfetch.Header, headerfetch.Reply](
		fetcher.DefaultConfig(), pool, hooks, reportingEvents{}, reg,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := engine.Fetch(ctx); err != nil {
		return err
	}
	processed, finished, total := engine.Progress()
	color.Green("done: %d/%d processed, %d finished", processed, total, finished)
	return nil
}

func requestRateOrDefault(v float64) rate.Limit {
	if v <= 0 {
		return 20
	}
	return rate.Limit(v)
}

type reportingEvents struct{}

func (reportingEvents) FetcherError(err error, peer fetcher.Peer) {
	id := "<nil>"
	if peer != nil {
		id = peer.ID()
	}
	log.Warn("fetcher error", "err", err, "peer", id)
}

func (reportingEvents) FetchedHeaders(headers []headerfetch.Header) {
	if len(headers) == 0 {
		return
	}
	color.Cyan("stored %d headers, up to #%s", len(headers), headers[len(headers)-1].Number)
}

func requestBurstOrDefault(v int) int {
	if v <= 0 {
		return 32
	}
	return v
}

func flowCacheSizeOrDefault(v int) int {
	if v <= 0 {
		return 256
	}
	return v
}

func flowCostOrDefault(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}

func maxPerRequestOrDefault(v int) int {
	if v <= 0 {
		return 192
	}
	return v
}
