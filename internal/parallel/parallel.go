// Package parallel splits CPU kernels across goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config bounds how a loop is split. A zero Config runs serially.
type Config struct {
	Enabled      bool
	NumWorkers   int // goroutines running at once
	MinChunkSize int // a block never holds fewer indices than this
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{Enabled: n > 1, NumWorkers: n, MinChunkSize: 64}
}

// Serial runs every loop on the calling goroutine.
func Serial() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

func (c Config) serial(n int) bool {
	return !c.Enabled || c.NumWorkers <= 1 || n < c.MinChunkSize
}

// For calls f(i) for every i in [0, n).
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	}, cfg)
}

// ForRange calls f on disjoint blocks [lo, hi) that together cover [0, n).
// At most cfg.NumWorkers blocks run concurrently and ForRange returns once
// all of them have.
func ForRange(n int, f func(lo, hi int), cfg Config) {
	if n <= 0 {
		return
	}
	if cfg.serial(n) {
		f(0, n)
		return
	}

	block := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for lo := 0; lo < n; lo += block {
		hi := min(lo+block, n)
		g.Go(func() error {
			f(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
