// Package setup builds the objects shared by the commands from a config.
package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/endpoint"
	"github.com/IvanBrykalov/pagecache/internal/config"
	"github.com/IvanBrykalov/pagecache/policy"
	"github.com/IvanBrykalov/pagecache/policy/lru"
	"github.com/IvanBrykalov/pagecache/policy/twoq"
	"github.com/IvanBrykalov/pagecache/source"
)

// Order selects how the synthetic list is presented.
type Order struct {
	Reverse bool
}

// Logger returns a text logger writing to w at the configured level.
func Logger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// Source returns the synthetic item source described by cfg.
func Source(cfg config.Config) *source.Memory[string] {
	return source.Generate(cfg.Source.Items, func(i int) string {
		return fmt.Sprintf("item %06d", i)
	}, source.WithLatency(cfg.Source.Latency.Duration), source.WithFailEvery(cfg.Source.FailEvery))
}

// Fetch wraps src.Fetch with the configured rate limit and in-flight bound.
func Fetch(cfg config.Config, src *source.Memory[string]) cache.Fetch[string] {
	fetch := cache.Fetch[string](src.Fetch)
	if cfg.Source.RateLimit > 0 {
		burst := max(int(cfg.Source.RateLimit), 1)
		fetch = source.RateLimited(fetch, rate.NewLimiter(rate.Limit(cfg.Source.RateLimit), burst))
	}
	return source.Bounded(fetch, cfg.Source.MaxInFlight)
}

// Ordered adapts fetch to an endpoint request honouring Order. A reversed
// page is fetched as the mirrored range of a list of total() items and
// flipped.
func Ordered(fetch cache.Fetch[string], total func() int) endpoint.Request[string, Order] {
	return func(ctx context.Context, offset, limit int, o Order) (cache.Page[string], error) {
		if !o.Reverse {
			return fetch(ctx, offset, limit)
		}
		n := total()
		from := max(n-offset-limit, 0)
		to := n - offset
		if to <= from {
			return cache.Page[string]{Total: n}, nil
		}
		page, err := fetch(ctx, from, to-from)
		if err != nil {
			return cache.Page[string]{}, err
		}
		items := make([]string, len(page.Items))
		for i, v := range page.Items {
			items[len(items)-1-i] = v
		}
		return cache.Page[string]{Total: page.Total, Items: items}, nil
	}
}

// Policy returns the residency policy named by cfg.
func Policy(cfg config.Config) policy.Policy {
	if cfg.Cache.Policy == "2q" {
		n := max(cfg.Cache.MaxSegments, 4)
		return twoq.New(n/4, n/2)
	}
	return lru.New()
}
