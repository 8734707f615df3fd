package wallet

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

var errNoProviders = errors.New("no wallet providers injected yet")

// DiscoverResult outcome of an asynchronous discovery
// DiscoverResult 异步发现的结果
type DiscoverResult struct {
	Providers []string
	Err       error
}

// Discover polls the registry with exponential backoff until at least one provider
// appears or the attempt budget is spent. Exhaustion yields an empty set, not an error;
// only cancellation of ctx is reported.
// Discover 以指数退避轮询插件注册表，直到发现插件或次数耗尽。次数耗尽返回空集合，仅 ctx 取消时返回错误
func (g *Gateway) Discover(ctx context.Context) ([]string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.DiscoveryInterval
	b.MaxInterval = g.cfg.DiscoveryMaxInterval
	b.Multiplier = 1.5
	b.RandomizationFactor = 0.2

	attempt := 0
	op := func() ([]string, error) {
		attempt++
		names, err := g.registry.Providers(ctx)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, errNoProviders
		}
		return names, nil
	}

	names, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.cfg.DiscoveryAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.logger.Debug("wallet discovery retry", zap.Int("attempt", attempt), zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.logger.Info("no wallet providers found", zap.Int("attempts", attempt))
		names = []string{}
	}

	found := make([]string, len(names))
	copy(found, names)
	sort.Strings(found)

	g.mu.Lock()
	g.providers = found
	g.mu.Unlock()

	out := make([]string, len(found))
	copy(out, found)
	return out, nil
}

// DiscoverAsync runs Discover in the background; cancel ctx to abandon it
// DiscoverAsync 在后台执行 Discover，取消 ctx 即可放弃
func (g *Gateway) DiscoverAsync(ctx context.Context) <-chan DiscoverResult {
	ch := make(chan DiscoverResult, 1)
	go func() {
		defer close(ch)
		names, err := g.Discover(ctx)
		ch <- DiscoverResult{Providers: names, Err: err}
	}()
	return ch
}

// Providers returns the names found by the last discovery
// Providers 返回最近一次发现的插件名称
func (g *Gateway) Providers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.providers...)
}
