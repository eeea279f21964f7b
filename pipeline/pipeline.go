// Package pipeline drives one refresh cycle: fan out the claim and transfer
// fetches per network, reconcile the full normalized set once everything has
// settled, and persist the result as the new last-known-good snapshot.
package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/cache"
	"github.com/bridgelens-io/bridgelens/canon"
	"github.com/bridgelens-io/bridgelens/chainman"
	"github.com/bridgelens-io/bridgelens/classify"
	"github.com/bridgelens-io/bridgelens/fetch"
	"github.com/bridgelens-io/bridgelens/metrics"
	"github.com/bridgelens-io/bridgelens/settings"
)

// ErrRefreshInFlight is returned to a caller whose refresh request was
// coalesced into an already-running one.
var ErrRefreshInFlight = errors.New("a refresh for this key is already running")

type Config struct {
	// Key is the logical cache key of this watcher instance.
	Key string

	// WindowHours is the requested history window per fetch operation.
	WindowHours float64

	Policy   fetch.RetryPolicy
	Classify classify.Options
}

type Pipeline struct {
	cfg      Config
	chains   []*chainman.Chainman
	cacheMgr *cache.Manager
	notifier fetch.Notifier
	settings settings.ChainSettingsSource
}

type Option func(*Pipeline)

// WithNotifier forwards retry-status notifications to a progress display.
func WithNotifier(n fetch.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithSettings attaches the chain-settings provider used to mark pending
// transfers that are not yet old enough to be claimable.
func WithSettings(s settings.ChainSettingsSource) Option {
	return func(p *Pipeline) { p.settings = s }
}

func New(cfg Config, chains []*chainman.Chainman, cacheMgr *cache.Manager, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		chains:   chains,
		cacheMgr: cacheMgr,
	}
	for _, op := range opts {
		op(p)
	}
	return p
}

// Snapshot returns the cached last-known-good entry, if any. It never
// blocks on the network.
func (p *Pipeline) Snapshot(ctx context.Context) (*cache.Entry, cache.Staleness, bool) {
	return p.cacheMgr.Load(ctx, p.cfg.Key)
}

// Refreshing reports whether a refresh is currently in flight.
func (p *Pipeline) Refreshing() bool {
	return p.cacheMgr.Refreshing(p.cfg.Key)
}

// ClearCache drops the persisted snapshot.
func (p *Pipeline) ClearCache(ctx context.Context) error {
	return p.cacheMgr.Clear(ctx, p.cfg.Key)
}

// opResult is one settled fetch operation. Each goroutine owns exactly one
// slot, so the fan-out shares no mutable state.
type opResult struct {
	network   string
	op        fetch.OperationType
	claims    []bridge.ClaimRecord
	transfers []bridge.TransferEvent
	window    fetch.Window
	err       error
}

// Refresh runs one full cycle. Concurrent calls for the same key coalesce:
// the loser gets ErrRefreshInFlight and should keep showing the cached
// snapshot. On total fetch failure the cache is left untouched.
func (p *Pipeline) Refresh(ctx context.Context) (*cache.Entry, error) {
	release, ok := p.cacheMgr.BeginRefresh(p.cfg.Key)
	if !ok {
		return nil, ErrRefreshInFlight
	}
	defer release()

	metrics.RefreshTotal.Inc()
	started := time.Now()

	results := make([]opResult, 2*len(p.chains))
	var g errgroup.Group
	for i, cm := range p.chains {
		i, cm := i, cm
		g.Go(func() error {
			results[2*i] = p.runOp(ctx, cm, fetch.OperationClaims)
			return results[2*i].err
		})
		g.Go(func() error {
			results[2*i+1] = p.runOp(ctx, cm, fetch.OperationTransfers)
			return results[2*i+1].err
		})
	}
	// every operation settles before classification; errgroup.Group without
	// a derived context never cancels the siblings of a failed operation
	firstErr := g.Wait()

	if firstErr != nil {
		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
				logger.WithFields(logger.Fields{
					"network":   r.network,
					"operation": string(r.op),
				}).Errorf("fetch operation failed: %v", r.err)
			}
		}
		metrics.RefreshFailuresTotal.Inc()
		return nil, errors.Wrapf(firstErr, "%d of %d fetch operations failed", failed, len(results))
	}

	var claims []bridge.ClaimRecord
	var transfers []bridge.TransferEvent
	windows := make(map[string]fetch.Window, len(results))
	for _, r := range results {
		claims = append(claims, r.claims...)
		transfers = append(transfers, r.transfers...)
		windows[r.network+"/"+string(r.op)] = r.window
	}

	aggregated := classify.ReconcileWithOptions(claims, transfers, p.cfg.Classify)
	aggregated.Stats.NotYetClaimable = p.countNotYetClaimable(ctx, aggregated.Pending)

	metrics.SuspiciousClaims.Set(float64(len(aggregated.Suspicious)))
	metrics.PendingTransfers.Set(float64(len(aggregated.Pending)))
	metrics.RefreshDuration.Observe(time.Since(started).Seconds())

	entry := &cache.Entry{
		Claims:     claims,
		Transfers:  transfers,
		Aggregated: aggregated,
		Windows:    windows,
	}
	return p.cacheMgr.Save(ctx, p.cfg.Key, entry), nil
}

func (p *Pipeline) runOp(ctx context.Context, cm *chainman.Chainman, op fetch.OperationType) opResult {
	o := fetch.NewOrchestrator(cm.Network(), p.cfg.Policy, fetch.WithNotifier(p.notifier))
	window := fetch.Window{Hours: p.cfg.WindowHours}

	res := opResult{network: cm.Network(), op: op, window: window}
	switch op {
	case fetch.OperationClaims:
		res.claims, res.window, res.err = fetch.Run(ctx, o, cm.Providers(), op, window,
			func(ctx context.Context, pr *chainman.Provider, w fetch.Window) ([]bridge.ClaimRecord, error) {
				return cm.FetchClaims(ctx, pr, w.Hours)
			})
	default:
		res.transfers, res.window, res.err = fetch.Run(ctx, o, cm.Providers(), op, window,
			func(ctx context.Context, pr *chainman.Provider, w fetch.Window) ([]bridge.TransferEvent, error) {
				return cm.FetchTransfers(ctx, pr, w.Hours)
			})
	}
	return res
}

// countNotYetClaimable marks how many pending transfers are younger than
// their network's minimum transfer age, resolved against on-chain time.
func (p *Pipeline) countNotYetClaimable(ctx context.Context, pending []bridge.TransferEvent) int {
	if p.settings == nil || len(pending) == 0 {
		return 0
	}

	chainNow := p.chainTimes(ctx)
	count := 0
	for _, tr := range pending {
		params, err := p.settings.Params(ctx, tr.SourceNetwork, "")
		if err != nil || params.MinTransferAge <= 0 {
			continue
		}
		ts, ok := canon.Timestamp(tr.Timestamp)
		if !ok {
			continue
		}
		now, ok := chainNow[tr.SourceNetwork]
		if !ok {
			now = time.Now().Unix()
		}
		if time.Duration(now-ts)*time.Second < params.MinTransferAge {
			count++
		}
	}
	return count
}

// chainTimes resolves "now" per network in on-chain time, best effort.
func (p *Pipeline) chainTimes(ctx context.Context) map[string]int64 {
	out := make(map[string]int64, len(p.chains))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, cm := range p.chains {
		cm := cm
		wg.Add(1)
		go func() {
			defer wg.Done()
			providers := cm.Providers()
			if len(providers) == 0 {
				return
			}
			now, err := cm.ChainTime(ctx, providers[0])
			if err != nil {
				logger.Debugf("chain time for %s unavailable: %v", cm.Network(), err)
				return
			}
			mu.Lock()
			out[cm.Network()] = now
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// RefreshKey builds a stable logical cache key from the watched networks
// and the requested window.
func RefreshKey(networks []string, windowHours float64) string {
	key := "watch"
	for _, n := range networks {
		key += ":" + n
	}
	return key + ":" + strconv.FormatFloat(windowHours, 'g', -1, 64) + "h"
}
