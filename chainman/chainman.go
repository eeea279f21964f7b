// Package chainman is the RPC plumbing for one observed network: provider
// handles, event-log filtering for the configured bridge instances, and
// decoding of raw logs into transfer and claim records.
package chainman

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/common"
)

// Client is the slice of the ethclient surface the watcher needs.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Provider is one candidate RPC endpoint for a network.
type Provider struct {
	URL    string
	client Client
}

func (p *Provider) String() string { return p.URL }

type Chainman struct {
	cfg       *Config
	providers []*Provider
}

// New dials every configured endpoint. Provider order follows the config so
// fetch results are reproducible for a fixed provider list.
func New(cfg *Config) (*Chainman, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	providers := make([]*Provider, 0, len(cfg.RPCURLs))
	for _, url := range cfg.RPCURLs {
		client, err := ethclient.Dial(url)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", url)
		}
		providers = append(providers, &Provider{URL: url, client: client})
	}

	return &Chainman{cfg: cfg, providers: providers}, nil
}

// NewWithClients wires pre-built clients, used by tests in place of Dial.
func NewWithClients(cfg *Config, clients map[string]Client) (*Chainman, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	providers := make([]*Provider, 0, len(cfg.RPCURLs))
	for _, url := range cfg.RPCURLs {
		client, ok := clients[url]
		if !ok {
			return nil, errors.Errorf("no client supplied for %s", url)
		}
		providers = append(providers, &Provider{URL: url, client: client})
	}
	return &Chainman{cfg: cfg, providers: providers}, nil
}

func (c *Chainman) Network() string { return c.cfg.Network }

// Providers returns the endpoints in stable configured order.
func (c *Chainman) Providers() []*Provider { return c.providers }

// ChainTime resolves "now" in on-chain time from the latest header.
func (c *Chainman) ChainTime(ctx context.Context, p *Provider) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	header, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "latest header from %s", p.URL)
	}
	return int64(header.Time), nil
}

// BlockWindow converts a history window in hours into a [from, to] block
// range using the network's nominal block interval.
func (c *Chainman) BlockWindow(ctx context.Context, p *Provider, hours float64) (*big.Int, *big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	latest, err := p.client.BlockNumber(callCtx)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "latest block from %s", p.URL)
	}

	span := uint64(hours * 3600 / float64(c.cfg.SecondsPerBlock))
	from := uint64(0)
	if latest > span {
		from = latest - span
	}
	return new(big.Int).SetUint64(from), new(big.Int).SetUint64(latest), nil
}

// FetchTransfers retrieves and decodes TransferRequested events from every
// configured bridge within the window. A single undecodable log is skipped
// and logged, never fatal to the batch.
func (c *Chainman) FetchTransfers(ctx context.Context, p *Provider, windowHours float64) ([]bridge.TransferEvent, error) {
	from, to, err := c.BlockWindow(ctx, p, windowHours)
	if err != nil {
		return nil, err
	}

	out := []bridge.TransferEvent{}
	for _, inst := range c.cfg.Bridges {
		logs, err := c.filterLogs(ctx, p, inst.Address, from, to, [][]ethcommon.Hash{{TransferRequestedSigHash}})
		if err != nil {
			return nil, err
		}
		for _, lg := range logs {
			ev, err := decodeTransfer(lg, inst, c.cfg)
			if err != nil {
				logger.WithFields(logger.Fields{
					"network": c.cfg.Network,
					"bridge":  inst.Address.Hex(),
					"tx":      common.Shorten(lg.TxHash.Hex(), 8),
				}).Warnf("skipping undecodable transfer log: %v", err)
				continue
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

// FetchClaims retrieves claim lifecycle events from every configured bridge
// within the window and folds them into claim snapshots.
func (c *Chainman) FetchClaims(ctx context.Context, p *Provider, windowHours float64) ([]bridge.ClaimRecord, error) {
	from, to, err := c.BlockWindow(ctx, p, windowHours)
	if err != nil {
		return nil, err
	}

	topics := [][]ethcommon.Hash{{
		ClaimCreatedSigHash,
		ClaimStakedSigHash,
		ClaimFinishedSigHash,
		ClaimWithdrawnSigHash,
	}}

	out := []bridge.ClaimRecord{}
	for _, inst := range c.cfg.Bridges {
		logs, err := c.filterLogs(ctx, p, inst.Address, from, to, topics)
		if err != nil {
			return nil, err
		}
		set := newClaimSet()
		for _, lg := range logs {
			if err := set.apply(lg, inst, c.cfg); err != nil {
				logger.WithFields(logger.Fields{
					"network": c.cfg.Network,
					"bridge":  inst.Address.Hex(),
					"tx":      common.Shorten(lg.TxHash.Hex(), 8),
				}).Warnf("skipping claim log: %v", err)
			}
		}
		out = append(out, set.records()...)
	}

	if c.cfg.ClaimLimit > 0 && len(out) > c.cfg.ClaimLimit {
		// keep the newest claims
		out = out[len(out)-c.cfg.ClaimLimit:]
	}
	return out, nil
}

func (c *Chainman) filterLogs(ctx context.Context, p *Provider, addr ethcommon.Address, from, to *big.Int, topics [][]ethcommon.Hash) ([]types.Log, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	query := ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []ethcommon.Address{addr},
		Topics:    topics,
	}
	logs, err := p.client.FilterLogs(callCtx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "filter logs via %s", p.URL)
	}
	return logs, nil
}
