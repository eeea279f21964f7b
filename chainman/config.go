package chainman

import (
	"errors"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/bridgelens-io/bridgelens/bridge"
)

// BridgeInstance is one deployed half of a bridge pair on this network.
type BridgeInstance struct {
	Address ethcommon.Address
	Side    bridge.BridgeSide
}

// Config describes one network the watcher observes.
type Config struct {
	// Network is the logical name records fetched here are tagged with.
	Network string

	// CounterpartNetwork is the other end of the bridge route.
	CounterpartNetwork string

	// RPCURLs are the candidate endpoints, tried in this order.
	RPCURLs []string

	// Bridges are the bridge-instance contracts to scan.
	Bridges []BridgeInstance

	// SecondsPerBlock is the nominal block interval used to convert a
	// history window in hours into a block range.
	SecondsPerBlock int64

	// CallTimeout bounds each individual RPC call.
	CallTimeout time.Duration

	// ClaimLimit caps how many claims one fetch returns (newest first);
	// zero means no cap.
	ClaimLimit int
}

const DefaultCallTimeout = 15 * time.Second

var (
	ErrNoProviders      = errors.New("no rpc providers configured")
	ErrNoBridges        = errors.New("no bridge instances configured")
	ErrBadBlockInterval = errors.New("seconds per block must be positive")
	ErrUnnamedNetwork   = errors.New("network name is empty")
)

func (cfg *Config) validate() error {
	if cfg.Network == "" {
		return ErrUnnamedNetwork
	}
	if len(cfg.RPCURLs) == 0 {
		return ErrNoProviders
	}
	if len(cfg.Bridges) == 0 {
		return ErrNoBridges
	}
	if cfg.SecondsPerBlock <= 0 {
		return ErrBadBlockInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return nil
}
