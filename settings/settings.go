// Package settings exposes the external collaborators the reconciliation
// pipeline consumes but does not own: per-bridge chain parameters and the
// active account for the "mine only" view filter.
package settings

import (
	"context"
	"sync"
	"time"
)

// BridgeParams are the per-bridge parameters read from the chain-settings
// provider. They refresh independently of the reconciliation cycle.
type BridgeParams struct {
	// MinTransferAge is how old a transfer must be before it can be
	// claimed on the destination side.
	MinTransferAge time.Duration
}

// ChainSettingsSource resolves the parameters of one bridge instance.
type ChainSettingsSource interface {
	Params(ctx context.Context, network, bridgeAddress string) (BridgeParams, error)
}

// AccountSource supplies the active user address, if any. Used only for
// the post-reconciliation "mine only" filter; classification never sees it.
type AccountSource interface {
	ActiveAddress(ctx context.Context) (string, bool)
}

// Static is an in-memory ChainSettingsSource and AccountSource, good for
// configuration-file deployments and tests.
type Static struct {
	mu       sync.RWMutex
	params   map[string]BridgeParams // network/bridgeAddress -> params
	fallback BridgeParams
	account  string
}

func NewStatic(fallback BridgeParams) *Static {
	return &Static{
		params:   map[string]BridgeParams{},
		fallback: fallback,
	}
}

func (s *Static) SetParams(network, bridgeAddress string, p BridgeParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[network+"/"+bridgeAddress] = p
}

func (s *Static) Params(ctx context.Context, network, bridgeAddress string) (BridgeParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.params[network+"/"+bridgeAddress]; ok {
		return p, nil
	}
	return s.fallback, nil
}

func (s *Static) SetActiveAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = addr
}

func (s *Static) ActiveAddress(ctx context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.account != ""
}
