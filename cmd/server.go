// Server = one chain manager per watched network + fetch/classify pipeline
// + snapshot cache + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/bridgelens-io/bridgelens/bridge"
	"github.com/bridgelens-io/bridgelens/cache"
	"github.com/bridgelens-io/bridgelens/chainman"
	"github.com/bridgelens-io/bridgelens/classify"
	"github.com/bridgelens-io/bridgelens/fetch"
	"github.com/bridgelens-io/bridgelens/pipeline"
	"github.com/bridgelens-io/bridgelens/reporter"
	"github.com/bridgelens-io/bridgelens/settings"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	defaultWindowHours     = 24.0
	defaultSecondsPerBlock = 12
	defaultStaleAfter      = 10 * time.Minute
)

// One watched network: where to connect and which bridge contracts to read.
type NetworkConfig struct {
	Network         string   // logical name, eg. "sepolia"
	RpcUrls         []string // fallback providers, tried in order
	ExportBridges   []string // bridge contracts transfers leave through
	ImportBridges   []string // bridge contracts claims arrive on
	SecondsPerBlock int64    // block cadence, for hours -> blocks
}

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type WatchServerConfig struct {
	// chain side
	HomeNetwork NetworkConfig
	FarNetwork  NetworkConfig

	// fetch side
	WindowHours float64 // how far back to search, in hours
	ClaimLimit  int     // newest claims kept per bridge, 0 = unlimited

	// cache side
	StoreBackend    string // "sqlite" or "redis"
	DbFilePath      string // sqlite snapshot db
	RedisURL        string // redis connection url
	StaleAfter      time.Duration
	RefreshInterval time.Duration // 0 disables the background refresh loop

	// monitoring preferences
	ActiveAccount  string        // enables the ?mine=1 view, may be empty
	MinTransferAge time.Duration // transfers younger than this count as not yet claimable

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// WatchServer holds the objects that consists of the watch server.
type WatchServer struct {
	HomeChain *chainman.Chainman
	FarChain  *chainman.Chainman

	MyStore    cache.Store
	MyCacheMgr *cache.Manager
	MySettings *settings.Static
	MyPipeline *pipeline.Pipeline
	MyReporter *reporter.HttpReporter
}

func bridgeInstances(nc NetworkConfig) []chainman.BridgeInstance {
	var out []chainman.BridgeInstance
	for _, addr := range nc.ExportBridges {
		out = append(out, chainman.BridgeInstance{Address: ethcommon.HexToAddress(addr), Side: bridge.SideExport})
	}
	for _, addr := range nc.ImportBridges {
		out = append(out, chainman.BridgeInstance{Address: ethcommon.HexToAddress(addr), Side: bridge.SideImport})
	}
	return out
}

func setupChain(nc NetworkConfig, counterpart string, claimLimit int) (*chainman.Chainman, error) {
	secondsPerBlock := nc.SecondsPerBlock
	if secondsPerBlock == 0 {
		secondsPerBlock = defaultSecondsPerBlock
	}
	cm, err := chainman.New(&chainman.Config{
		Network:            nc.Network,
		CounterpartNetwork: counterpart,
		RPCURLs:            nc.RpcUrls,
		Bridges:            bridgeInstances(nc),
		SecondsPerBlock:    secondsPerBlock,
		CallTimeout:        30 * time.Second,
		ClaimLimit:         claimLimit,
	})
	if err != nil {
		logger.Errorf("cannot set up chain manager for %s: %v", nc.Network, err)
		return nil, err
	}
	return cm, nil
}

// NewWatchServer creates a new watch server.
// ctx is used for parental context to cancel the background refresh loop.
// wg is used to wait for the goroutines inside the server to finish.
func NewWatchServer(wsc *WatchServerConfig, ctx context.Context, wg *sync.WaitGroup) (*WatchServer, error) {
	// 0) connect to both networks
	homeChain, err := setupChain(wsc.HomeNetwork, wsc.FarNetwork.Network, wsc.ClaimLimit)
	if err != nil {
		return nil, err
	}
	farChain, err := setupChain(wsc.FarNetwork, wsc.HomeNetwork.Network, wsc.ClaimLimit)
	if err != nil {
		return nil, err
	}

	// 1) create the snapshot store + cache manager
	store, err := SetupStore(wsc.StoreBackend, wsc.DbFilePath, wsc.RedisURL)
	if err != nil {
		return nil, err
	}
	staleAfter := wsc.StaleAfter
	if staleAfter == 0 {
		staleAfter = defaultStaleAfter
	}
	cacheMgr := cache.NewManager(store, cache.WithStaleAfter(staleAfter))

	// 2) monitoring preferences (active account, claimable age)
	mySettings := settings.NewStatic(settings.BridgeParams{MinTransferAge: wsc.MinTransferAge})
	if wsc.ActiveAccount != "" {
		mySettings.SetActiveAddress(wsc.ActiveAccount)
	}

	// 3) assemble the pipeline
	windowHours := wsc.WindowHours
	if windowHours == 0 {
		windowHours = defaultWindowHours
	}
	networks := []string{wsc.HomeNetwork.Network, wsc.FarNetwork.Network}
	myPipeline := pipeline.New(pipeline.Config{
		Key:         pipeline.RefreshKey(networks, windowHours),
		WindowHours: windowHours,
		Policy:      fetch.DefaultRetryPolicy(),
		Classify:    classify.Options{},
	},
		[]*chainman.Chainman{homeChain, farChain},
		cacheMgr,
		pipeline.WithSettings(mySettings),
		pipeline.WithNotifier(fetch.NotifierFunc(func(st fetch.Status) {
			logger.WithFields(logger.Fields{
				"operation": string(st.OperationType),
				"attempt":   st.Attempt,
				"max":       st.MaxAttempts,
				"delayMs":   st.DelayMs,
			}).Info("retrying fetch operation")
		})),
	)

	// 4) background refresh loop
	if wsc.RefreshInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refreshLoop(ctx, myPipeline, wsc.RefreshInterval)
		}()
	}

	// *** Setup a http server to report status ***
	httpServer := reporter.NewHttpReporter(
		wsc.HttpIp,
		wsc.HttpPort,
		myPipeline,
		mySettings,
	)
	// Turn on the http server
	go httpServer.Run()

	// Give it some time to start the http server
	time.Sleep(1 * time.Second)
	// *** End the setup of http server ***

	return &WatchServer{
		HomeChain:  homeChain,
		FarChain:   farChain,
		MyStore:    store,
		MyCacheMgr: cacheMgr,
		MySettings: mySettings,
		MyPipeline: myPipeline,
		MyReporter: httpServer,
	}, nil
}

// refreshLoop re-fetches on a fixed cadence until the context is canceled.
// A refresh already triggered over http just skips the tick.
func refreshLoop(ctx context.Context, pipe *pipeline.Pipeline, interval time.Duration) {
	// first snapshot right away
	if _, err := pipe.Refresh(ctx); err != nil && err != pipeline.ErrRefreshInFlight {
		logger.Errorf("initial refresh failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := pipe.Refresh(ctx); err != nil && err != pipeline.ErrRefreshInFlight {
				logger.Errorf("scheduled refresh failed: %v", err)
			}
		}
	}
}

// Create, then start the watch server and wait.
// Press Ctrl-C to kill the server.
func StartWatchServerAndWait(wsc *WatchServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewWatchServer(wsc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create watch server: %v", err)
		return
	}

	// wait for the background routines to finish
	wg.Wait()
}
