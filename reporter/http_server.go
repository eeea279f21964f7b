// This is a http type of reporter.
// It publishes the reconciliation snapshot held by the pipeline
// on read-only http routes, plus a refresh trigger.

package reporter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bridgelens-io/bridgelens/cache"
	"github.com/bridgelens-io/bridgelens/pipeline"
	"github.com/bridgelens-io/bridgelens/settings"
)

const (
	ROUTE_AGGREGATED = "/aggregated"
	ROUTE_COMPLETED  = "/completed"
	ROUTE_SUSPICIOUS = "/suspicious"
	ROUTE_PENDING    = "/pending"
	ROUTE_STATUS     = "/status"
	ROUTE_REFRESH    = "/refresh"
	ROUTE_CACHE      = "/cache"
	ROUTE_METRICS    = "/metrics"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	pipe     *pipeline.Pipeline
	accounts settings.AccountSource // optional, enables ?mine=1
}

func NewHttpReporter(serverIP string, serverPort string, pipe *pipeline.Pipeline, accounts settings.AccountSource) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		pipe:       pipe,
		accounts:   accounts,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_AGGREGATED, h.Aggregated)
	router.GET(ROUTE_COMPLETED, h.Completed)
	router.GET(ROUTE_SUSPICIOUS, h.Suspicious)
	router.GET(ROUTE_PENDING, h.Pending)
	router.GET(ROUTE_STATUS, h.Status)
	router.POST(ROUTE_REFRESH, h.Refresh)
	router.DELETE(ROUTE_CACHE, h.ClearCache)
	router.GET(ROUTE_METRICS, gin.WrapH(promhttp.Handler()))

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// snapshot loads the cached entry and applies the ?mine=1 view filter
// when an active account is configured.
func (h *HttpReporter) snapshot(c *gin.Context) (*cache.Entry, cache.Staleness, bool) {
	entry, st, ok := h.pipe.Snapshot(c.Request.Context())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot cached yet, POST /refresh first"})
		return nil, cache.Staleness{}, false
	}

	if c.Query("mine") == "1" {
		if h.accounts == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no active account configured"})
			return nil, cache.Staleness{}, false
		}
		addr, found := h.accounts.ActiveAddress(c.Request.Context())
		if !found {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no active account configured"})
			return nil, cache.Staleness{}, false
		}
		filtered := *entry
		filtered.Aggregated = pipeline.FilterMine(entry.Aggregated, addr)
		return &filtered, st, true
	}
	return entry, st, true
}

func (h *HttpReporter) Aggregated(c *gin.Context) {
	entry, st, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      entry.Aggregated,
		"savedAt":   entry.SavedAt,
		"staleness": st,
	})
}

func (h *HttpReporter) Completed(c *gin.Context) {
	entry, _, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry.Aggregated.Completed})
}

func (h *HttpReporter) Suspicious(c *gin.Context) {
	entry, _, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":          entry.Aggregated.Suspicious,
		"fraudDetected": entry.Aggregated.FraudDetected,
	})
}

func (h *HttpReporter) Pending(c *gin.Context) {
	entry, _, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry.Aggregated.Pending})
}

// Status reports snapshot age and whether a refresh is in flight.
func (h *HttpReporter) Status(c *gin.Context) {
	resp := gin.H{"refreshing": h.pipe.Refreshing()}

	entry, st, ok := h.pipe.Snapshot(c.Request.Context())
	resp["cached"] = ok
	if ok {
		resp["savedAt"] = entry.SavedAt
		resp["ageMs"] = st.Age.Milliseconds()
		resp["stale"] = st.Stale
		resp["stats"] = entry.Aggregated.Stats
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh re-fetches both chains and rebuilds the snapshot. Concurrent
// triggers for the same snapshot are rejected, not queued.
func (h *HttpReporter) Refresh(c *gin.Context) {
	entry, err := h.pipe.Refresh(c.Request.Context())
	if err == pipeline.ErrRefreshInFlight {
		c.JSON(http.StatusConflict, gin.H{"error": "refresh already in progress"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"savedAt": entry.SavedAt,
		"stats":   entry.Aggregated.Stats,
	})
}

func (h *HttpReporter) ClearCache(c *gin.Context) {
	if err := h.pipe.ClearCache(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
