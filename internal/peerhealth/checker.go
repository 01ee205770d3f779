// Package peerhealth periodically probes the advertised endpoints of nodes
// in a zone's network map and flags unreachable ones, feeding the webhook
// dispatcher's node.health_degraded event.
package peerhealth

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds peer health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// NodeLister returns the nodes currently advertised in the zone's map.
type NodeLister interface {
	ListAdvertisedNodes(ctx context.Context) ([]Node, error)
}

// StatusUpdater records a node's most recent health status.
type StatusUpdater interface {
	UpdateHealthStatus(ctx context.Context, legalIdentity, status string, lastSeenAt time.Time) error
}

// Node is the minimal data needed to probe a peer's advertised endpoint.
type Node struct {
	LegalIdentity string
	Endpoint      string
}

// WebhookDispatchFunc matches webhooks.Service.Dispatch, letting a Checker
// feed node.health_degraded events straight into the dispatcher.
type WebhookDispatchFunc func(ctx context.Context, eventType string, payload map[string]string)

// MetricsRecordFunc is an optional callback for recording probe outcomes.
type MetricsRecordFunc func(success bool)

// Checker runs periodic peer endpoint probes.
type Checker struct {
	lister     NodeLister
	updater    StatusUpdater
	httpClient *http.Client
	failCounts map[string]int
	mu         sync.Mutex
	cfg        Config
	onWebhook  WebhookDispatchFunc
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a new Checker.
func New(lister NodeLister, updater StatusUpdater, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		lister:     lister,
		updater:    updater,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		failCounts: make(map[string]int),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetWebhookDispatch configures the webhook dispatch callback.
func (c *Checker) SetWebhookDispatch(fn WebhookDispatchFunc) {
	c.onWebhook = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the check loop until quit is signalled.
func (c *Checker) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// CheckAll probes every advertised node's endpoint with bounded concurrency.
func (c *Checker) CheckAll(ctx context.Context) {
	nodes, err := c.lister.ListAdvertisedNodes(ctx)
	if err != nil {
		c.logger.Error("peerhealth: list nodes", zap.Error(err))
		return
	}

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, n := range nodes {
		wg.Add(1)
		go func(node Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			success := c.probeEndpoint(ctx, node.Endpoint)

			if c.onMetrics != nil {
				c.onMetrics(success)
			}

			c.mu.Lock()
			prevCount := c.failCounts[node.LegalIdentity]
			if success {
				c.failCounts[node.LegalIdentity] = 0
			} else {
				c.failCounts[node.LegalIdentity]++
			}
			count := c.failCounts[node.LegalIdentity]
			c.mu.Unlock()

			now := time.Now().UTC()

			switch {
			case success:
				if err := c.updater.UpdateHealthStatus(ctx, node.LegalIdentity, "healthy", now); err != nil {
					c.logger.Warn("peerhealth: update status", zap.Error(err))
				}
				if prevCount >= c.cfg.FailThreshold {
					c.logger.Info("peerhealth: recovered", zap.String("legalIdentity", node.LegalIdentity))
				}
			case count == c.cfg.FailThreshold:
				if err := c.updater.UpdateHealthStatus(ctx, node.LegalIdentity, "degraded", now); err != nil {
					c.logger.Warn("peerhealth: update status", zap.Error(err))
				}
				c.logger.Warn("peerhealth: degraded",
					zap.String("legalIdentity", node.LegalIdentity),
					zap.Int("fail_count", count),
				)
				if c.onWebhook != nil {
					c.onWebhook(ctx, "node.health_degraded", map[string]string{
						"legal_identity": node.LegalIdentity,
						"endpoint":       node.Endpoint,
					})
				}
			}
		}(n)
	}

	wg.Wait()
}

// probeEndpoint attempts HEAD then GET, returning true if any 2xx response.
func (c *Checker) probeEndpoint(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
