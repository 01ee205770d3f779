// Package zonehttp implements the zone server's network-map HTTP surface:
// the endpoints a node's internal/networkmap.Client polls and publishes to.
package zonehttp

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/abuse"
	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/pki"
	"github.com/andrea-athirat/corda/internal/trustledger"
	"github.com/andrea-athirat/corda/internal/wire"

	"github.com/andrea-athirat/corda/internal/networkmap"
)

// zoneStore is the narrow persistence interface this handler needs — a
// subset of zonestore.Store's full surface, kept local so tests can supply
// a fake instead of a Postgres pool.
type zoneStore interface {
	PublishNode(ctx context.Context, signed *nodecache.SignedNodeInfo) (nodecache.Hash, error)
	NodeByHash(ctx context.Context, hash nodecache.Hash) (*nodecache.SignedNodeInfo, error)
	RemoveNode(ctx context.Context, hash nodecache.Hash) error
	CurrentMap(ctx context.Context) (networkmap.NetworkMap, error)
	ParametersByHash(ctx context.Context, hash nodecache.Hash) (*networkmap.SignedNetworkParameters, error)
	PendingUpdate(ctx context.Context) (*networkmap.ParametersUpdate, error)
	ActivateParameters(ctx context.Context, hash nodecache.Hash) error
}

// webhookDispatcher matches webhooks.Service.Dispatch, letting the handler
// fire zone-lifecycle events without depending on the concrete type.
type webhookDispatcher func(ctx context.Context, eventType string, payload map[string]string)

// Handler serves the network-map endpoints a zone exposes to nodes.
type Handler struct {
	store              zoneStore
	scorer             abuse.Scorer
	ledger             trustledger.Ledger
	trustRoot          *x509.Certificate
	signerCert         *x509.Certificate
	signerKey          crypto.Signer
	signerIntermediate *x509.Certificate
	hostname           string
	mapMaxAge          time.Duration
	onWebhook          webhookDispatcher
	metrics            *Metrics
	logger             *zap.Logger
}

// NewHandler creates a Handler. trustRoot is the zone's root of trust for
// validating publishing nodes' legal-identity certificates. signerCert must
// carry the zone's NETWORK_MAP role and be issued by signerIntermediate (the
// zone's node CA); signerKey is signerCert's matching private key.
// signerIntermediate is carried in every signed network map so a node can
// build a path back to trustRoot without already holding the zone's node CA
// certificate out of band.
func NewHandler(store zoneStore, scorer abuse.Scorer, ledger trustledger.Ledger, trustRoot, signerCert *x509.Certificate, signerKey crypto.Signer, signerIntermediate *x509.Certificate, hostname string, metrics *Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		store:              store,
		scorer:             scorer,
		ledger:             ledger,
		trustRoot:          trustRoot,
		signerCert:         signerCert,
		signerKey:          signerKey,
		signerIntermediate: signerIntermediate,
		hostname:           hostname,
		mapMaxAge:          30 * time.Second,
		metrics:            metrics,
		logger:             logger,
	}
}

// SetWebhookDispatch wires the node.joined (on publish) and
// parameters.activated (on ack) events into a webhook dispatcher.
func (h *Handler) SetWebhookDispatch(fn webhookDispatcher) {
	h.onWebhook = fn
}

// SetMapMaxAge overrides the Cache-Control max-age advertised on GetNetworkMap
// responses. Ignored if d is zero or negative.
func (h *Handler) SetMapMaxAge(d time.Duration) {
	if d > 0 {
		h.mapMaxAge = d
	}
}

// Register attaches the network-map routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup, publishRateLimit gin.HandlerFunc) {
	nm := rg.Group("/network-map")
	nm.GET("", h.GetNetworkMap)
	nm.GET("/my-hostname", h.MyHostname)
	nm.GET("/node-info/:hash", h.GetNodeInfo)
	nm.GET("/network-parameters/:hash", h.GetNetworkParameters)
	publish := nm.Group("")
	if publishRateLimit != nil {
		publish.Use(publishRateLimit)
	}
	publish.POST("/publish", h.Publish)
	publish.POST("/ack-parameters", h.AckParameters)
}

func (h *Handler) recordPoll(endpoint string) {
	if h.metrics != nil {
		h.metrics.PollsTotal.WithLabelValues(endpoint).Inc()
	}
}

// GetNetworkMap handles GET /network-map: assembles the current map, signs
// it under the zone's NETWORK_MAP identity, and returns it with a
// Cache-Control max-age hint for the polling node.
func (h *Handler) GetNetworkMap(c *gin.Context) {
	h.recordPoll("network-map")
	start := time.Now()

	nm, err := h.store.CurrentMap(c.Request.Context())
	if err != nil {
		h.logger.Error("assemble network map", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assemble network map"})
		return
	}

	payload, err := wire.Encode(nm)
	if err != nil {
		h.logger.Error("encode network map", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode network map"})
		return
	}
	var intermediates []*x509.Certificate
	if h.signerIntermediate != nil {
		intermediates = append(intermediates, h.signerIntermediate)
	}
	signed, err := wire.Sign[networkmap.NetworkMap](payload, h.signerKey, h.signerCert, intermediates...)
	if err != nil {
		h.logger.Error("sign network map", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign network map"})
		return
	}

	if h.metrics != nil {
		h.metrics.ReconcileSeconds.Observe(time.Since(start).Seconds())
	}

	c.Header("Cache-Control", fmt.Sprintf("max-age=%d", int(h.mapMaxAge.Seconds())))
	c.JSON(http.StatusOK, signed)
}

// MyHostname handles GET /network-map/my-hostname.
func (h *Handler) MyHostname(c *gin.Context) {
	h.recordPoll("my-hostname")
	c.String(http.StatusOK, "%s\n", h.hostname)
}

// GetNodeInfo handles GET /network-map/node-info/:hash.
func (h *Handler) GetNodeInfo(c *gin.Context) {
	h.recordPoll("node-info")
	var hash nodecache.Hash
	if err := hash.UnmarshalJSON([]byte(`"` + c.Param("hash") + `"`)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed hash"})
		return
	}
	signed, err := h.store.NodeByHash(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "node info not found"})
		return
	}
	c.JSON(http.StatusOK, signed)
}

// GetNetworkParameters handles GET /network-map/network-parameters/:hash.
func (h *Handler) GetNetworkParameters(c *gin.Context) {
	h.recordPoll("network-parameters")
	var hash nodecache.Hash
	if err := hash.UnmarshalJSON([]byte(`"` + c.Param("hash") + `"`)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed hash"})
		return
	}
	signed, err := h.store.ParametersByHash(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "network parameters not found"})
		return
	}
	c.JSON(http.StatusOK, signed)
}

// Publish handles POST /network-map/publish. The request body is the
// octet-stream JSON encoding of a wire.SignedWith[nodecache.NodeInfo], as
// internal/networkmap.Client.Publish sends it.
func (h *Handler) Publish(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var signed nodecache.SignedNodeInfo
	if err := json.Unmarshal(body, &signed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed signed node-info"})
		return
	}
	if signed.SignerCert == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "envelope carries no signer certificate"})
		return
	}
	if err := signed.Verify(); err != nil {
		h.recordPublish("bad_signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}
	if err := pki.VerifyRoleBound(signed.SignerCert, signed.Chain(), h.trustRoot, pki.RoleLegalIdentity); err != nil {
		h.recordPublish("wrong_role")
		c.JSON(http.StatusForbidden, gin.H{"error": "signer certificate is not a legal identity under this zone"})
		return
	}

	info, err := wire.Decode(&signed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed node-info payload"})
		return
	}

	if h.scorer != nil {
		report, err := h.scorer.Score(c.Request.Context(), info.LegalIdentities, info.Addresses)
		if err != nil {
			h.logger.Warn("abuse scoring failed", zap.Error(err))
		} else if report.Rejected {
			h.recordPublish("rejected")
			if h.metrics != nil {
				h.metrics.PublishesRejected.Inc()
			}
			c.JSON(http.StatusForbidden, gin.H{"error": "publish rejected by abuse scoring", "report": report})
			return
		}
	}

	hash, err := h.store.PublishNode(c.Request.Context(), &signed)
	if err != nil {
		h.logger.Error("publish node", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish node info"})
		return
	}

	if h.ledger != nil {
		subject := ""
		if len(info.LegalIdentities) > 0 {
			subject = info.LegalIdentities[0]
		}
		if _, err := h.ledger.Append(c.Request.Context(), subject, trustledger.ActionNodePublished, trustledger.ActorZoneSystem, hash.String()); err != nil {
			h.logger.Warn("ledger append failed", zap.Error(err))
		}
	}
	if h.onWebhook != nil {
		identity := ""
		if len(info.LegalIdentities) > 0 {
			identity = info.LegalIdentities[0]
		}
		h.onWebhook(c.Request.Context(), "node.joined", map[string]string{
			"legal_identity": identity,
			"hash":           hash.String(),
		})
	}

	h.recordPublish("accepted")
	c.JSON(http.StatusOK, gin.H{"hash": hash.String()})
}

func (h *Handler) recordPublish(outcome string) {
	if h.metrics != nil {
		h.metrics.PublishesTotal.WithLabelValues(outcome).Inc()
	}
}

// AckParameters handles POST /network-map/ack-parameters. The request body
// is the octet-stream JSON encoding of a wire.SignedWith[nodecache.Hash] —
// an operator's signature over the pending update's parameters hash, as
// internal/networkmap.Client.AckParametersUpdate sends it.
func (h *Handler) AckParameters(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var signed networkmap.SignedHash
	if err := json.Unmarshal(body, &signed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed signed hash"})
		return
	}
	if signed.SignerCert == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "envelope carries no signer certificate"})
		return
	}
	if err := signed.Verify(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	acceptedHash, err := wire.Decode(&signed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed hash payload"})
		return
	}

	pending, err := h.store.PendingUpdate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no pending parameters update"})
		return
	}
	if pending.NewParametersHash != acceptedHash {
		c.JSON(http.StatusConflict, gin.H{"error": networkmap.ErrUpdateConflict.Error()})
		return
	}

	if err := h.store.ActivateParameters(c.Request.Context(), acceptedHash); err != nil {
		h.logger.Error("activate parameters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to activate parameters"})
		return
	}

	if h.ledger != nil {
		if _, err := h.ledger.Append(c.Request.Context(), acceptedHash.String(), trustledger.ActionParametersActivated, trustledger.ActorOperator, acceptedHash.String()); err != nil {
			h.logger.Warn("ledger append failed", zap.Error(err))
		}
	}
	if h.onWebhook != nil {
		h.onWebhook(c.Request.Context(), "parameters.activated", map[string]string{
			"hash": acceptedHash.String(),
		})
	}

	c.Status(http.StatusNoContent)
}
