package networkmap

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/pki"
)

// TransportError is raised for any non-2xx response from the zone registry.
type TransportError struct {
	Status int
	Body   []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("networkmap: transport error: status %d: %s", e.Status, string(e.Body))
}

// Client is a typed HTTP client against one zone's network-map endpoints,
// configured with the zone URL and the root of trust the returned network
// map's signature is checked against.
type Client struct {
	zoneURL      string
	trustedRoot  *x509.Certificate
	httpClient   *http.Client
}

// NewClient returns a Client targeting zoneURL, trusting trustedRoot as the
// anchor for getNetworkMap's role-bound signature check.
func NewClient(zoneURL string, trustedRoot *x509.Certificate, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{zoneURL: zoneURL, trustedRoot: trustedRoot, httpClient: httpClient}
}

func (c *Client) base() string { return c.zoneURL + "/network-map" }

// Publish posts a signed node-info descriptor to the zone.
func (c *Client) Publish(ctx context.Context, signed *nodecache.SignedNodeInfo) error {
	body, err := json.Marshal(signed)
	if err != nil {
		return fmt.Errorf("%w: marshal signed node-info: %v", pki.ErrPayloadInvalid, err)
	}
	return c.postOctetStream(ctx, c.base()+"/publish", body)
}

// AckParametersUpdate posts the operator's signature over an accepted
// parameters hash.
func (c *Client) AckParametersUpdate(ctx context.Context, signed *SignedHash) error {
	body, err := json.Marshal(signed)
	if err != nil {
		return fmt.Errorf("%w: marshal signed hash: %v", pki.ErrPayloadInvalid, err)
	}
	return c.postOctetStream(ctx, c.base()+"/ack-parameters", body)
}

func (c *Client) postOctetStream(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request to %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &TransportError{Status: resp.StatusCode, Body: respBody}
	}
	return nil
}

// GetNetworkMap fetches, parses, and role-authenticates the zone's signed
// network map, returning it alongside the poll interval derived from the
// response's Cache-Control header.
func (c *Client) GetNetworkMap(ctx context.Context) (*NetworkMap, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build network-map request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch network map: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, 0, &TransportError{Status: resp.StatusCode, Body: body}
	}

	maxAge := parseCacheControlMaxAge(resp.Header.Values("Cache-Control"))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read network map body: %w", err)
	}
	var signed SignedNetworkMap
	if err := json.Unmarshal(body, &signed); err != nil {
		return nil, 0, fmt.Errorf("%w: decode signed network map: %v", pki.ErrPayloadInvalid, err)
	}
	if err := signed.Verify(); err != nil {
		return nil, 0, err
	}
	if err := pki.VerifyRoleBound(signed.SignerCert, signed.Chain(), c.trustedRoot, pki.RoleNetworkMap); err != nil {
		return nil, 0, err
	}

	nm, err := decodeMap(&signed)
	if err != nil {
		return nil, 0, err
	}
	return &nm, maxAge, nil
}

// GetNodeInfo fetches a signed node-info descriptor addressed by content
// hash, verifying its signature before returning it.
func (c *Client) GetNodeInfo(ctx context.Context, hash nodecache.Hash) (*nodecache.SignedNodeInfo, error) {
	url := fmt.Sprintf("%s/node-info/%s", c.base(), hash.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build node-info request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch node-info %s: %w", hash, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &TransportError{Status: resp.StatusCode, Body: body}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read node-info body: %w", err)
	}
	var signed nodecache.SignedNodeInfo
	if err := json.Unmarshal(body, &signed); err != nil {
		return nil, fmt.Errorf("%w: decode signed node-info: %v", pki.ErrPayloadInvalid, err)
	}
	if err := signed.Verify(); err != nil {
		return nil, err
	}
	return &signed, nil
}

// GetNetworkParameters fetches a signed parameters document addressed by
// content hash. The envelope's signature is not checked here:
// the updater verifies it before broadcasting the pending update.
func (c *Client) GetNetworkParameters(ctx context.Context, hash nodecache.Hash) (*SignedNetworkParameters, error) {
	url := fmt.Sprintf("%s/network-parameters/%s", c.base(), hash.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build network-parameters request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch network-parameters %s: %w", hash, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &TransportError{Status: resp.StatusCode, Body: body}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read network-parameters body: %w", err)
	}
	var signed SignedNetworkParameters
	if err := json.Unmarshal(body, &signed); err != nil {
		return nil, fmt.Errorf("%w: decode signed network parameters: %v", pki.ErrPayloadInvalid, err)
	}
	return &signed, nil
}

// MyPublicHostname returns the zone's view of this node's public hostname.
func (c *Client) MyPublicHostname(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/my-hostname", nil)
	if err != nil {
		return "", fmt.Errorf("build my-hostname request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch my-hostname: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return "", &TransportError{Status: resp.StatusCode, Body: body}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read my-hostname body: %w", err)
	}
	line, _, _ := strings.Cut(string(body), "\n")
	return strings.TrimSpace(line), nil
}

// parseCacheControlMaxAge extracts the max-age directive from one or more
// Cache-Control header values, tolerating a missing header and taking the
// first value when several are present.
func parseCacheControlMaxAge(values []string) time.Duration {
	if len(values) == 0 {
		return 0
	}
	for _, part := range strings.Split(values[0], ",") {
		part = strings.TrimSpace(part)
		name, val, found := strings.Cut(part, "=")
		if !found || strings.ToLower(strings.TrimSpace(name)) != "max-age" {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	return 0
}
