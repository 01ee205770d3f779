package zonehttp_test

import (
	"bytes"
	"context"
	"crypto/x509/pkix"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/networkmap"
	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/pki"
	"github.com/andrea-athirat/corda/internal/wire"
	"github.com/andrea-athirat/corda/internal/zonehttp"
)

// fakeStore is a minimal in-memory stand-in for zonestore.Store.
type fakeStore struct {
	mu         sync.Mutex
	nodes      map[nodecache.Hash]*nodecache.SignedNodeInfo
	params     map[nodecache.Hash]*networkmap.SignedNetworkParameters
	paramsHash nodecache.Hash
	pending    *networkmap.ParametersUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:  make(map[nodecache.Hash]*nodecache.SignedNodeInfo),
		params: make(map[nodecache.Hash]*networkmap.SignedNetworkParameters),
	}
}

func (s *fakeStore) PublishNode(_ context.Context, signed *nodecache.SignedNodeInfo) (nodecache.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := nodecache.HashOf(signed.Payload)
	s.nodes[hash] = signed
	return hash, nil
}

func (s *fakeStore) NodeByHash(_ context.Context, hash nodecache.Hash) (*nodecache.SignedNodeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[hash]
	if !ok {
		return nil, nodecacheNotFound
	}
	return n, nil
}

func (s *fakeStore) RemoveNode(_ context.Context, hash nodecache.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, hash)
	return nil
}

func (s *fakeStore) CurrentMap(_ context.Context) (networkmap.NetworkMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hashes []nodecache.Hash
	for h := range s.nodes {
		hashes = append(hashes, h)
	}
	return networkmap.NetworkMap{
		NetworkParameterHash: s.paramsHash,
		NodeInfoHashes:       hashes,
		ParametersUpdate:     s.pending,
	}, nil
}

func (s *fakeStore) ParametersByHash(_ context.Context, hash nodecache.Hash) (*networkmap.SignedNetworkParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[hash]
	if !ok {
		return nil, nodecacheNotFound
	}
	return p, nil
}

func (s *fakeStore) PendingUpdate(_ context.Context) (*networkmap.ParametersUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, nodecacheNotFound
	}
	return s.pending, nil
}

func (s *fakeStore) ActivateParameters(_ context.Context, hash nodecache.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paramsHash = hash
	s.pending = nil
	return nil
}

var nodecacheNotFound = fakeNotFoundErr{}

type fakeNotFoundErr struct{}

func (fakeNotFoundErr) Error() string { return "not found" }

// ── Test helpers ─────────────────────────────────────────────────────────

func setupTestRouter(t *testing.T) (*gin.Engine, *fakeStore, *pki.Issued, *pki.Issued) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root, err := pki.CreateSelfSignedRoot(pkix.Name{CommonName: "Test Zone Root"}, pki.DefaultScheme, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	nmCert, err := pki.CreateCertificate(pki.TypeNetworkMap, pkix.Name{CommonName: "Test Zone Network Map"}, pki.DefaultScheme, root.Cert, root.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("create network map cert: %v", err)
	}

	store := newFakeStore()
	h := zonehttp.NewHandler(store, nil, nil, root.Cert, nmCert.Cert, nmCert.KeyPair.Private, nil, "zone.example.com", nil, zap.NewNop())

	r := gin.New()
	v1 := r.Group("/")
	h.Register(v1, nil)
	return r, store, root, nmCert
}

func TestGetNetworkMap_returnsSignedMap(t *testing.T) {
	router, _, root, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/network-map", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var signed networkmap.SignedNetworkMap
	if err := json.Unmarshal(w.Body.Bytes(), &signed); err != nil {
		t.Fatalf("decode signed map: %v", err)
	}
	if err := signed.Verify(); err != nil {
		t.Fatalf("verify signature: %v", err)
	}
	if err := pki.VerifyRoleBound(signed.SignerCert, signed.Chain(), root.Cert, pki.RoleNetworkMap); err != nil {
		t.Fatalf("verify role binding: %v", err)
	}
	if cc := w.Header().Get("Cache-Control"); cc == "" {
		t.Error("expected Cache-Control header to be set")
	}
}

func TestPublish_rejectsUnverifiableSignature(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	payload, _ := wire.Encode(nodecache.NodeInfo{LegalIdentities: []string{"O=Bad,C=US"}, Serial: 1})
	bogus := &nodecache.SignedNodeInfo{Payload: payload, Signature: []byte("not-a-signature")}
	body, _ := json.Marshal(bogus)

	req := httptest.NewRequest(http.MethodPost, "/network-map/publish", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a signer-less envelope, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMyHostname_returnsConfiguredHostname(t *testing.T) {
	router, _, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/network-map/my-hostname", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "zone.example.com\n" {
		t.Errorf("expected hostname body, got %q", got)
	}
}
