package federation_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/federation"
	"github.com/andrea-athirat/corda/internal/operator"
)

func setupHandlerTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newInMemoryRepo()
	svc := federation.NewService(repo, nil, nil, zap.NewNop())

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	tokens := operator.NewTokenIssuer(key, "https://zone.example.com", 0)

	h := federation.NewHandler(svc, tokens, zap.NewNop())
	r := gin.New()
	v1 := r.Group("/")
	h.Register(v1)
	return r
}

func TestHandler_Register_publicEndpointAcceptsApplication(t *testing.T) {
	r := setupHandlerTest(t)

	body, _ := json.Marshal(federation.RegisterRequest{
		SubjectName: "O=Acme EU Zone,C=DE",
		EndpointURL: "https://eu-zone.acme.example",
	})
	req := httptest.NewRequest(http.MethodPost, "/federation/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_ListZones_requiresAdminSession(t *testing.T) {
	r := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/federation/zones", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session token, got %d", w.Code)
	}
}
