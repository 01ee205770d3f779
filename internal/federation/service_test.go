package federation_test

import (
	"context"
	"crypto/x509/pkix"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/federation"
	"github.com/andrea-athirat/corda/internal/pki"
)

type inMemoryRepo struct {
	zones map[string]*federation.DelegatedZone
}

func newInMemoryRepo() *inMemoryRepo {
	return &inMemoryRepo{zones: make(map[string]*federation.DelegatedZone)}
}

func (r *inMemoryRepo) Create(_ context.Context, z *federation.DelegatedZone) error {
	id := uuid.New().String()
	z.ID = id
	r.zones[id] = z
	return nil
}

func (r *inMemoryRepo) GetBySubjectName(_ context.Context, subjectName string) (*federation.DelegatedZone, error) {
	for _, z := range r.zones {
		if z.SubjectName == subjectName {
			return z, nil
		}
	}
	return nil, federation.ErrNotFound
}

func (r *inMemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*federation.DelegatedZone, error) {
	if z, ok := r.zones[id.String()]; ok {
		return z, nil
	}
	return nil, federation.ErrNotFound
}

func (r *inMemoryRepo) List(_ context.Context, _ federation.ZoneStatus, _, _ int) ([]*federation.DelegatedZone, error) {
	return nil, nil
}

func (r *inMemoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status federation.ZoneStatus) error {
	z, ok := r.zones[id.String()]
	if !ok {
		return federation.ErrNotFound
	}
	z.Status = status
	return nil
}

func (r *inMemoryRepo) SetIntermediateCA(_ context.Context, id uuid.UUID, certPEM string) error {
	z, ok := r.zones[id.String()]
	if !ok {
		return federation.ErrNotFound
	}
	z.IntermediateCA = certPEM
	return nil
}

func (r *inMemoryRepo) UpdateMaxPathLen(_ context.Context, id uuid.UUID, maxPathLen int) error {
	z, ok := r.zones[id.String()]
	if !ok {
		return federation.ErrNotFound
	}
	z.MaxPathLen = maxPathLen
	return nil
}

func TestService_IssueIntermediateCA_signsUnderZoneRoot(t *testing.T) {
	root, err := pki.CreateSelfSignedRoot(pkix.Name{CommonName: "acme root zone"}, pki.SchemeECDSASecp256r1SHA256, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("CreateSelfSignedRoot: %v", err)
	}

	repo := newInMemoryRepo()
	svc := federation.NewService(repo, root.Cert, root.KeyPair.Private, zap.NewNop())

	zone, err := svc.Register(context.Background(), &federation.RegisterRequest{
		SubjectName: "O=Acme EU Zone,C=DE",
		EndpointURL: "https://eu-zone.acme.example",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := uuid.Parse(zone.ID)
	if err != nil {
		t.Fatalf("parse zone id: %v", err)
	}
	if _, err := svc.Approve(context.Background(), id); err != nil {
		t.Fatalf("approve: %v", err)
	}

	resp, err := svc.IssueIntermediateCA(context.Background(), "O=Acme EU Zone,C=DE")
	if err != nil {
		t.Fatalf("IssueIntermediateCA: %v", err)
	}
	if resp.CertPEM == "" || resp.KeyPEM == "" {
		t.Fatal("expected a non-empty cert and key PEM")
	}

	cert, err := pki.Parse([]byte(resp.CertPEM))
	if err != nil {
		t.Fatalf("parse issued cert: %v", err)
	}
	role, ok, err := pki.ExtractRole(cert)
	if err != nil {
		t.Fatalf("ExtractRole: %v", err)
	}
	if !ok || role != pki.RoleIntermediateCA {
		t.Errorf("expected an INTERMEDIATE_CA role extension, got role=%v ok=%v", role, ok)
	}
	if !cert.IsCA {
		t.Error("expected issued certificate to be a CA")
	}
}

func TestService_IssueIntermediateCA_rejectsPendingZone(t *testing.T) {
	root, err := pki.CreateSelfSignedRoot(pkix.Name{CommonName: "acme root zone"}, pki.SchemeECDSASecp256r1SHA256, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("CreateSelfSignedRoot: %v", err)
	}

	repo := newInMemoryRepo()
	svc := federation.NewService(repo, root.Cert, root.KeyPair.Private, zap.NewNop())

	if _, err := svc.Register(context.Background(), &federation.RegisterRequest{
		SubjectName: "O=Acme EU Zone,C=DE",
		EndpointURL: "https://eu-zone.acme.example",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.IssueIntermediateCA(context.Background(), "O=Acme EU Zone,C=DE"); err == nil {
		t.Error("expected error for a zone still pending approval")
	}
}
