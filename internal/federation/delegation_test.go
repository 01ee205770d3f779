package federation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// inMemoryFedRepo is a minimal in-memory federationRepo for delegation tests.
type inMemoryFedRepo struct {
	zones map[string]*DelegatedZone
}

func newInMemoryFedRepo() *inMemoryFedRepo {
	return &inMemoryFedRepo{zones: make(map[string]*DelegatedZone)}
}

func (r *inMemoryFedRepo) Create(_ context.Context, z *DelegatedZone) error {
	id := uuid.New().String()
	z.ID = id
	r.zones[id] = z
	return nil
}

func (r *inMemoryFedRepo) GetBySubjectName(_ context.Context, subjectName string) (*DelegatedZone, error) {
	for _, z := range r.zones {
		if z.SubjectName == subjectName {
			return z, nil
		}
	}
	return nil, ErrNotFound
}

func (r *inMemoryFedRepo) GetByID(_ context.Context, id uuid.UUID) (*DelegatedZone, error) {
	if z, ok := r.zones[id.String()]; ok {
		return z, nil
	}
	return nil, ErrNotFound
}

func (r *inMemoryFedRepo) List(_ context.Context, _ ZoneStatus, _, _ int) ([]*DelegatedZone, error) {
	return nil, nil
}

func (r *inMemoryFedRepo) UpdateStatus(_ context.Context, id uuid.UUID, status ZoneStatus) error {
	z, ok := r.zones[id.String()]
	if !ok {
		return ErrNotFound
	}
	z.Status = status
	return nil
}

func (r *inMemoryFedRepo) SetIntermediateCA(_ context.Context, id uuid.UUID, certPEM string) error {
	z, ok := r.zones[id.String()]
	if !ok {
		return ErrNotFound
	}
	z.IntermediateCA = certPEM
	return nil
}

func (r *inMemoryFedRepo) UpdateMaxPathLen(_ context.Context, id uuid.UUID, maxPathLen int) error {
	z, ok := r.zones[id.String()]
	if !ok {
		return ErrNotFound
	}
	z.MaxPathLen = maxPathLen
	return nil
}

func TestUpdateMaxPathLen_Validation(t *testing.T) {
	repo := newInMemoryFedRepo()
	svc := NewService(repo, nil, nil, zap.NewNop())

	zone, err := svc.Register(context.Background(), &RegisterRequest{
		SubjectName: "O=Acme EU Zone,C=DE",
		EndpointURL: "https://eu-zone.acme.example",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id, _ := uuid.Parse(zone.ID)

	if err := svc.UpdateMaxPathLen(context.Background(), id, -1); err == nil {
		t.Error("expected error for negative max_path_len, got nil")
	}
	if err := svc.UpdateMaxPathLen(context.Background(), id, MaxAllowedPathLen+1); err == nil {
		t.Errorf("expected error for max_path_len > %d, got nil", MaxAllowedPathLen)
	}
	for _, v := range []int{0, 1, MaxAllowedPathLen} {
		if err := svc.UpdateMaxPathLen(context.Background(), id, v); err != nil {
			t.Errorf("UpdateMaxPathLen(%d) unexpected error: %v", v, err)
		}
	}
}

func TestUpdateMaxPathLen_NotFound(t *testing.T) {
	repo := newInMemoryFedRepo()
	svc := NewService(repo, nil, nil, zap.NewNop())

	bogusID := uuid.New()
	if err := svc.UpdateMaxPathLen(context.Background(), bogusID, 1); err == nil {
		t.Error("expected error for non-existent zone, got nil")
	}
}

func TestIssueIntermediateCA_requiresRootSigner(t *testing.T) {
	repo := newInMemoryFedRepo()
	svc := NewService(repo, nil, nil, zap.NewNop())

	if _, err := svc.Register(context.Background(), &RegisterRequest{
		SubjectName: "O=Acme EU Zone,C=DE",
		EndpointURL: "https://eu-zone.acme.example",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// No root signer configured: must fail regardless of zone status.
	if _, err := svc.IssueIntermediateCA(context.Background(), "O=Acme EU Zone,C=DE"); err == nil {
		t.Error("expected error when no root signer is configured")
	}
}
