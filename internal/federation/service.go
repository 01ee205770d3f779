// Package federation lets a zone delegate to sub-zones by issuing them an
// INTERMEDIATE_CA certificate, so a node's chain can validate up through
// more than one CA hop (root → intermediate → node CA → leaf).
package federation

import (
	"context"
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/pki"
)

// Service provides business logic for zone-to-sub-zone delegation.
type Service struct {
	repo       federationRepo
	rootCert   *x509.Certificate // nil when this zone cannot issue intermediates
	rootSigner crypto.Signer
	logger     *zap.Logger
}

// NewService creates a Service. rootCert/rootSigner may both be nil for
// zones that cannot delegate further.
func NewService(repo federationRepo, rootCert *x509.Certificate, rootSigner crypto.Signer, logger *zap.Logger) *Service {
	return &Service{repo: repo, rootCert: rootCert, rootSigner: rootSigner, logger: logger}
}

// Register records a new sub-zone delegation application in pending state.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*DelegatedZone, error) {
	if req.SubjectName == "" {
		return nil, fmt.Errorf("subject_name is required")
	}
	if req.EndpointURL == "" {
		return nil, fmt.Errorf("endpoint_url is required")
	}

	zone := &DelegatedZone{
		SubjectName: req.SubjectName,
		EndpointURL: req.EndpointURL,
		Status:      StatusPending,
	}

	if err := s.repo.Create(ctx, zone); err != nil {
		return nil, fmt.Errorf("create delegated zone: %w", err)
	}

	s.logger.Info("sub-zone delegation registered",
		zap.String("subject_name", zone.SubjectName),
		zap.String("id", zone.ID),
	)
	return zone, nil
}

// Approve transitions a delegated zone from pending to active.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*DelegatedZone, error) {
	if err := s.repo.UpdateStatus(ctx, id, StatusActive); err != nil {
		return nil, fmt.Errorf("approve delegated zone: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}

// Suspend marks a delegated zone as suspended, blocking further delegation
// from it without revoking certificates already issued.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID) (*DelegatedZone, error) {
	if err := s.repo.UpdateStatus(ctx, id, StatusSuspended); err != nil {
		return nil, fmt.Errorf("suspend delegated zone: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}

// List returns delegated zones filtered by status.
func (s *Service) List(ctx context.Context, status ZoneStatus, limit, offset int) ([]*DelegatedZone, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// GetBySubjectName looks up a delegated zone by its certificate subject name.
func (s *Service) GetBySubjectName(ctx context.Context, subjectName string) (*DelegatedZone, error) {
	return s.repo.GetBySubjectName(ctx, subjectName)
}

// UpdateMaxPathLen records how many further intermediate hops the delegated
// zone may itself issue below it, within 0..MaxAllowedPathLen. The value is
// stored only: IssueIntermediateCA does not write a path-length constraint
// into the certificate it issues.
func (s *Service) UpdateMaxPathLen(ctx context.Context, id uuid.UUID, maxPathLen int) error {
	if maxPathLen < 0 || maxPathLen > MaxAllowedPathLen {
		return fmt.Errorf("max_path_len must be between 0 and %d", MaxAllowedPathLen)
	}
	return s.repo.UpdateMaxPathLen(ctx, id, maxPathLen)
}

// IssueIntermediateCA signs and returns an INTERMEDIATE_CA certificate for an
// approved sub-zone. The private key is returned once in the response and is
// never stored by the delegating zone.
func (s *Service) IssueIntermediateCA(ctx context.Context, subjectName string) (*IssueCAResponse, error) {
	if s.rootCert == nil || s.rootSigner == nil {
		return nil, fmt.Errorf("this zone cannot issue intermediate CAs (no root signer configured)")
	}

	zone, err := s.repo.GetBySubjectName(ctx, subjectName)
	if err != nil {
		return nil, fmt.Errorf("delegated zone not found for subject_name %q: %w", subjectName, err)
	}
	if zone.Status != StatusActive {
		return nil, fmt.Errorf("delegated zone %q must be active before issuing a CA cert (status: %s)", subjectName, zone.Status)
	}

	issued, err := pki.CreateCertificate(
		pki.TypeIntermediateCA,
		pkix.Name{CommonName: subjectName},
		pki.DefaultScheme,
		s.rootCert,
		s.rootSigner,
		pki.DefaultValidity,
	)
	if err != nil {
		return nil, fmt.Errorf("issue intermediate cert: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(issued.KeyPair.Private)
	if err != nil {
		return nil, fmt.Errorf("marshal intermediate private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	certPEM := pki.EncodePEM(issued.Cert.Raw)

	id, parseErr := uuid.Parse(zone.ID)
	if parseErr == nil {
		if dbErr := s.repo.SetIntermediateCA(ctx, id, string(certPEM)); dbErr != nil {
			s.logger.Error("persist intermediate CA cert (non-fatal)", zap.Error(dbErr))
		}
	}

	s.logger.Info("intermediate CA issued",
		zap.String("subject_name", subjectName),
		zap.String("serial", issued.Cert.SerialNumber.String()),
		zap.Time("expires_at", issued.Cert.NotAfter),
	)

	return &IssueCAResponse{
		SubjectName: subjectName,
		CertPEM:     string(certPEM),
		KeyPEM:      string(keyPEM),
		Serial:      issued.Cert.SerialNumber.String(),
		ExpiresAt:   issued.Cert.NotAfter.UTC().Format(time.RFC3339),
		RootCAPEM:   string(pki.EncodePEM(s.rootCert.Raw)),
		Warning:     "Store the key_pem securely. It will not be shown again.",
	}, nil
}
