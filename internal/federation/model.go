package federation

import "time"

// ZoneStatus represents the lifecycle state of a sub-zone delegation.
type ZoneStatus string

const (
	StatusPending   ZoneStatus = "pending"
	StatusActive    ZoneStatus = "active"
	StatusSuspended ZoneStatus = "suspended"
)

// MaxAllowedPathLen bounds how many further intermediate hops a delegated
// sub-zone may itself issue below it.
const MaxAllowedPathLen = 5

// DelegatedZone is a sub-zone that has applied to join this zone's
// federation, identified by the distinguished name its INTERMEDIATE_CA
// certificate will carry as Subject.
type DelegatedZone struct {
	ID             string
	SubjectName    string
	EndpointURL    string
	IntermediateCA string
	MaxPathLen     int
	Status         ZoneStatus
	RegisteredAt   time.Time
	UpdatedAt      time.Time
}

// RegisterRequest is the payload for a new sub-zone delegation application.
type RegisterRequest struct {
	SubjectName  string `json:"subject_name"`
	EndpointURL  string `json:"endpoint_url"`
	ContactEmail string `json:"contact_email"`
}

// IssueCARequest requests an intermediate CA certificate for an approved sub-zone.
type IssueCARequest struct {
	SubjectName string `json:"subject_name"`
}

// IssueCAResponse contains the intermediate CA credentials returned to a
// sub-zone operator. The KeyPEM field is only ever delivered once and is
// never stored by the delegating zone.
type IssueCAResponse struct {
	SubjectName string `json:"subject_name"`
	CertPEM     string `json:"cert_pem"`
	KeyPEM      string `json:"key_pem"`
	Serial      string `json:"serial"`
	ExpiresAt   string `json:"expires_at"`
	RootCAPEM   string `json:"root_ca_pem"`
	Warning     string `json:"warning"`
}
