// Package nodecache holds the local cache of peer node descriptors the
// network-map updater reconciles against the zone's advertised map.
package nodecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/andrea-athirat/corda/internal/wire"
)

// Hash identifies a signed artifact by the SHA-256 of its encoded payload
// bytes, matching the content-addressing scheme the network-map endpoints use.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalJSON encodes a Hash as a hex string rather than the default
// array-of-ints [32]byte would otherwise produce.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a Hash from the hex string MarshalJSON produces.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal hash: %w", err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hash hex: %w", err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("hash: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return nil
}

// HashOf computes the content hash of raw payload bytes.
func HashOf(payload []byte) Hash {
	return sha256.Sum256(payload)
}

// NodeInfo is a peer descriptor: at least one legal identity, a monotonic
// serial used only to detect redundant updates, and an opaque remainder
// (addresses, platform version, and anything else the zone doesn't need to
// interpret).
type NodeInfo struct {
	LegalIdentities []string       `json:"legalIdentities"`
	Serial          int64          `json:"serial"`
	Addresses       []string       `json:"addresses"`
	PlatformVersion int            `json:"platformVersion"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// Equal reports whether two NodeInfo values are identical ignoring Serial,
// the comparison UpdateNodeInfo uses to decide whether a change is real.
func (n NodeInfo) Equal(other NodeInfo) bool {
	if len(n.LegalIdentities) != len(other.LegalIdentities) {
		return false
	}
	for i, id := range n.LegalIdentities {
		if other.LegalIdentities[i] != id {
			return false
		}
	}
	if len(n.Addresses) != len(other.Addresses) {
		return false
	}
	for i, a := range n.Addresses {
		if other.Addresses[i] != a {
			return false
		}
	}
	if len(n.Extra) != 0 || len(other.Extra) != 0 {
		a, errA := json.Marshal(n.Extra)
		b, errB := json.Marshal(other.Extra)
		if errA != nil || errB != nil || string(a) != string(b) {
			return false
		}
	}
	return n.PlatformVersion == other.PlatformVersion
}

// SignedNodeInfo is the wire-signed form of a NodeInfo, as published and
// fetched over the network-map client.
type SignedNodeInfo = wire.SignedWith[NodeInfo]
