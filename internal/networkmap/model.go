// Package networkmap implements the network-map client and the
// reconciliation updater that drives it.
package networkmap

import (
	"time"

	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/wire"
)

// NetworkParameters carries the consensus-critical settings a zone
// advertises. Fields beyond the ones consulted by the updater are opaque to
// this package; they exist for the operator console and node runtime to
// interpret.
type NetworkParameters struct {
	MinimumPlatformVersion int            `json:"minimumPlatformVersion"`
	MaxMessageSize         int            `json:"maxMessageSize"`
	Epoch                  int            `json:"epoch"`
	Notaries               []string       `json:"notaries"`
	ModifiedTime           time.Time      `json:"modifiedTime"`
	Extra                  map[string]any `json:"extra,omitempty"`
}

// ParametersUpdate is the pending transition record a zone embeds in its
// network map while an operator-consented parameters change is outstanding.
type ParametersUpdate struct {
	NewParametersHash nodecache.Hash `json:"newParametersHash"`
	Description       string         `json:"description"`
	FlagDay           time.Time      `json:"flagDay"`
}

// ParametersUpdateInfo is the event shape broadcast on the updater's
// parametersUpdates feed once a pending update's parameters bytes have been
// fetched and verified.
type ParametersUpdateInfo struct {
	Hash        nodecache.Hash
	Params      NetworkParameters
	Description string
	FlagDay     time.Time
}

// NetworkMap is the signed document a zone publishes: the parameters hash it
// currently advertises, the node-info hashes it knows about, and an optional
// pending parameters update.
type NetworkMap struct {
	NetworkParameterHash nodecache.Hash     `json:"networkParameterHash"`
	NodeInfoHashes       []nodecache.Hash   `json:"nodeInfoHashes"`
	ParametersUpdate     *ParametersUpdate  `json:"parametersUpdate,omitempty"`
}

// SignedNetworkMap is the wire-signed form returned by getNetworkMap.
type SignedNetworkMap = wire.SignedWith[NetworkMap]

// SignedNetworkParameters is the wire-signed form returned by
// getNetworkParameters.
type SignedNetworkParameters = wire.SignedWith[NetworkParameters]

// SignedHash is the envelope ackParametersUpdate posts: the operator's
// signature over a bare content hash.
type SignedHash = wire.SignedWith[nodecache.Hash]

// decodeMap decodes a verified signed network map's payload.
func decodeMap(signed *SignedNetworkMap) (NetworkMap, error) {
	return wire.Decode(signed)
}

// hashSet builds a lookup set from a hash slice.
func hashSet(hashes []nodecache.Hash) map[nodecache.Hash]struct{} {
	set := make(map[nodecache.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}
