// Package trustledger implements a Merkle-chain audit log of zone-side
// lifecycle events: parameters proposals/activations and node publish/remove
// decisions.
//
// The chain begins with a well-known genesis entry whose Hash equals GenesisHash
// (64 hex zeros). Every subsequent entry records the SHA-256 of its predecessor,
// making any tampering detectable via Verify.
//
// Two implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for testing and development.
//   - PostgresLedger: durable, for production use.
package trustledger

// Action names a zone lifecycle event recorded in the ledger. Keeping this
// as a closed set (rather than a bare string) stops a typo in a call site
// from silently fragmenting the audit trail under a near-duplicate action
// name.
type Action string

const (
	ActionGenesis             Action = "genesis"
	ActionNodePublished       Action = "node.published"
	ActionNodeRemoved         Action = "node.removed"
	ActionParametersProposed  Action = "parameters.proposed"
	ActionParametersActivated Action = "parameters.activated"
)

// Actor identifies who or what caused an Action. Most zone-originated events
// use ActorZoneSystem; operator consent decisions use ActorOperator.
type Actor string

const (
	ActorZoneSystem Actor = "zone-system"
	ActorOperator   Actor = "operator"
)
