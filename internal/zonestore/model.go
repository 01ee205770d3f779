// Package zonestore persists a zone's network-map state — published node
// descriptors, the current and pending network parameters, and per-node
// health status — in PostgreSQL.
package zonestore

import "errors"

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("zonestore: not found")

// ErrNoPendingUpdate is returned by PendingUpdate when no parameters update
// is currently outstanding.
var ErrNoPendingUpdate = errors.New("zonestore: no pending parameters update")

// ErrNoCurrentParameters is returned by CurrentParameters before the zone
// has ever had a network-parameters document activated.
var ErrNoCurrentParameters = errors.New("zonestore: no current network parameters")
