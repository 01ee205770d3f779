package zonestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/networkmap"
	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/peerhealth"
	"github.com/andrea-athirat/corda/internal/wire"
)

// Store is the PostgreSQL-backed persistence layer for a zone's network map:
// published nodes, network parameters, and a pending parameters update.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// ── Nodes ────────────────────────────────────────────────────────────────

// PublishNode admits a signed node-info document into the store, replacing
// any prior entry sharing one of its legal identities (a node republishing
// with a higher serial supersedes its own earlier advertisement).
func (s *Store) PublishNode(ctx context.Context, signed *nodecache.SignedNodeInfo) (nodecache.Hash, error) {
	info, err := wire.Decode(signed)
	if err != nil {
		return nodecache.Hash{}, fmt.Errorf("decode node info: %w", err)
	}
	hash := nodecache.HashOf(signed.Payload)

	envelope, err := json.Marshal(signed)
	if err != nil {
		return nodecache.Hash{}, fmt.Errorf("marshal node envelope: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nodecache.Hash{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, id := range info.LegalIdentities {
		if _, err := tx.Exec(ctx,
			`DELETE FROM zone_nodes WHERE hash <> $1 AND hash IN (
				SELECT hash FROM zone_node_identities WHERE legal_identity = $2
			)`, hash.String(), id,
		); err != nil {
			return nodecache.Hash{}, fmt.Errorf("replace prior node for identity %q: %w", id, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO zone_nodes (hash, payload, published_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (hash) DO UPDATE SET payload = EXCLUDED.payload`,
		hash.String(), envelope,
	); err != nil {
		return nodecache.Hash{}, fmt.Errorf("insert node: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM zone_node_identities WHERE hash = $1`, hash.String()); err != nil {
		return nodecache.Hash{}, fmt.Errorf("clear node identities: %w", err)
	}
	for _, id := range info.LegalIdentities {
		if _, err := tx.Exec(ctx,
			`INSERT INTO zone_node_identities (hash, legal_identity) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, hash.String(), id,
		); err != nil {
			return nodecache.Hash{}, fmt.Errorf("index node identity %q: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nodecache.Hash{}, fmt.Errorf("commit publish: %w", err)
	}

	s.logger.Debug("node published", zap.String("hash", hash.String()), zap.Strings("legalIdentities", info.LegalIdentities))
	return hash, nil
}

// RemoveNode deletes a published node and its identity index rows.
func (s *Store) RemoveNode(ctx context.Context, hash nodecache.Hash) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM zone_nodes WHERE hash = $1`, hash.String())
	if err != nil {
		return fmt.Errorf("remove node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NodeByHash returns the signed node-info envelope published under hash.
func (s *Store) NodeByHash(ctx context.Context, hash nodecache.Hash) (*nodecache.SignedNodeInfo, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM zone_nodes WHERE hash = $1`, hash.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	var signed nodecache.SignedNodeInfo
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, fmt.Errorf("decode node envelope: %w", err)
	}
	return &signed, nil
}

// ListNodeHashes returns every published node's content hash, the set a
// zone's network map advertises.
func (s *Store) ListNodeHashes(ctx context.Context) ([]nodecache.Hash, error) {
	rows, err := s.pool.Query(ctx, `SELECT hash FROM zone_nodes ORDER BY hash`)
	if err != nil {
		return nil, fmt.Errorf("list node hashes: %w", err)
	}
	defer rows.Close()

	var hashes []nodecache.Hash
	for rows.Next() {
		var hexHash string
		if err := rows.Scan(&hexHash); err != nil {
			return nil, fmt.Errorf("scan node hash: %w", err)
		}
		var h nodecache.Hash
		if err := h.UnmarshalJSON([]byte(`"` + hexHash + `"`)); err != nil {
			return nil, fmt.Errorf("parse node hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// ListAdvertisedNodes implements peerhealth.NodeLister: every published node
// with its first advertised address as the probe endpoint.
func (s *Store) ListAdvertisedNodes(ctx context.Context) ([]peerhealth.Node, error) {
	hashes, err := s.ListNodeHashes(ctx)
	if err != nil {
		return nil, err
	}

	var nodes []peerhealth.Node
	for _, h := range hashes {
		signed, err := s.NodeByHash(ctx, h)
		if err != nil {
			continue
		}
		info, err := wire.Decode(signed)
		if err != nil || len(info.Addresses) == 0 || len(info.LegalIdentities) == 0 {
			continue
		}
		nodes = append(nodes, peerhealth.Node{
			LegalIdentity: info.LegalIdentities[0],
			Endpoint:      info.Addresses[0],
		})
	}
	return nodes, nil
}

// UpdateHealthStatus implements peerhealth.StatusUpdater.
func (s *Store) UpdateHealthStatus(ctx context.Context, legalIdentity, status string, lastSeenAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO zone_node_health (legal_identity, status, last_seen_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (legal_identity) DO UPDATE SET status = EXCLUDED.status, last_seen_at = EXCLUDED.last_seen_at`,
		legalIdentity, status, lastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("update health status: %w", err)
	}
	return nil
}

// ── Network parameters ──────────────────────────────────────────────────

// SetNetworkParameters stores a signed network-parameters document without
// activating it. Returns the document's content hash.
func (s *Store) SetNetworkParameters(ctx context.Context, signed *networkmap.SignedNetworkParameters) (nodecache.Hash, error) {
	hash := nodecache.HashOf(signed.Payload)
	envelope, err := json.Marshal(signed)
	if err != nil {
		return nodecache.Hash{}, fmt.Errorf("marshal parameters envelope: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO zone_network_parameters (hash, payload, is_current)
		 VALUES ($1, $2, false)
		 ON CONFLICT (hash) DO NOTHING`,
		hash.String(), envelope,
	)
	if err != nil {
		return nodecache.Hash{}, fmt.Errorf("insert parameters: %w", err)
	}
	return hash, nil
}

// ParametersByHash returns the signed network-parameters document stored
// under hash.
func (s *Store) ParametersByHash(ctx context.Context, hash nodecache.Hash) (*networkmap.SignedNetworkParameters, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM zone_network_parameters WHERE hash = $1`, hash.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get parameters: %w", err)
	}
	var signed networkmap.SignedNetworkParameters
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, fmt.Errorf("decode parameters envelope: %w", err)
	}
	return &signed, nil
}

// CurrentParameters returns the zone's currently active network parameters
// and their content hash.
func (s *Store) CurrentParameters(ctx context.Context) (*networkmap.SignedNetworkParameters, nodecache.Hash, error) {
	var hexHash string
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT hash, payload FROM zone_network_parameters WHERE is_current = true`,
	).Scan(&hexHash, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nodecache.Hash{}, ErrNoCurrentParameters
		}
		return nil, nodecache.Hash{}, fmt.Errorf("get current parameters: %w", err)
	}
	var signed networkmap.SignedNetworkParameters
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, nodecache.Hash{}, fmt.Errorf("decode parameters envelope: %w", err)
	}
	var h nodecache.Hash
	if err := h.UnmarshalJSON([]byte(`"` + hexHash + `"`)); err != nil {
		return nil, nodecache.Hash{}, fmt.Errorf("parse parameters hash: %w", err)
	}
	return &signed, h, nil
}

// ActivateParameters marks hash as the zone's current network parameters and
// clears any pending update, within a single transaction.
func (s *Store) ActivateParameters(ctx context.Context, hash nodecache.Hash) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `UPDATE zone_network_parameters SET is_current = false WHERE is_current = true`); err != nil {
		return fmt.Errorf("clear current parameters: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE zone_network_parameters SET is_current = true WHERE hash = $1`, hash.String())
	if err != nil {
		return fmt.Errorf("activate parameters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM zone_pending_update`); err != nil {
		return fmt.Errorf("clear pending update: %w", err)
	}
	return tx.Commit(ctx)
}

// ── Pending parameters update ────────────────────────────────────────────

// SetPendingUpdate records a proposed parameters change awaiting operator
// acknowledgment across the zone's nodes.
func (s *Store) SetPendingUpdate(ctx context.Context, update *networkmap.ParametersUpdate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO zone_pending_update (id, new_parameters_hash, description, flag_day)
		 VALUES (true, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET new_parameters_hash = EXCLUDED.new_parameters_hash,
			description = EXCLUDED.description, flag_day = EXCLUDED.flag_day`,
		update.NewParametersHash.String(), update.Description, update.FlagDay,
	)
	if err != nil {
		return fmt.Errorf("set pending update: %w", err)
	}
	return nil
}

// PendingUpdate returns the zone's outstanding parameters update, if any.
func (s *Store) PendingUpdate(ctx context.Context) (*networkmap.ParametersUpdate, error) {
	var hexHash, description string
	var flagDay time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT new_parameters_hash, description, flag_day FROM zone_pending_update WHERE id = true`,
	).Scan(&hexHash, &description, &flagDay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingUpdate
		}
		return nil, fmt.Errorf("get pending update: %w", err)
	}
	var h nodecache.Hash
	if err := h.UnmarshalJSON([]byte(`"` + hexHash + `"`)); err != nil {
		return nil, fmt.Errorf("parse pending update hash: %w", err)
	}
	return &networkmap.ParametersUpdate{NewParametersHash: h, Description: description, FlagDay: flagDay}, nil
}

// ClearPendingUpdate removes any outstanding parameters update without
// activating it.
func (s *Store) ClearPendingUpdate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM zone_pending_update`)
	if err != nil {
		return fmt.Errorf("clear pending update: %w", err)
	}
	return nil
}

// ── Network map assembly ─────────────────────────────────────────────────

// CurrentMap assembles the unsigned network-map document a zone's HTTP
// layer signs and serves.
func (s *Store) CurrentMap(ctx context.Context) (networkmap.NetworkMap, error) {
	_, paramsHash, err := s.CurrentParameters(ctx)
	if err != nil {
		return networkmap.NetworkMap{}, err
	}
	nodeHashes, err := s.ListNodeHashes(ctx)
	if err != nil {
		return networkmap.NetworkMap{}, err
	}

	m := networkmap.NetworkMap{
		NetworkParameterHash: paramsHash,
		NodeInfoHashes:       nodeHashes,
	}

	if pending, err := s.PendingUpdate(ctx); err == nil {
		m.ParametersUpdate = &networkmap.ParametersUpdate{
			NewParametersHash: pending.NewParametersHash,
			Description:       pending.Description,
			FlagDay:           pending.FlagDay,
		}
	} else if !errors.Is(err, ErrNoPendingUpdate) {
		return networkmap.NetworkMap{}, err
	}

	return m, nil
}
