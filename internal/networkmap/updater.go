package networkmap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/nodewatch"
	"github.com/andrea-athirat/corda/internal/wire"
)

// retryInterval is the fixed reschedule delay on any failed publish, ack, or
// poll attempt. No exponential backoff.
const retryInterval = time.Minute

// pendingParametersFile is the atomic drop target for an accepted-but-not-
// yet-active parameters update.
const pendingParametersFile = "network-parameters-update"

// SignNodeInfoFunc signs a NodeInfo payload with the node's own identity,
// returning the signed envelope ready to cache and publish.
type SignNodeInfoFunc func(nodecache.NodeInfo) (*nodecache.SignedNodeInfo, error)

// SignHashFunc signs a bare content hash with the operator's identity, used
// to acknowledge an accepted parameters update.
type SignHashFunc func(nodecache.Hash) (*SignedHash, error)

type pendingUpdate struct {
	update ParametersUpdate
	signed SignedNetworkParameters
}

// Updater owns the reconciliation loop for one node: it drives
// the client on a timer, reconciles the local cache against the zone's
// advertised map, and runs the two-phase parameters-update protocol.
type Updater struct {
	cache  nodecache.Cache
	watcher nodewatch.Watcher
	client *Client // nil => offline mode
	logger *zap.Logger

	currentParametersHash nodecache.Hash
	baseDir               string

	exec *executor
	feed *Feed

	mu            sync.Mutex
	pending       *pendingUpdate
	subscribed    bool
	watcherCancel context.CancelFunc
}

// NewUpdater constructs an Updater. client may be nil for offline mode: the
// updater still tracks locally-discovered peers via the watcher but never
// polls a zone.
func NewUpdater(cache nodecache.Cache, watcher nodewatch.Watcher, client *Client, currentParametersHash nodecache.Hash, baseDir string, logger *zap.Logger) *Updater {
	return &Updater{
		cache:                 cache,
		watcher:               watcher,
		client:                client,
		logger:                logger,
		currentParametersHash: currentParametersHash,
		baseDir:               baseDir,
		exec:                  newExecutor(),
		feed:                  NewFeed(),
	}
}

// Track returns the current pending-update snapshot (nil if none) and a
// stream of subsequent updates.
func (u *Updater) Track() (*ParametersUpdateInfo, <-chan ParametersUpdateInfo, func()) {
	return u.feed.Subscribe()
}

// UpdateNodeInfo compares newInfo against the cached value for its legal
// identity (ignoring Serial) and, if changed, signs, caches, saves to disk,
// and (when a client is configured) schedules a publish.
func (u *Updater) UpdateNodeInfo(newInfo nodecache.NodeInfo, sign SignNodeInfoFunc) error {
	if len(newInfo.LegalIdentities) == 0 {
		return fmt.Errorf("networkmap: node info has no legal identities")
	}
	if previous, _, ok := u.cache.NodeByLegalIdentity(newInfo.LegalIdentities[0]); ok {
		prevInfo, err := wire.Decode(previous)
		if err == nil && prevInfo.Equal(newInfo) {
			return nil
		}
	}

	signed, err := sign(newInfo)
	if err != nil {
		return fmt.Errorf("sign node info: %w", err)
	}

	u.cache.AddNode(signed)
	if err := u.watcher.SaveToFile(signed); err != nil {
		u.logger.Warn("save node info to disk failed", zap.Error(err))
	}

	if u.client != nil {
		u.exec.submit(func() { u.publishTask(signed) })
	}
	return nil
}

func (u *Updater) publishTask(signed *nodecache.SignedNodeInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := u.client.Publish(ctx, signed); err != nil {
		u.logger.Warn("publish node info failed, will retry", zap.Error(err), zap.Duration("retry_in", retryInterval))
		u.exec.schedule(retryInterval, func() { u.publishTask(signed) })
	}
}

// SubscribeToNetworkMap wires the cache to the file watcher's stream and, if
// a client is configured, starts the polling loop. Calling it twice is an
// error.
func (u *Updater) SubscribeToNetworkMap() error {
	u.mu.Lock()
	if u.subscribed {
		u.mu.Unlock()
		return ErrAlreadySubscribed
	}
	u.subscribed = true
	ctx, cancel := context.WithCancel(context.Background())
	u.watcherCancel = cancel
	u.mu.Unlock()

	go u.consumeWatcherUpdates(ctx)

	if u.client != nil {
		u.exec.submit(u.pollOnce)
	}
	return nil
}

func (u *Updater) consumeWatcherUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case info, ok := <-u.watcher.Updates():
			if !ok {
				return
			}
			u.exec.submit(func() { u.cache.AddNode(info) })
		}
	}
}

// pollOnce runs one reconciliation iteration and reschedules
// itself: at the cache's advertised max-age on success, at retryInterval on
// any failure.
func (u *Updater) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nm, cacheTimeout, err := u.client.GetNetworkMap(ctx)
	if err != nil {
		u.logger.Warn("poll network map failed, will retry", zap.Error(err), zap.Duration("retry_in", retryInterval))
		u.exec.schedule(retryInterval, u.pollOnce)
		return
	}

	if nm.ParametersUpdate != nil {
		u.handleParametersUpdate(*nm.ParametersUpdate)
	}

	if nm.NetworkParameterHash != u.currentParametersHash {
		u.logger.Fatal("network parameters mismatch: zone no longer accepts the parameters this node runs on",
			zap.String("zone_hash", nm.NetworkParameterHash.String()),
			zap.String("node_hash", u.currentParametersHash.String()))
		return
	}

	u.reconcileNodeInfo(ctx, nm)

	delay := cacheTimeout
	if delay <= 0 {
		delay = retryInterval
	}
	u.exec.schedule(delay, u.pollOnce)
}

func (u *Updater) reconcileNodeInfo(ctx context.Context, nm *NetworkMap) {
	advertised := hashSet(nm.NodeInfoHashes)
	cached := hashSet(u.cache.AllHashes())

	for h := range advertised {
		if _, ok := cached[h]; ok {
			continue
		}
		info, err := u.client.GetNodeInfo(ctx, h)
		if err != nil {
			u.logger.Warn("fetch node info failed, skipping this entry", zap.String("hash", h.String()), zap.Error(err))
			continue
		}
		u.cache.AddNode(info)
	}

	processed := u.watcher.ProcessedHashes()
	for h := range cached {
		if _, ok := advertised[h]; ok {
			continue
		}
		if _, owned := processed[h]; owned {
			continue
		}
		u.cache.RemoveNode(h)
	}
}

func (u *Updater) handleParametersUpdate(update ParametersUpdate) {
	u.mu.Lock()
	if u.pending != nil && u.pending.update.NewParametersHash == update.NewParametersHash {
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	signed, err := u.client.GetNetworkParameters(ctx, update.NewParametersHash)
	if err != nil {
		u.logger.Warn("fetch pending network parameters failed, next poll retries", zap.Error(err))
		return
	}
	if err := signed.Verify(); err != nil {
		u.logger.Warn("verify pending network parameters failed, next poll retries", zap.Error(err))
		return
	}
	params, err := wire.Decode(signed)
	if err != nil {
		u.logger.Warn("decode pending network parameters failed, next poll retries", zap.Error(err))
		return
	}

	u.mu.Lock()
	u.pending = &pendingUpdate{update: update, signed: *signed}
	u.mu.Unlock()

	u.feed.Publish(ParametersUpdateInfo{
		Hash:        update.NewParametersHash,
		Params:      params,
		Description: update.Description,
		FlagDay:     update.FlagDay,
	})
}

// AcceptNewNetworkParameters persists the pending update identified by hash
// and asynchronously acknowledges it to the zone. Fails with
// ErrUpdateConflict if hash does not match the currently pending update.
func (u *Updater) AcceptNewNetworkParameters(hash nodecache.Hash, sign SignHashFunc) error {
	if u.client == nil {
		return ErrNoClient
	}

	u.mu.Lock()
	if u.pending == nil || u.pending.update.NewParametersHash != hash {
		u.mu.Unlock()
		return ErrUpdateConflict
	}
	signedParams := u.pending.signed
	u.mu.Unlock()

	data, err := json.Marshal(&signedParams)
	if err != nil {
		return fmt.Errorf("marshal pending parameters: %w", err)
	}
	if err := writeAtomic(filepath.Join(u.baseDir, pendingParametersFile), data); err != nil {
		return fmt.Errorf("persist pending parameters: %w", err)
	}

	signedHash, err := sign(hash)
	if err != nil {
		return fmt.Errorf("sign ack: %w", err)
	}
	u.exec.submit(func() { u.ackTask(signedHash) })
	return nil
}

func (u *Updater) ackTask(signed *SignedHash) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := u.client.AckParametersUpdate(ctx, signed); err != nil {
		u.logger.Warn("ack parameters update failed, will retry", zap.Error(err), zap.Duration("retry_in", retryInterval))
		u.exec.schedule(retryInterval, func() { u.ackTask(signed) })
	}
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Close unsubscribes from the file watcher and drains the executor, giving
// outstanding tasks up to 50 seconds to finish.
func (u *Updater) Close() error {
	u.mu.Lock()
	if u.watcherCancel != nil {
		u.watcherCancel()
	}
	u.mu.Unlock()
	return u.exec.close(50 * time.Second)
}
