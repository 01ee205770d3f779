package networkmap

import "errors"

// ErrUpdateConflict is returned when acceptNewNetworkParameters is called
// with a hash the updater has not observed as the current pending update.
var ErrUpdateConflict = errors.New("networkmap: accepted hash does not match the pending update")

// ErrNoClient is returned by operations that require a configured client
// when the updater was built for offline mode.
var ErrNoClient = errors.New("networkmap: no client configured")

// ErrAlreadySubscribed guards SubscribeToNetworkMap's idempotence.
var ErrAlreadySubscribed = errors.New("networkmap: already subscribed to network map")
