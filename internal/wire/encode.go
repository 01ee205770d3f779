package wire

import (
	"encoding/json"
	"fmt"

	"github.com/andrea-athirat/corda/internal/pki"
)

// Encode marshals v to its wire representation. Kept as a single choke point
// so the payload format used by SignedWith[T] can change without touching
// every call site.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", pki.ErrPayloadInvalid, err)
	}
	return b, nil
}

// Decode unmarshals an envelope's verified Payload into a fresh T. Callers
// must call Verify before Decode; Decode does not re-check the signature.
func Decode[T any](s *SignedWith[T]) (T, error) {
	var v T
	if err := json.Unmarshal(s.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: decode payload: %v", pki.ErrPayloadInvalid, err)
	}
	return v, nil
}
