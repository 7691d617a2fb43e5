package evaluation

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// encodeContent returns the canonical bytes of a snapshot and their digest.
// encoding/json sorts map keys, so equal content always encodes identically.
func encodeContent(c Content) ([]byte, string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, "", fmt.Errorf("marshal content: %w", err)
	}
	return raw, digest(raw), nil
}

func digest(raw []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}
