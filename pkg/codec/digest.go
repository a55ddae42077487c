package codec

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 snapshot fingerprint.
type Digest [32]byte

// String returns the digest in lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// snapshotDomainKey keys the BLAKE3 hash so snapshot fingerprints never
// collide with hashes of the same bytes computed for other purposes.
var snapshotDomainKey = [32]byte{
	's', 't', 'a', 't', 'e', 't', 'r', 'e', 'e', '.', 's', 'n', 'a', 'p', 's', 'h',
	'o', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint hashes the deterministic CBOR encoding of a JSON-compatible
// snapshot. Equal snapshots have equal fingerprints regardless of map
// iteration order.
func Fingerprint(snapshot any) (Digest, error) {
	data, err := Marshal(snapshot)
	if err != nil {
		return Digest{}, fmt.Errorf("codec: fingerprint: %w", err)
	}
	return HashBytes(data), nil
}

// HashBytes returns the snapshot-domain BLAKE3 keyed hash of data.
func HashBytes(data []byte) Digest {
	h, err := blake3.NewKeyed(snapshotDomainKey[:])
	if err != nil {
		panic("codec: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	h.Write(data)

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ParseDigest parses a hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("codec: parse digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("codec: parse digest: %d bytes, want %d", len(b), len(d))
	}
	copy(d[:], b)
	return d, nil
}
