// Package codec encodes state tree snapshots and diff records for storage
// and transfer.
//
// Two wire formats are supported:
//
//   - JSON, the human-facing form. Diff records use the
//     {"path": [...], "from": v, "to": v} shape with absent sides omitted.
//   - CBOR with Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
//     shortest encodings, no indefinite-length items. The same snapshot
//     always produces the same bytes, which is what Fingerprint hashes.
//
// Encoded payloads can be compressed with zstd:
//
//	data, err := codec.EncodeSnapshot(codec.FormatCBOR, snap)
//	packed := codec.Compress(data)
//	digest, err := codec.Fingerprint(snap)
package codec
