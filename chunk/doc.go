// Package chunk implements RFC 4960 §3: the common header, the
// CRC-32c checksum, and the chunk/parameter TLV discipline shared by
// every chunk kind. Decode and Encode round-trip a well-formed
// Packet; per-chunk-kind decode/encode helpers (DecodeInit, EncodeSack,
// ...) live alongside in this package.
package chunk
