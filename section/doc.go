// Package section defines the low-level binary structures and constants for
// the colpack blob format.
//
// A blob packs many independently compressed column binaries into one
// self-describing byte sequence. The section package owns the physical layout
// of everything around the column payloads: the fixed-size header, the packed
// flag word and the per-column index entries.
//
// # Blob Structure
//
//	┌─────────────────────────────────────────────────────────┐
//	│ Header (32 bytes, fixed)                                │
//	│  - Flag (4 bytes): magic, endianness, checksum, codec   │
//	│  - ColumnCount (4 bytes)                                │
//	│  - IndexOffset / PayloadOffset / PayloadLength          │
//	│  - Checksum (4 bytes, CRC32-Castagnoli of the payload)  │
//	├─────────────────────────────────────────────────────────┤
//	│ Index (N × 16 bytes, fixed per entry)                   │
//	│  - One entry per column: field ID, offset, count        │
//	├─────────────────────────────────────────────────────────┤
//	│ Payload (variable, optionally compressed as one block)  │
//	│  - Concatenated finalized column binaries               │
//	└─────────────────────────────────────────────────────────┘
//
// Index offsets address the uncompressed payload; a column's byte length is
// the gap to the next entry's offset (or to the payload end for the last
// entry), so lengths are never stored.
//
// # Flag Format
//
// Flags are packed into 4 bytes:
//
//	Byte 0-1 (Options, always little-endian):
//	  Bit 0: Endianness (0=little-endian, 1=big-endian)
//	  Bit 1: Checksum (0=disabled, 1=enabled)
//	  Bits 2-3: Reserved (must be 0)
//	  Bits 4-15: Magic number (0xC010 for column blob format v1)
//
//	Byte 2: Format version (currently 1)
//	Byte 3: Payload compression codec (format.CompressionType)
//
// All multi-byte fields outside the Options word honor the endianness bit;
// the Options word itself is always little-endian so the flag can be read
// before the byte order is known.
//
// Most users should interact with the blob package instead of using section
// directly.
package section
