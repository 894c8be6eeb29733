package format

type (
	RegionType      uint8
	CompressionType uint8
)

const (
	TypeLiteral          RegionType = 0x1 // TypeLiteral represents a single uncompressed element.
	TypePacked           RegionType = 0x2 // TypePacked represents a control byte plus codeword blocks.
	TypeInterleavedObj   RegionType = 0x3 // TypeInterleavedObj represents an object-rooted interleaved region.
	TypeInterleavedArray RegionType = 0x4 // TypeInterleavedArray represents an array-rooted interleaved region.
	TypeTerminator       RegionType = 0x5 // TypeTerminator represents the end-of-stream marker.

	CompressionNone   CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd   CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2     CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4    CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
	CompressionSnappy CompressionType = 0x5 // CompressionSnappy represents Snappy compression.
)

func (r RegionType) String() string {
	switch r {
	case TypeLiteral:
		return "Literal"
	case TypePacked:
		return "Packed"
	case TypeInterleavedObj:
		return "InterleavedObject"
	case TypeInterleavedArray:
		return "InterleavedArray"
	case TypeTerminator:
		return "Terminator"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	case CompressionSnappy:
		return "Snappy"
	default:
		return "Unknown"
	}
}

// ParseCompression maps a codec name to its CompressionType.
// Unknown names map to CompressionNone with ok=false.
func ParseCompression(name string) (CompressionType, bool) {
	switch name {
	case "none", "":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "s2":
		return CompressionS2, true
	case "lz4":
		return CompressionLZ4, true
	case "snappy":
		return CompressionSnappy, true
	default:
		return CompressionNone, false
	}
}
