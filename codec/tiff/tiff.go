package tiff

import (
	"encoding/binary"
	"io"

	"github.com/ironsheep/texture-kit/codec"
)

// Baseline tag numbers the codec reads and writes.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagOrientation     = 274
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagColorMap        = 320
	tagTileWidth       = 322
	tagTileLength      = 323
	tagExtraSamples    = 338
)

// Photometric interpretations of the supported matrix.
const (
	photoMinIsWhite = 0
	photoMinIsBlack = 1
	photoRGB        = 2
	photoPalette    = 3
)

// Compression schemes the strip reader inflates itself. Anything else routes
// the decode through the fallback library.
const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionPackBits   = 32773
	compressionDeflateOld = 32946
)

// Baseline field types. typeSize knows only these; the size of any other
// type is reported as zero and skipped during validation.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

const (
	orientationTopLeft = 1
	planarContig       = 1
	predictorNone      = 1
	extraAssociated    = 1
	extraUnassociated  = 2
)

const (
	headerLen   = 8
	ifdEntryLen = 12
	tiffVersion = 42

	// maxDirectories bounds the directory chain walk so a cyclic next
	// pointer cannot hang detection.
	maxDirectories = 1024

	// Allocation guards for decoded images.
	maxPixelDimension = 1 << 20
	maxImageBytes     = 1 << 30
)

type tiffCodec struct{}

func init() {
	if err := codec.Register("TIFF", []string{"tiff", "tif"}, codec.Capabilities{Palette: true}, tiffCodec{}); err != nil {
		panic(err)
	}
}

// typeSize returns the byte size of one value of a baseline field type, or
// zero when the type is unknown.
func typeSize(ftype uint16) int {
	switch ftype {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational:
		return 8
	}
	return 0
}

// readHeader consumes the 8-byte preamble from the current stream position
// and returns the byte order and the offset of the first directory. Reader
// failures come back unwrapped so callers can classify truncation
// themselves.
func readHeader(rs io.ReadSeeker) (binary.ByteOrder, int64, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(rs, hdr[:]); err != nil {
		return nil, 0, err
	}
	var order binary.ByteOrder
	switch {
	case hdr[0] == 'I' && hdr[1] == 'I':
		order = binary.LittleEndian
	case hdr[0] == 'M' && hdr[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, 0, codec.FormatMismatchError("missing TIFF byte-order mark")
	}
	if order.Uint16(hdr[2:4]) != tiffVersion {
		return nil, 0, codec.FormatMismatchError("bad TIFF version number")
	}
	return order, int64(order.Uint32(hdr[4:8])), nil
}
