package tiff

import (
	"errors"
	"fmt"
	"io"

	"github.com/ironsheep/texture-kit/codec"
)

// Sniff walks the whole directory chain without touching any pixel data. A
// stream passes when the preamble is sound, at least one directory exists,
// every directory holds at least one entry, and every field payload of known
// type lies inside the stream. Directory offsets are relative to the
// stream's position when Sniff was called.
func (tiffCodec) Sniff(rs io.ReadSeeker) error {
	base, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to capture stream position: %w", err)
	}
	total, err := codec.StreamSize(rs)
	if err != nil {
		return err
	}

	order, next, err := readHeader(rs)
	if err != nil {
		var mismatch codec.FormatMismatchError
		if errors.As(err, &mismatch) {
			return err
		}
		return codec.FormatMismatchError("stream shorter than a TIFF header")
	}
	if next == 0 {
		return codec.FormatMismatchError("no image directories")
	}

	for dirs := 0; next != 0; dirs++ {
		if dirs == maxDirectories {
			return codec.FormatMismatchError("directory chain does not terminate")
		}
		if next < headerLen || base+next+2 > total {
			return codec.FormatMismatchError("directory offset outside the stream")
		}
		if _, err := rs.Seek(base+next, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to directory: %w", err)
		}
		var cnt [2]byte
		if _, err := io.ReadFull(rs, cnt[:]); err != nil {
			return codec.FormatMismatchError("truncated directory")
		}
		count := int(order.Uint16(cnt[:]))
		if count == 0 {
			return codec.FormatMismatchError("empty image directory")
		}
		blockLen := count*ifdEntryLen + 4
		if base+next+2+int64(blockLen) > total {
			return codec.FormatMismatchError("directory overruns the stream")
		}
		block := make([]byte, blockLen)
		if _, err := io.ReadFull(rs, block); err != nil {
			return codec.FormatMismatchError("truncated directory")
		}
		for i := 0; i < count; i++ {
			e := block[i*ifdEntryLen : (i+1)*ifdEntryLen]
			size := typeSize(order.Uint16(e[2:4]))
			if size == 0 {
				continue
			}
			payload := int64(size) * int64(order.Uint32(e[4:8]))
			if payload <= 4 {
				continue
			}
			off := int64(order.Uint32(e[8:12]))
			if base+off+payload > total {
				return codec.FormatMismatchError("field payload outside the stream")
			}
		}
		next = int64(order.Uint32(block[blockLen-4:]))
	}
	return nil
}
