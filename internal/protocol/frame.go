package protocol

import (
	"encoding/binary"
	"io"

	"github.com/privd/privd/internal/apperr"
)

// MaxFrameLen bounds a single frame's payload so a corrupt or hostile
// length prefix can't force an unbounded read-buffer allocation.
const MaxFrameLen = 16 * 1024 * 1024

// FrameHeaderLen is the size of the u32 length prefix.
const FrameHeaderLen = 4

// WriteFrame writes payload prefixed with its little-endian u32 length.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [FrameHeaderLen]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return apperr.Wrap(apperr.CodeUnexpectedError, "write frame header", err)
	}
	if _, err := w.Write(payload); err != nil {
		return apperr.Wrap(apperr.CodeUnexpectedError, "write frame payload", err)
	}
	return nil
}

// PutFrameHeader writes payload's u32 length prefix into dst[:FrameHeaderLen]
// and payload itself into dst[FrameHeaderLen:], for callers (the reactor's
// per-connection write queue) that build an in-memory frame rather than
// streaming to an io.Writer. dst must be exactly FrameHeaderLen+len(payload)
// bytes.
func PutFrameHeader(dst, payload []byte) {
	binary.LittleEndian.PutUint32(dst[:FrameHeaderLen], uint32(len(payload)))
	copy(dst[FrameHeaderLen:], payload)
}

// ExtractFrame attempts to pull one complete frame out of buf. It returns
// the frame's payload, the number of bytes of buf consumed, and ok=false
// if buf does not yet hold a complete frame (the reactor should read more
// and retry). A length prefix beyond MaxFrameLen is a protocol error.
func ExtractFrame(buf []byte) (payload []byte, consumed int, ok bool, err error) {
	if len(buf) < FrameHeaderLen {
		return nil, 0, false, nil
	}
	length := binary.LittleEndian.Uint32(buf[:FrameHeaderLen])
	if length > MaxFrameLen {
		return nil, 0, false, apperr.New(apperr.CodeInvalidProtocol, "frame exceeds maximum length")
	}
	total := FrameHeaderLen + int(length)
	if len(buf) < total {
		return nil, 0, false, nil
	}
	return buf[FrameHeaderLen:total], total, true, nil
}
