package base

import (
	"encoding/binary"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"io"
	"net"
)

// frameHeaderSize is the size of the length prefix in front of every payload
const frameHeaderSize = 4

// writeFrame writes a frame to the connection with the format:
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
//
// Header and payload are handed to the kernel in a single writev call. Callers must make sure
// only one goroutine writes to a connection at a time.
func writeFrame(w io.Writer, data []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data.
// The returned payload aliases buf and is only valid until the next call.
//
// Any read failure yields a *common.TransportError of kind TransportClosed. A length prefix
// above maxFrameSize yields TransportOversizedFrame before any payload byte is consumed.
func readFrame(r io.Reader, buf []byte, maxFrameSize uint32) ([]byte, error) {
	var header [frameHeaderSize]byte

	// Read header
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, closedError(err)
	}

	// Parse header
	contentLength := binary.BigEndian.Uint32(header[:])
	if contentLength > maxFrameSize {
		return nil, &common.TransportError{
			Kind:   common.TransportOversizedFrame,
			Length: contentLength,
			Limit:  maxFrameSize,
		}
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return []byte{}, nil
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read data
	if _, err := io.ReadFull(r, buf[:contentLength]); err != nil {
		return nil, closedError(err)
	}

	return buf[:contentLength], nil
}

// closedError wraps a read error into a TransportError of kind TransportClosed
func closedError(err error) error {
	return &common.TransportError{Kind: common.TransportClosed, Err: err}
}
