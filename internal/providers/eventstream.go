package providers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// eventStreamFrame is one decoded AWS EventStream message: header map plus
// payload bytes. CRC bytes are consumed but never verified: a corrupt frame
// fails loudly when its payload is re-parsed as JSON immediately after,
// which is a better signal than a checksum mismatch alone.
type eventStreamFrame struct {
	Headers map[string]string
	Payload []byte
}

const (
	preludeLen  = 12 // total length (4) + headers length (4) + prelude CRC (4)
	frameCRCLen = 4
)

// eventStreamReader is a stateful byte-buffer consumer for AWS
// CodeWhisperer's binary EventStream framing. It is never line-based:
// frames can span arbitrarily many TCP reads, and ReadFrame blocks (via
// the underlying reader) until a complete frame is buffered.
type eventStreamReader struct {
	r   io.Reader
	buf bytes.Buffer
	tmp [4096]byte
}

func newEventStreamReader(r io.Reader) *eventStreamReader {
	return &eventStreamReader{r: r}
}

// ReadFrame returns the next complete frame, blocking on underlying reads
// as needed, buffering a short read across calls. Returns io.EOF once the
// underlying reader is exhausted with no partial frame left in the buffer.
func (s *eventStreamReader) ReadFrame() (*eventStreamFrame, error) {
	for {
		if frame, n, ok := tryParseFrame(s.buf.Bytes()); ok {
			s.buf.Next(n)
			return frame, nil
		}
		n, err := s.r.Read(s.tmp[:])
		if n > 0 {
			s.buf.Write(s.tmp[:n])
		}
		if err != nil {
			if frame, n2, ok := tryParseFrame(s.buf.Bytes()); ok {
				s.buf.Next(n2)
				return frame, nil
			}
			return nil, err
		}
	}
}

// tryParseFrame attempts to parse one frame from buf. It returns
// ok == false when buf does not yet hold a complete frame (prelude
// incomplete, or total length exceeds what's buffered).
func tryParseFrame(buf []byte) (*eventStreamFrame, int, bool) {
	if len(buf) < preludeLen {
		return nil, 0, false
	}
	totalLen := binary.BigEndian.Uint32(buf[0:4])
	headersLen := binary.BigEndian.Uint32(buf[4:8])
	// prelude CRC at buf[8:12] is intentionally not verified.

	if uint32(len(buf)) < totalLen {
		return nil, 0, false
	}
	if totalLen < uint32(preludeLen+frameCRCLen) || headersLen > totalLen {
		return nil, 0, false
	}

	headerBytes := buf[preludeLen : preludeLen+int(headersLen)]
	payloadStart := preludeLen + int(headersLen)
	payloadEnd := int(totalLen) - frameCRCLen
	if payloadEnd < payloadStart {
		return nil, 0, false
	}
	payload := buf[payloadStart:payloadEnd]

	headers, err := parseHeaders(headerBytes)
	if err != nil {
		return nil, int(totalLen), true // skip the malformed frame rather than stalling forever
	}

	frame := &eventStreamFrame{Headers: headers, Payload: append([]byte(nil), payload...)}
	return frame, int(totalLen), true
}

// headerValueString is the AWS EventStream header value type code for a
// UTF-8 string. It is the only type CodeWhisperer's frames use.
const headerValueString = 7

// parseHeaders decodes the `{nameLen:u8, name, type:u8, len:u16-be,
// value}` sequence that follows the 12-byte prelude.
func parseHeaders(b []byte) (map[string]string, error) {
	headers := make(map[string]string)
	i := 0
	for i < len(b) {
		if i+1 > len(b) {
			return nil, fmt.Errorf("providers: truncated header name length")
		}
		nameLen := int(b[i])
		i++
		if i+nameLen > len(b) {
			return nil, fmt.Errorf("providers: truncated header name")
		}
		name := string(b[i : i+nameLen])
		i += nameLen

		if i+1 > len(b) {
			return nil, fmt.Errorf("providers: truncated header type")
		}
		valType := b[i]
		i++

		if valType != headerValueString {
			return nil, fmt.Errorf("providers: unsupported eventstream header value type %d for %q", valType, name)
		}
		if i+2 > len(b) {
			return nil, fmt.Errorf("providers: truncated header value length")
		}
		valLen := int(binary.BigEndian.Uint16(b[i : i+2]))
		i += 2
		if i+valLen > len(b) {
			return nil, fmt.Errorf("providers: truncated header value")
		}
		headers[name] = string(b[i : i+valLen])
		i += valLen
	}
	return headers, nil
}
