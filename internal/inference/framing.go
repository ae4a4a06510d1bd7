package inference

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single framed message.
const maxMessageSize = 64 << 20

// WriteMessage writes v as a 4-byte big-endian length followed by msgpack.
func WriteMessage(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	if len(payload) > maxMessageSize {
		return errors.Errorf("message too large: %d bytes", len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// ReadMessage reads one framed message into v.
func ReadMessage(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxMessageSize {
		return errors.Errorf("message too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return errors.Wrap(err, "read message body")
	}
	return errors.Wrap(msgpack.Unmarshal(payload, v), "unmarshal message")
}
