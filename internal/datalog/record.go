package datalog

import (
	"fmt"

	"github.com/hammersbald/hammersbald/internal/herr"
	"github.com/hammersbald/hammersbald/internal/u48"
)

// PRef is an unsigned 48-bit byte offset into the data log. Zero is
// reserved to mean "nil" — no application record, no spill-over record.
type PRef uint64

// Nil is the reserved "absent" PRef value.
const Nil PRef = 0

// Record header: 1 byte type + 3 bytes big-endian payload length.
const headerSize = 4

// MaxPayloadLen is the largest encodable payload: a 3-byte length field
// tops out at 2^24-1.
const MaxPayloadLen = 1<<24 - 1

// MaxKeyLen is the largest key an application record can embed (the key
// length prefix is a single byte).
const MaxKeyLen = 255

// Record types.
const (
	TypePadding     = 0
	TypeApplication = 1
	TypeSpillover   = 2
)

// Record is a decoded DataRecord: its type and raw payload bytes (the
// header is not included).
type Record struct {
	Type    byte
	Payload []byte
}

func putHeader(buf []byte, recType byte, payloadLen int) {
	buf[0] = recType
	buf[1] = byte(payloadLen >> 16)
	buf[2] = byte(payloadLen >> 8)
	buf[3] = byte(payloadLen)
}

func getHeaderLen(buf []byte) int {
	return int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
}

// encodeApplication builds the payload for a type-1 application record:
// a 1-byte key length, the key bytes, then the opaque value bytes.
func encodeApplication(key, value []byte) ([]byte, error) {
	if len(key) > MaxKeyLen {
		return nil, herr.TooLarge.Wrap(fmt.Errorf("key is %d bytes, max %d", len(key), MaxKeyLen))
	}
	total := 1 + len(key) + len(value)
	if total > MaxPayloadLen {
		return nil, herr.TooLarge.Wrap(fmt.Errorf("application record is %d bytes, max %d", total, MaxPayloadLen))
	}
	payload := make([]byte, total)
	payload[0] = byte(len(key))
	copy(payload[1:], key)
	copy(payload[1+len(key):], value)
	return payload, nil
}

// decodeApplication splits an application record's payload back into its
// key and value.
func decodeApplication(payload []byte) (key, value []byte, err error) {
	if len(payload) < 1 {
		return nil, nil, herr.Corrupt.Wrap(fmt.Errorf("application record payload too short: %d bytes", len(payload)))
	}
	klen := int(payload[0])
	if 1+klen > len(payload) {
		return nil, nil, herr.Corrupt.Wrap(fmt.Errorf("application record key length %d exceeds payload %d", klen, len(payload)))
	}
	return payload[1 : 1+klen], payload[1+klen:], nil
}

// encodeSpillover builds the self-describing payload for a type-2
// spill-over record: an explicit entry count, that many application-record
// PRefs, then the PRef of the next spill-over record in the chain (Nil
// ends the chain). The count field is what makes the encoding
// self-describing, independent of any batching policy the caller chooses.
func encodeSpillover(entries []PRef, next PRef) ([]byte, error) {
	if len(entries) > 255 {
		return nil, herr.TooLarge.Wrap(fmt.Errorf("spill-over record has %d entries, max 255", len(entries)))
	}
	payload := make([]byte, 1+len(entries)*u48.Size+u48.Size)
	payload[0] = byte(len(entries))
	off := 1
	for _, e := range entries {
		u48.Put(payload[off:], uint64(e))
		off += u48.Size
	}
	u48.Put(payload[off:], uint64(next))
	return payload, nil
}

// decodeSpillover parses a spill-over record's payload.
func decodeSpillover(payload []byte) (entries []PRef, next PRef, err error) {
	if len(payload) < 1 {
		return nil, 0, herr.Corrupt.Wrap(fmt.Errorf("spill-over record payload too short: %d bytes", len(payload)))
	}
	count := int(payload[0])
	want := 1 + count*u48.Size + u48.Size
	if len(payload) != want {
		return nil, 0, herr.Corrupt.Wrap(fmt.Errorf("spill-over record has %d bytes, want %d for count %d", len(payload), want, count))
	}
	entries = make([]PRef, count)
	off := 1
	for i := 0; i < count; i++ {
		entries[i] = PRef(u48.Get(payload[off:]))
		off += u48.Size
	}
	next = PRef(u48.Get(payload[off:]))
	return entries, next, nil
}
