package cache

import (
	"encoding/binary"
	"time"
)

// entryHeader is the expiry prefix of file and bolt entries: Unix
// nanoseconds, big endian, zero for no expiry.
const entryHeader = 8

func encodeEntry(data []byte, ttl time.Duration) []byte {
	buf := make([]byte, entryHeader+len(data))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Add(ttl).UnixNano()))
	}
	copy(buf[entryHeader:], data)
	return buf
}

// decodeEntry returns the payload of raw, or ok=false if raw is truncated or
// expired at now.
func decodeEntry(raw []byte, now time.Time) (data []byte, ok bool) {
	if len(raw) < entryHeader {
		return nil, false
	}
	if exp := binary.BigEndian.Uint64(raw); exp != 0 && now.UnixNano() > int64(exp) {
		return nil, false
	}
	return raw[entryHeader:], true
}
