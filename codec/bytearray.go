package codec

import "encoding/binary"

// StringBytes is a ByteCodec[string] — the stateless single-item variant
// spec.md §4.3 calls out, used directly (no streaming) by the
// hash-reductor's spill-file keys and the shuffle wire protocol in tests
// and small examples.
var StringBytes ByteCodec[string] = stringByteCodec{}

type stringByteCodec struct{}

func (stringByteCodec) EncodeBytes(item string) ([]byte, error) {
	return []byte(item), nil
}

func (stringByteCodec) DecodeBytes(b []byte) (string, error) {
	return string(b), nil
}

// Int64Bytes is a ByteCodec[int64] using fixed-width big-endian encoding.
var Int64Bytes ByteCodec[int64] = int64ByteCodec{}

type int64ByteCodec struct{}

func (int64ByteCodec) EncodeBytes(item int64) ([]byte, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(item))
	return b, nil
}

func (int64ByteCodec) DecodeBytes(b []byte) (int64, error) {
	return int64(binary.BigEndian.Uint64(b)), nil
}
