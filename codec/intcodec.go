package codec

import (
	"encoding/binary"
	"io"
)

// IntByteOrder selects the byte order of NewInt64Codec, the byte-oriented
// fixed-width integer codec of spec.md §4.3,
// adapted from the teacher's binary.Msb (binary/msb.go): that helper
// wrote BGP-header-sized big-endian fields straight to an io.Writer with
// no allocation; here it is generalized into a pair of stream
// Encoder[int64]/Decoder[int64] under either byte order, keeping the same
// "fixed-size byte array, one Write call" shape.
type IntByteOrder int

const (
	BigEndian IntByteOrder = iota
	LittleEndian
)

func (o IntByteOrder) order() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// NewInt64Codec returns a Codec[int64] writing/reading 8-byte fixed-width
// integers in the given byte order.
func NewInt64Codec(order IntByteOrder) Codec[int64] {
	bo := order.order()
	return Codec[int64]{
		Encoders: EncoderFactoryFunc(func(w io.Writer, opts WriteOptions) (Encoder[int64], error) {
			stream, err := OpenWriteStream(w, opts)
			if err != nil {
				return nil, err
			}
			return &int64Encoder{w: stream, bo: bo}, nil
		}),
		Decoders: DecoderFactoryFunc(func(r io.Reader, opts ReadOptions) (Decoder[int64], error) {
			stream, err := OpenReadStream(r, opts)
			if err != nil {
				return nil, err
			}
			return &int64Decoder{r: stream, bo: bo}, nil
		}),
	}
}

type int64Encoder struct {
	w  io.WriteCloser
	bo binary.ByteOrder
}

func (e *int64Encoder) Encode(item int64) error {
	var b [8]byte
	e.bo.PutUint64(b[:], uint64(item))
	_, err := e.w.Write(b[:])
	return err
}

func (e *int64Encoder) Close() error { return e.w.Close() }

type int64Decoder struct {
	r  io.ReadCloser
	bo binary.ByteOrder
}

func (d *int64Decoder) Decode() (item int64, ok bool, err error) {
	var b [8]byte
	if _, err = io.ReadFull(d.r, b[:]); err != nil {
		if err == io.EOF {
			return 0, false, nil
		}
		if err == io.ErrUnexpectedEOF {
			return 0, false, err
		}
		return 0, false, err
	}
	return int64(d.bo.Uint64(b[:])), true, nil
}

func (d *int64Decoder) Close() error { return d.r.Close() }
