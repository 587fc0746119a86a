// Package jsontext is a line-delimited JSON codec: one encoded JSON value
// per line, validated on decode with github.com/buger/jsonparser instead
// of a full encoding/json unmarshal — the same "skip the allocation-heavy
// generic decoder, validate/extract with jsonparser" idiom the teacher's
// json package applies to BGP attribute values (json/json.go), here
// generalized to arbitrary line-delimited JSON payloads carried as raw
// bytes through the pipeline.
package jsontext

import (
	"bufio"
	"io"

	jsp "github.com/buger/jsonparser"

	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipeerr"
)

// Codec is a codec.Codec[[]byte] where each item is one JSON value's raw
// bytes (object, array, string, number, bool, or null), one per line.
var Codec = codec.Codec[[]byte]{
	Encoders: codec.EncoderFactoryFunc(newEncoder),
	Decoders: codec.DecoderFactoryFunc(newDecoder),
}

type decoder struct {
	stream io.ReadCloser
	sc     *bufio.Scanner
}

func newDecoder(r io.Reader, opts codec.ReadOptions) (codec.Decoder[[]byte], error) {
	stream, err := codec.OpenReadStream(r, opts)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(stream)
	sc.Buffer(make([]byte, 0, 4096), 64*1024*1024)
	return &decoder{stream: stream, sc: sc}, nil
}

func (d *decoder) Decode() (item []byte, ok bool, err error) {
	if !d.sc.Scan() {
		return nil, false, d.sc.Err()
	}
	line := d.sc.Bytes()
	// Validate shape without fully unmarshalling: jsonparser.Get on an
	// empty key path parses just enough to classify the top-level value.
	_, dataType, _, perr := jsp.Get(line)
	if perr != nil || dataType == jsp.NotExist {
		return nil, false, pipeerr.New(pipeerr.KindValidation, "jsontext.Decode", perr)
	}
	out := make([]byte, len(line))
	copy(out, line)
	return out, true, nil
}

func (d *decoder) Close() error { return d.stream.Close() }

type encoder struct {
	stream io.WriteCloser
}

func newEncoder(w io.Writer, opts codec.WriteOptions) (codec.Encoder[[]byte], error) {
	stream, err := codec.OpenWriteStream(w, opts)
	if err != nil {
		return nil, err
	}
	return &encoder{stream: stream}, nil
}

func (e *encoder) Encode(item []byte) error {
	if _, err := e.stream.Write(item); err != nil {
		return err
	}
	_, err := e.stream.Write([]byte{'\n'})
	return err
}

func (e *encoder) Close() error { return e.stream.Close() }
