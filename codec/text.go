package codec

import (
	"bufio"
	"io"
)

// Text is a Codec[string] that emits/reads one line per item, per
// spec.md §4.3 ("a text codec that emits one line per item under a
// chosen character set"). Only UTF-8 is supported directly — a caller
// needing another charset wraps the underlying io.Reader/io.Writer with
// golang.org/x/text/encoding before handing it to OpenReadStream/
// OpenWriteStream, keeping this package free of a charset dependency it
// doesn't otherwise need.
var Text = Codec[string]{
	Encoders: EncoderFactoryFunc(newTextEncoder),
	Decoders: DecoderFactoryFunc(newTextDecoder),
}

type textDecoder struct {
	stream io.ReadCloser
	sc     *bufio.Scanner
}

func newTextDecoder(r io.Reader, opts ReadOptions) (Decoder[string], error) {
	stream, err := OpenReadStream(r, opts)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(stream)
	sc.Buffer(make([]byte, 0, opts.bufSize()), 16*1024*1024)
	return &textDecoder{stream: stream, sc: sc}, nil
}

func (d *textDecoder) Decode() (item string, ok bool, err error) {
	if !d.sc.Scan() {
		return "", false, d.sc.Err()
	}
	return d.sc.Text(), true, nil
}

func (d *textDecoder) Close() error { return d.stream.Close() }

type textEncoder struct {
	stream io.WriteCloser
}

func newTextEncoder(w io.Writer, opts WriteOptions) (Encoder[string], error) {
	stream, err := OpenWriteStream(w, opts)
	if err != nil {
		return nil, err
	}
	return &textEncoder{stream: stream}, nil
}

func (e *textEncoder) Encode(item string) error {
	if _, err := io.WriteString(e.stream, item); err != nil {
		return err
	}
	_, err := e.stream.Write([]byte{'\n'})
	return err
}

func (e *textEncoder) Close() error { return e.stream.Close() }
