package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc, err := Text.Encoders.NewEncoder(&buf, WriteOptions{})
	require.NoError(t, err)
	for _, s := range []string{"one", "two", "three"} {
		require.NoError(t, enc.Encode(s))
	}
	require.NoError(t, enc.Close())

	dec, err := Text.Decoders.NewDecoder(&buf, ReadOptions{})
	require.NoError(t, err)
	var got []string
	for {
		s, ok, err := dec.Decode()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, s)
	}
	require.NoError(t, dec.Close())
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestTextRoundTripGzip(t *testing.T) {
	var buf bytes.Buffer
	enc, err := Text.Encoders.NewEncoder(&buf, WriteOptions{Compression: Gzip})
	require.NoError(t, err)
	require.NoError(t, enc.Encode("hello"))
	require.NoError(t, enc.Close())

	dec, err := Text.Decoders.NewDecoder(&buf, ReadOptions{Compression: Gzip})
	require.NoError(t, err)
	s, ok, err := dec.Decode()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestTextRoundTripZstd(t *testing.T) {
	var buf bytes.Buffer
	enc, err := Text.Encoders.NewEncoder(&buf, WriteOptions{Compression: Zstd})
	require.NoError(t, err)
	require.NoError(t, enc.Encode("hello zstd"))
	require.NoError(t, enc.Close())

	dec, err := Text.Decoders.NewDecoder(&buf, ReadOptions{Compression: Zstd})
	require.NoError(t, err)
	s, ok, err := dec.Decode()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello zstd", s)
}

func TestInt64CodecRoundTrip(t *testing.T) {
	for _, order := range []IntByteOrder{BigEndian, LittleEndian} {
		c := NewInt64Codec(order)
		var buf bytes.Buffer
		enc, err := c.Encoders.NewEncoder(&buf, WriteOptions{})
		require.NoError(t, err)
		for _, v := range []int64{0, 1, -1, 1 << 40} {
			require.NoError(t, enc.Encode(v))
		}
		require.NoError(t, enc.Close())

		dec, err := c.Decoders.NewDecoder(&buf, ReadOptions{})
		require.NoError(t, err)
		var got []int64
		for {
			v, ok, err := dec.Decode()
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, v)
		}
		assert.Equal(t, []int64{0, 1, -1, 1 << 40}, got)
	}
}

func TestByteStreamCodecRoundTrip(t *testing.T) {
	c := NewByteStreamCodec(StringBytes)
	var buf bytes.Buffer
	enc, err := c.Encoders.NewEncoder(&buf, WriteOptions{})
	require.NoError(t, err)
	for _, s := range []string{"alpha", "", "beta"} {
		require.NoError(t, enc.Encode(s))
	}
	require.NoError(t, enc.Close())

	dec, err := c.Decoders.NewDecoder(&buf, ReadOptions{})
	require.NoError(t, err)
	var got []string
	for {
		s, ok, err := dec.Decode()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, s)
	}
	assert.Equal(t, []string{"alpha", "", "beta"}, got)
}

func TestDetectCompression(t *testing.T) {
	assert.Equal(t, Gzip, DetectCompression("foo.txt.gz"))
	assert.Equal(t, Zstd, DetectCompression("foo.txt.zst"))
	assert.Equal(t, None, DetectCompression("foo.txt"))
}
