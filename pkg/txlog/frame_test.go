package txlog

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEncodeDecodeRoundtrip(t *testing.T) {
	f := frame{EventID: ulid.Make(), Kind: kindCommand, Payload: []byte("hello")}
	encoded := f.encode()

	decoded, n, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, f.EventID, decoded.EventID)
	assert.Equal(t, f.Kind, decoded.Kind)
	assert.Equal(t, f.Payload, decoded.Payload)
}

func TestDecodeFrameDetectsCorruption(t *testing.T) {
	f := frame{EventID: ulid.Make(), Kind: kindCommand, Payload: []byte("hello")}
	encoded := f.encode()
	encoded[len(encoded)-1] ^= 0xFF // flip every bit of the last byte of the trailing crc

	_, _, err := decodeFrame(encoded)
	assert.Error(t, err)
}

func TestDecodeFrameDetectsTruncation(t *testing.T) {
	f := frame{EventID: ulid.Make(), Kind: kindCommand, Payload: []byte("hello world")}
	encoded := f.encode()

	_, _, err := decodeFrame(encoded[:len(encoded)-3])
	assert.Error(t, err)
}

func TestTwoFramesConcatenateAndDecodeSequentially(t *testing.T) {
	f1 := frame{EventID: ulid.Make(), Kind: kindCommand, Payload: []byte("a")}
	f2 := frame{EventID: ulid.Make(), Kind: kindNoop, Payload: []byte("bb")}
	buf := append(f1.encode(), f2.encode()...)

	got1, n1, err := decodeFrame(buf)
	require.NoError(t, err)
	got2, _, err := decodeFrame(buf[n1:])
	require.NoError(t, err)

	assert.Equal(t, f1.EventID, got1.EventID)
	assert.Equal(t, f2.EventID, got2.EventID)
	assert.Equal(t, []byte("bb"), got2.Payload)
}
