package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	want := CommandHeader{Type: TaskArguments, DataLen: 42}
	require.NoError(t, WriteCommandHeader(&buf, want))

	got, err := ReadCommandHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResponseHeaderRoundTripDone(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteResponse(&buf, Done, ""))

	hdr, msg, err := ReadResponseHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, Done, hdr.Status)
	assert.Empty(t, msg)
}

func TestResponseHeaderRoundTripFailed(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteResponse(&buf, Failed, "mount: bad mountpoint"))

	hdr, msg, err := ReadResponseHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, Failed, hdr.Status)
	assert.Equal(t, "mount: bad mountpoint", msg)
}

func TestVectorRoundTrip(t *testing.T) {
	vectors := [][]string{
		nil,
		{"a"},
		{"HOME=/root", "USER=root", "PATH=/bin:/usr/bin"},
		{""},
		{"", "a", ""},
	}

	for _, v := range vectors {
		encoded, err := EncodeVector(v)
		require.NoError(t, err)

		decoded, err := DecodeVector(encoded)
		require.NoError(t, err)

		if len(v) == 0 {
			assert.Empty(t, decoded)
		} else {
			assert.Equal(t, v, decoded)
		}
	}
}

func TestEncodeVectorRejectsEmbeddedNUL(t *testing.T) {
	_, err := EncodeVector([]string{"a\x00b"})
	assert.Error(t, err)
}

func TestDecodeVectorRejectsMissingTrailingNUL(t *testing.T) {
	_, err := DecodeVector([]byte("abc"))
	assert.Error(t, err)
}

func TestTaskBeginRoundTrip(t *testing.T) {
	want := TaskBeginPayload{Kind: 7, CallerNum: 3}
	got, err := DecodeTaskBegin(EncodeTaskBegin(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeTaskBeginRejectsWrongLength(t *testing.T) {
	_, err := DecodeTaskBegin([]byte{1, 2, 3})
	assert.Error(t, err)
}
