package luajit

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasdmi666/Deobfuscator-Luau/byteshift"
)

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid([]byte{0x1B, 0x4C, 0x4A, 0x03, 0xFC}))
	assert.False(t, IsValid([]byte{0x1B, 0x4C, 0x00, 0x03, 0xFC}))
	assert.False(t, IsValid([]byte{0x1B, 0x4C}))
}

func TestIsEncoded(t *testing.T) {
	assert.True(t, IsEncoded([]byte{0x1B, 0x4C, 0x4A, 0x03, 0xFC}))
	assert.False(t, IsEncoded([]byte{0x1B, 0x4C, 0x4A, 0x02, 0x00}))
}

func TestDecodeRoundTrip(t *testing.T) {
	payload := []byte{0xFC, 0x10, 0x22, 0x33, 0x44, 0x55}

	for _, version := range []byte{3, 4} {
		table, err := byteshift.LuaJITTable(version)
		require.NoError(t, err)

		plain := append([]byte{0x1B, 0x4C, 0x4A, version}, bytes.Clone(payload)...)
		enc := bytes.Clone(plain)
		table.Unshift(enc)

		// Magic and version sit before the table offset and survive encoding.
		assert.True(t, IsValid(enc))

		require.NoError(t, Decode(enc))

		want := bytes.Clone(plain)
		want[3] = 0x02
		assert.Equal(t, want, enc, "version %d", version)
	}
}

func TestDecodeUnknownVersion(t *testing.T) {
	err := Decode([]byte{0x1B, 0x4C, 0x4A, 0x09, 0xFC, 0x00})
	assert.ErrorContains(t, err, "no byteshift table")
}

func TestDecodeInvalidMagic(t *testing.T) {
	err := Decode([]byte{0x00, 0x01, 0x02, 0x03, 0x04})
	assert.Error(t, err)
}
