// Package luajit handles the older LuaJIT bytecode container: signature
// detection, the obfuscation sentinel, and the in-place decode that restores a
// stock-loadable chunk. The heavy lifting (decompilation) is an external tool;
// this format is only ever decoded, never structurally parsed.
package luajit

import (
	"github.com/pkg/errors"

	"github.com/vasdmi666/Deobfuscator-Luau/byteshift"
)

const (
	// Plain LuaJIT chunks carry this version byte; decoded buffers are pinned
	// back to it so the stock loader accepts them.
	stockVersion = 0x02

	// Sentinel at offset 4 marking an obfuscated chunk.
	encodedSentinel = 0xFC
)

var magic = []byte{0x1B, 0x4C, 0x4A}

// IsValid reports whether the buffer starts with the LuaJIT magic.
func IsValid(buf []byte) bool {
	return len(buf) >= 5 &&
		buf[0] == magic[0] && buf[1] == magic[1] && buf[2] == magic[2]
}

// IsEncoded reports whether the obfuscation sentinel is set.
func IsEncoded(buf []byte) bool {
	return len(buf) >= 5 && buf[4] == encodedSentinel
}

// Decode undoes the byteshift transform in place, selecting the table by the
// version byte at offset 3, and pins the version back to the stock value. An
// unknown version byte is an error; the transform never guesses.
func Decode(buf []byte) error {
	if !IsValid(buf) {
		return errors.New("unsupported bytecode file")
	}

	table, err := byteshift.LuaJITTable(buf[3])
	if err != nil {
		return errors.Wrap(err, "unable to decode")
	}

	table.Shift(buf)
	buf[3] = stockVersion

	return nil
}
