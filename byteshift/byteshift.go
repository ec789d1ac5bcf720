// Package byteshift implements the reversible additive byte-shift transform used
// to protect bytecode files from being loaded by a stock runtime, together with
// the constant table catalogs for every known format/version combination.
package byteshift

import (
	"github.com/pkg/errors"
)

// Table holds one byteshift lookup table. Tables are immutable; the catalogs
// below are built at process start and never mutated, so concurrent reads need
// no synchronization.
type Table struct {
	Bytes  []byte
	Offset int
	Mask   int
}

// Shift applies the additive transform in place, walking from Offset to the end
// of the buffer. All arithmetic is 8-bit wrapping.
func (t *Table) Shift(buf []byte) {
	for i := t.Offset; i < len(buf); i++ {
		buf[i] += t.Bytes[i&t.Mask] + byte(i)
	}
}

// Unshift is the exact inverse of Shift over the same table.
func (t *Table) Unshift(buf []byte) {
	for i := t.Offset; i < len(buf); i++ {
		buf[i] -= t.Bytes[i&t.Mask] + byte(i)
	}
}

// LuauKey selects a Luau byteshift table. DLC scripts use a different table than
// the base game scripts, so the version alone is not enough.
type LuauKey struct {
	Version uint8
	DLC     bool
}

var luauTables = map[LuauKey]*Table{
	// dataS/scripts/
	{Version: 3, DLC: false}: {
		Bytes:  []byte{0x02, 0x13, 0x0A, 0x08, 0x01, 0x07, 0x02, 0x02},
		Offset: 0,
		Mask:   0x07,
	},
	{Version: 6, DLC: false}: {
		Bytes:  []byte{0x02, 0x13, 0x0A, 0x08, 0x01, 0x07, 0x02, 0x02},
		Offset: 0,
		Mask:   0x07,
	},

	// DLC scripts
	{Version: 3, DLC: true}: {
		Bytes: []byte{
			0x14, 0x05, 0x0F, 0x0B, 0x01, 0x08, 0x02, 0x03,
			0x03, 0x08, 0x04, 0x03, 0x01, 0x04, 0x07, 0x08,
		},
		Offset: 0,
		Mask:   0x0F,
	},
	{Version: 6, DLC: true}: {
		Bytes: []byte{
			0x14, 0x05, 0x0F, 0x0B, 0x01, 0x08, 0x02, 0x03,
			0x03, 0x08, 0x04, 0x03, 0x01, 0x04, 0x07, 0x08,
		},
		Offset: 0,
		Mask:   0x0F,
	},
}

var luajitTables = map[uint8]*Table{
	3: {
		Bytes:  []byte{0x14, 0x0B, 0x09, 0x02, 0x08, 0x03, 0x03, 0x03},
		Offset: 4,
		Mask:   0x07,
	},
	4: {
		Bytes: []byte{
			0x06, 0x10, 0x0C, 0x02, 0x09, 0x03, 0x04, 0x04,
			0x09, 0x05, 0x04, 0x02, 0x05, 0x08, 0x09, 0x15,
		},
		Offset: 4,
		Mask:   0x0F,
	},
}

// LuauTable returns the byteshift table for a Luau version/DLC combination. An
// unknown combination is an error; the transform never guesses a table.
func LuauTable(key LuauKey) (*Table, error) {
	table, ok := luauTables[key]
	if !ok {
		return nil, errors.Errorf("no byteshift table for luau version %d (dlc: %t)", key.Version, key.DLC)
	}
	return table, nil
}

// LuaJITTable returns the byteshift table for a LuaJIT bytecode version.
func LuaJITTable(version uint8) (*Table, error) {
	table, ok := luajitTables[version]
	if !ok {
		return nil, errors.Errorf("no byteshift table for luajit version %d", version)
	}
	return table, nil
}
