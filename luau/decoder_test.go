package luau

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkWriter builds synthetic bytecode containers for decoder tests.
type chunkWriter struct {
	buf []byte
}

func (w *chunkWriter) byte(b byte) *chunkWriter {
	w.buf = append(w.buf, b)
	return w
}

func (w *chunkWriter) bytes(b ...byte) *chunkWriter {
	w.buf = append(w.buf, b...)
	return w
}

func (w *chunkWriter) varint(v int) *chunkWriter {
	u := uint64(v)
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if u == 0 {
			return w
		}
	}
}

func (w *chunkWriter) u32(v uint32) *chunkWriter {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *chunkWriter) str(s string) *chunkWriter {
	w.varint(len(s))
	w.buf = append(w.buf, s...)
	return w
}

// protoHeader writes the fixed version-3 prototype header with no
// instructions, constants or children.
func (w *chunkWriter) protoHeader(numParams byte) *chunkWriter {
	w.byte(2)         // max stack
	w.byte(numParams) // param count
	w.byte(0)         // upvalue count
	w.byte(0)         // vararg
	return w
}

// fooChunk is a version-3 container with one named prototype "Foo" carrying
// two parameters and one true local.
func fooChunk(t *testing.T) []byte {
	t.Helper()

	w := &chunkWriter{}
	w.byte(3) // version

	// Symbol table: Foo, p1, p2, x
	w.varint(4).str("Foo").str("p1").str("p2").str("x")

	w.varint(1) // one prototype

	w.protoHeader(2)
	w.varint(2).u32(0).u32(0) // two instructions
	w.varint(0)               // constants
	w.varint(0)               // children
	w.varint(10)              // line defined
	w.varint(1)               // name index -> Foo

	// Line info: gap 2^1, two deltas, one absolute value.
	w.byte(1).byte(1).bytes(0, 0).u32(42)

	// Debug info: locals p1@reg0, p2@reg1 (parameters), x@scope 3.
	w.byte(1)
	w.varint(3)
	w.varint(2).varint(0).varint(9).byte(0)
	w.varint(3).varint(0).varint(9).byte(1)
	w.varint(4).varint(3).varint(9).byte(2)
	w.varint(0) // upvalues

	w.varint(0) // main index
	return w.buf
}

func TestParseBytecode(t *testing.T) {
	mod, err := ParseBytecode(fooChunk(t))
	require.NoError(t, err)

	assert.Equal(t, 0, mod.MainIndex)
	assert.Equal(t, []string{"Foo", "p1", "p2", "x"}, mod.SymbolTable)
	require.Len(t, mod.Prototypes, 1)

	proto := mod.Prototypes[0]
	assert.Equal(t, "Foo", proto.Name)
	assert.Equal(t, []string{"p1", "p2"}, proto.Parameters())
	assert.Equal(t, []string{"x"}, proto.LocalNames())

	require.NotNil(t, proto.FileScope)
	assert.Equal(t, 42, proto.FileScope.Start)
}

func TestParseBytecodeParameterOrdering(t *testing.T) {
	w := &chunkWriter{}
	w.byte(3)
	w.varint(3).str("f").str("b").str("a")
	w.varint(1)
	w.protoHeader(2)
	w.varint(0) // instructions
	w.varint(0).varint(0)
	w.varint(1)
	w.varint(1) // name f
	w.byte(0)   // no line info
	// Locals deliberately out of register order.
	w.byte(1)
	w.varint(2)
	w.varint(2).varint(0).varint(5).byte(1) // b @ register 1
	w.varint(3).varint(0).varint(5).byte(0) // a @ register 0
	w.varint(0)
	w.varint(0)

	mod, err := ParseBytecode(w.buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, mod.Prototypes[0].Parameters())
}

func TestParseBytecodeUnsupportedVersions(t *testing.T) {
	for _, version := range []byte{0x00, 0x02, 0x05, 0x07, 0xFF} {
		_, err := ParseBytecode([]byte{version})
		assert.ErrorContains(t, err, "unsupported bytecode version", "version %d", version)
	}
}

func TestParseBytecodeVersion4TypesBlock(t *testing.T) {
	w := &chunkWriter{}
	w.byte(4)
	w.byte(3) // types version at the maximum: type-annotation block present
	w.varint(1).str("f")
	// Type-annotation block: two varints, then the null terminator.
	w.varint(200).varint(7).byte(0)

	w.varint(1)
	w.protoHeader(1)
	w.byte(0)             // flags
	w.varint(2).bytes(1, 2) // type info
	w.varint(0)             // instructions
	w.varint(0).varint(0)
	w.varint(1)
	w.varint(1) // name f
	w.byte(0)   // no line info
	w.byte(0)   // no debug info
	w.varint(0)

	mod, err := ParseBytecode(w.buf)
	require.NoError(t, err)
	assert.Equal(t, "f", mod.Prototypes[0].Name)
}

func TestParseBytecodeBadTypesVersion(t *testing.T) {
	_, err := ParseBytecode([]byte{4, 9})
	assert.ErrorContains(t, err, "unsupported types version")
}

func TestParseBytecodeConstants(t *testing.T) {
	w := &chunkWriter{}
	w.byte(3)
	w.varint(2).str("f").str("lit")
	w.varint(1)
	w.protoHeader(1)
	w.varint(0)
	w.varint(8)                              // eight constants
	w.byte(0)                                // nil
	w.byte(1).byte(1)                        // bool
	w.byte(2).bytes(0, 0, 0, 0, 0, 0, 0, 0)  // number
	w.byte(3).varint(2)                      // string -> lit
	w.byte(4).u32(0)                         // import
	w.byte(5).varint(2).varint(1).varint(2)  // table shape
	w.byte(6).varint(0)                      // closure
	w.byte(7).bytes(make([]byte, 16)...)     // vector
	w.varint(0)
	w.varint(1)
	w.varint(1)
	w.byte(0)
	w.byte(1)
	w.varint(1)
	w.varint(2).varint(0).varint(1).byte(0)
	w.varint(0)
	w.varint(0)

	mod, err := ParseBytecode(w.buf)
	require.NoError(t, err)
	assert.Equal(t, "f", mod.Prototypes[0].Name)
}

func TestParseBytecodeUnknownConstantTag(t *testing.T) {
	w := &chunkWriter{}
	w.byte(3)
	w.varint(0)
	w.varint(1)
	w.protoHeader(0)
	w.varint(0)
	w.varint(1).byte(99)

	_, err := ParseBytecode(w.buf)
	assert.ErrorContains(t, err, "unknown constant tag")
}

func TestParseBytecodeTruncated(t *testing.T) {
	full := fooChunk(t)

	for _, cut := range []int{1, 5, 10, len(full) / 2, len(full) - 1} {
		_, err := ParseBytecode(full[:cut])
		assert.Error(t, err, "cut at %d", cut)
		assert.ErrorContains(t, err, "offset", "cut at %d", cut)
	}
}

func TestParseBytecodeHugeDeclaredCounts(t *testing.T) {
	// Counts far beyond the bytes left must fail as a short read, not blow up
	// on preallocation.
	symbols := &chunkWriter{}
	symbols.byte(3).varint(1 << 40)

	_, err := ParseBytecode(symbols.buf)
	assert.ErrorContains(t, err, "offset")

	protos := &chunkWriter{}
	protos.byte(3).varint(0).varint(1 << 40)

	_, err = ParseBytecode(protos.buf)
	assert.ErrorContains(t, err, "offset")
}

func TestParseBytecodePrototypeNameValidity(t *testing.T) {
	w := &chunkWriter{}
	w.byte(3)

	// Symbols: a function genuinely named NOT_FOUND, and an invalid UTF-8 name.
	w.varint(2)
	w.str("NOT_FOUND")
	w.varint(2).bytes(0xFF, 0xFE)

	w.varint(2)
	for name := 1; name <= 2; name++ {
		w.protoHeader(0)
		w.varint(0)
		w.varint(0).varint(0)
		w.varint(1)
		w.varint(name)
		w.byte(0)
		w.byte(0)
	}
	w.varint(0)

	mod, err := ParseBytecode(w.buf)
	require.NoError(t, err)

	// A literal NOT_FOUND name survives; only an unrepresentable name is
	// demoted to anonymous.
	assert.Equal(t, "NOT_FOUND", mod.Prototypes[0].Name)
	assert.Empty(t, mod.Prototypes[1].Name)
	assert.Nil(t, mod.Prototypes[1].FileScope)
	assert.Equal(t, []string{"NOT_FOUND", "INVALID_UTF8"}, mod.SymbolTable)
}

func TestParseBytecodeSymbolIndexOutOfRange(t *testing.T) {
	w := &chunkWriter{}
	w.byte(3)
	w.varint(1).str("f")
	w.varint(1)
	w.protoHeader(0)
	w.varint(0)
	w.varint(0).varint(0)
	w.varint(1)
	w.varint(12) // name index far past the table
	w.byte(0)
	w.byte(0)
	w.varint(0)

	_, err := ParseBytecode(w.buf)
	assert.ErrorContains(t, err, "symbol index 12 out of range")
}

func TestParseBytecodeAnonymousPrototype(t *testing.T) {
	w := &chunkWriter{}
	w.byte(3)
	w.varint(1).str("x")
	w.varint(1)
	w.protoHeader(0)
	w.varint(0)
	w.varint(0).varint(0)
	w.varint(0)
	w.varint(0) // anonymous
	w.byte(0)
	w.byte(1)
	w.varint(2)
	w.varint(1).varint(2).varint(5).byte(0) // x
	w.varint(0).varint(2).varint(5).byte(1) // unnamed slot, dropped
	w.varint(1)
	w.varint(0) // unnamed upvalue, dropped
	w.varint(0)

	mod, err := ParseBytecode(w.buf)
	require.NoError(t, err)

	proto := mod.Prototypes[0]
	assert.Empty(t, proto.Name)
	assert.Nil(t, proto.FileScope)
	assert.Equal(t, []string{"x"}, proto.LocalNames())
	assert.Empty(t, proto.Upvalues)
}
