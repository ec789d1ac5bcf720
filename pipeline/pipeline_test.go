package pipeline

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasdmi666/Deobfuscator-Luau/byteshift"
	"github.com/vasdmi666/Deobfuscator-Luau/luau"
)

// stubDecompiler stands in for the external tool: it records what it was fed
// and returns canned text.
type stubDecompiler struct {
	text []byte
	fed  []byte
	err  error
}

func (d *stubDecompiler) Decompile(bytecode []byte, indent int) ([]byte, error) {
	d.fed = bytecode
	if d.err != nil {
		return nil, d.err
	}
	return d.text, nil
}

// fooChunk mirrors the decoder test fixture: one prototype "Foo" with
// parameters p1/p2 and a true local x.
func fooChunk() []byte {
	var buf []byte
	varint := func(v int) {
		for {
			b := byte(v & 0x7F)
			v >>= 7
			if v != 0 {
				b |= 0x80
			}
			buf = append(buf, b)
			if v == 0 {
				return
			}
		}
	}
	str := func(s string) {
		varint(len(s))
		buf = append(buf, s...)
	}

	buf = append(buf, 3) // version
	varint(4)
	str("Foo")
	str("p1")
	str("p2")
	str("x")
	varint(1)                       // one prototype
	buf = append(buf, 2, 2, 0, 0)   // header
	varint(0)                       // instructions
	varint(0)                       // constants
	varint(0)                       // children
	varint(10)                      // line defined
	varint(1)                       // name -> Foo
	buf = append(buf, 0)            // no line info
	buf = append(buf, 1)            // debug info
	varint(3)
	varint(2)
	varint(0)
	varint(9)
	buf = append(buf, 0)
	varint(3)
	varint(0)
	varint(9)
	buf = append(buf, 1)
	varint(4)
	varint(3)
	varint(9)
	buf = append(buf, 2)
	varint(0) // upvalues
	varint(0) // main index
	return buf
}

func obfuscatedFooChunk(t *testing.T) []byte {
	t.Helper()

	table, err := byteshift.LuauTable(byteshift.LuauKey{Version: 3})
	require.NoError(t, err)

	enc := append([]byte{0x02 + table.Bytes[0]}, fooChunk()...)
	table.Unshift(enc)
	return enc
}

func TestPipelineRun(t *testing.T) {
	dec := &stubDecompiler{text: []byte("function Foo(v1, v2)\n  return v1+v2\nend")}
	p := New(dec, luau.Options{EmitVariableComments: true})

	out, err := p.Run(obfuscatedFooChunk(t))
	require.NoError(t, err)

	// The decompiler must receive the de-obfuscated container.
	assert.Equal(t, fooChunk(), dec.fed)
	assert.Equal(t, "\r\n-- Local values: x\r\nfunction Foo(p1, p2)\n  return p1+p2\nend", string(out))
}

func TestPipelineRunPlainInput(t *testing.T) {
	dec := &stubDecompiler{text: []byte("function Foo(v1, v2)\nend")}
	p := New(dec, luau.Options{})

	out, err := p.Run(fooChunk())
	require.NoError(t, err)
	assert.Equal(t, "\r\nfunction Foo(p1, p2)\nend", string(out))
}

func TestPipelineDecodeOnly(t *testing.T) {
	p := New(nil, luau.Options{})

	out, err := p.DecodeOnly(obfuscatedFooChunk(t))
	require.NoError(t, err)
	assert.Equal(t, fooChunk(), out)
}

func TestPipelineUnknownFormat(t *testing.T) {
	p := New(&stubDecompiler{}, luau.Options{})

	_, err := p.Run([]byte{0x09, 0x09, 0x09})
	assert.ErrorIs(t, err, luau.ErrUnknownFormat)
}

func TestPipelineMalformedBytecodeAbortsBeforeDecompile(t *testing.T) {
	dec := &stubDecompiler{text: []byte("never used")}
	p := New(dec, luau.Options{})

	// Valid signature, truncated body.
	_, err := p.Run([]byte{0x03, 0x04})
	require.Error(t, err)
	assert.Nil(t, dec.fed)
}

func TestPipelineDecompilerFailure(t *testing.T) {
	dec := &stubDecompiler{err: errors.New("boom")}
	p := New(dec, luau.Options{})

	_, err := p.Run(fooChunk())
	assert.ErrorContains(t, err, "boom")
}
