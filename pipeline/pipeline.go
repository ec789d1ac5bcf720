// Package pipeline ties the per-file stages together: format detection,
// byteshift decode, structural bytecode parsing, the external decompiler, and
// the debug-info reattachment pass. One Pipeline value is safe for concurrent
// use; every call owns its buffer and the only shared state is the immutable
// byteshift catalogs.
package pipeline

import (
	"github.com/pkg/errors"

	"github.com/vasdmi666/Deobfuscator-Luau/luau"
)

// Indentation level handed to the external decompiler.
const defaultIndent = 1

type Pipeline struct {
	dec  Decompiler
	opts luau.Options
}

func New(dec Decompiler, opts luau.Options) *Pipeline {
	return &Pipeline{dec: dec, opts: opts}
}

// DecodeOnly detects the container format and undoes the obfuscation without
// decompiling. The input buffer is consumed.
func (p *Pipeline) DecodeOnly(buf []byte) ([]byte, error) {
	format := luau.DetectFormat(buf)
	if !format.Known() {
		return nil, luau.ErrUnknownFormat
	}

	if !format.Encoded {
		return buf, nil
	}
	return luau.Deobfuscate(buf, format)
}

// Run executes the whole per-file pipeline and returns the annotated text. A
// malformed bytecode stream fails here, before any text exists to corrupt;
// once the decompiler has produced text, individual prototypes degrade to
// "skipped" rather than failing the file.
func (p *Pipeline) Run(buf []byte) ([]byte, error) {
	bytecode, err := p.DecodeOnly(buf)
	if err != nil {
		return nil, err
	}

	mod, err := luau.ParseBytecode(bytecode)
	if err != nil {
		return nil, errors.Wrap(err, "bytecode decode")
	}

	text, err := p.dec.Decompile(bytecode, defaultIndent)
	if err != nil {
		return nil, errors.Wrap(err, "decompile")
	}

	return luau.Reattach(text, mod, p.opts), nil
}
