package luau

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Supported container versions. Version 5 never shipped in the wild for the
// files this tool targets, so it is rejected rather than guessed at.
const (
	minVersion = 3
	maxVersion = 6

	maxTypesVersion = 3
)

// Luau constant type tags. Contents are skipped; only the tag determines how
// many bytes to consume.
const (
	constNil = iota
	constBool
	constNumber
	constString
	constImport
	constTable
	constClosure
	constVector
)

func supportedVersion(v byte) bool {
	return v == 3 || v == 4 || v == 6
}

// ParseBytecode decodes a de-obfuscated Luau bytecode container into its
// structural model: the string table and one Prototype per compiled function,
// including the implicit top-level chunk. The instruction stream and constants
// are walked but not retained.
func ParseBytecode(buf []byte) (*Module, error) {
	r := &reader{data: buf}

	version, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if version < minVersion || version > maxVersion || !supportedVersion(version) {
		return nil, errors.Errorf("unsupported bytecode version %d", version)
	}

	var typesVersion byte
	if version >= 4 {
		typesVersion, err = r.readByte()
		if err != nil {
			return nil, err
		}
		if typesVersion > maxTypesVersion {
			return nil, errors.Errorf("unsupported types version %d", typesVersion)
		}
	}

	symbols, err := readSymbolTable(r)
	if err != nil {
		return nil, err
	}

	// Type-annotation block: a null-terminated run of varints, not needed here.
	if typesVersion == maxTypesVersion {
		if err := skipTypeAnnotations(r); err != nil {
			return nil, err
		}
	}

	count, err := r.readVarint()
	if err != nil {
		return nil, err
	}

	prototypes := make([]*Prototype, 0, min(count, r.remaining()))
	for i := 0; i < count; i++ {
		proto, err := decodePrototype(r, version, symbols)
		if err != nil {
			return nil, errors.Wrapf(err, "prototype %d", i)
		}
		prototypes = append(prototypes, proto)
	}

	main, err := r.readVarint()
	if err != nil {
		return nil, err
	}

	return &Module{
		MainIndex:   main,
		Prototypes:  prototypes,
		SymbolTable: decodeSymbolStrings(symbols),
	}, nil
}

func readSymbolTable(r *reader) ([][]byte, error) {
	count, err := r.readVarint()
	if err != nil {
		return nil, err
	}

	symbols := make([][]byte, 0, min(count, r.remaining()))
	for i := 0; i < count; i++ {
		s, err := r.readString()
		if err != nil {
			return nil, errors.Wrapf(err, "symbol %d", i)
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func skipTypeAnnotations(r *reader) error {
	for {
		b, err := r.readByte()
		if err != nil {
			return err
		}
		if b == 0 {
			return nil
		}
		// Skip the continuation bytes of the varint that started with b.
		for b&0x80 != 0 {
			b, err = r.readByte()
			if err != nil {
				return err
			}
		}
	}
}

func decodeSymbolStrings(symbols [][]byte) []string {
	out := make([]string, len(symbols))
	for i, raw := range symbols {
		if utf8.Valid(raw) {
			out[i] = string(raw)
		} else {
			out[i] = "INVALID_UTF8"
		}
	}
	return out
}

// symbolName resolves a 1-based symbol reference. Index 0 means absent. An
// out-of-range index is a decode error; invalid UTF-8 degrades to a
// placeholder name (valid=false) instead of failing the whole stream.
func symbolName(r *reader, symbols [][]byte, index int) (name string, named, valid bool, err error) {
	if index == 0 {
		return "", false, false, nil
	}
	if index < 0 || index > len(symbols) {
		return "", false, false, errors.Errorf("symbol index %d out of range at offset %d", index, r.pos)
	}
	raw := symbols[index-1]
	if !utf8.Valid(raw) {
		return "NOT_FOUND", true, false, nil
	}
	return string(raw), true, true, nil
}

func decodePrototype(r *reader, version byte, symbols [][]byte) (*Prototype, error) {
	// maxStack, numParams, numUpvalues, isVararg. Parameters are recovered from
	// the debug-info block rather than the declared count.
	if err := r.skip(4); err != nil {
		return nil, err
	}

	if version >= 4 {
		if err := r.skip(1); err != nil { // flags
			return nil, err
		}
		typeInfoLen, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		if err := r.skip(typeInfoLen); err != nil {
			return nil, err
		}
	}

	instructionCount, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	if err := r.skip(instructionCount * 4); err != nil {
		return nil, err
	}

	constantCount, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	for i := 0; i < constantCount; i++ {
		if err := skipConstant(r); err != nil {
			return nil, errors.Wrapf(err, "constant %d", i)
		}
	}

	childCount, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	for i := 0; i < childCount; i++ {
		if _, err := r.readVarint(); err != nil {
			return nil, err
		}
	}

	if _, err := r.readVarint(); err != nil { // lineDefined
		return nil, err
	}

	nameIndex, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	name, _, valid, err := symbolName(r, symbols, nameIndex)
	if err != nil {
		return nil, err
	}
	// A name the string table cannot represent is treated as anonymous.
	if !valid {
		name = ""
	}

	lineStart, err := skipLineInfo(r, instructionCount)
	if err != nil {
		return nil, err
	}

	proto := &Prototype{Name: name}
	if name != "" {
		// The per-instruction delta path of the original line accounting is
		// dead code; only the last absolute value is a usable anchor.
		proto.FileScope = &FileScope{Start: lineStart, End: lineStart + 1}
	}

	if err := readDebugInfo(r, symbols, proto); err != nil {
		return nil, err
	}

	return proto, nil
}

func skipConstant(r *reader) error {
	tag, err := r.readByte()
	if err != nil {
		return err
	}

	switch tag {
	case constNil:
		return nil
	case constBool:
		return r.skip(1)
	case constNumber:
		return r.skip(8)
	case constString:
		_, err := r.readVarint()
		return err
	case constImport:
		return r.skip(4)
	case constTable:
		n, err := r.readVarint()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if _, err := r.readVarint(); err != nil {
				return err
			}
		}
		return nil
	case constClosure:
		_, err := r.readVarint()
		return err
	case constVector:
		return r.skip(16)
	default:
		return errors.Errorf("unknown constant tag %d at offset %d", tag, r.pos-1)
	}
}

// skipLineInfo consumes the optional line-info block and returns the last
// absolute line value, which serves as the function's starting-line anchor.
func skipLineInfo(r *reader, instructionCount int) (int, error) {
	hasLineInfo, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if hasLineInfo == 0 {
		return 0, nil
	}

	lineGapLog2, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if err := r.skip(instructionCount); err != nil { // one delta per instruction
		return 0, err
	}

	intervals := 0
	if instructionCount > 0 {
		intervals = ((instructionCount - 1) >> lineGapLog2) + 1
	}

	lineStart := 0
	for i := 0; i < intervals; i++ {
		abs, err := r.readUint32()
		if err != nil {
			return 0, err
		}
		lineStart = int(abs)
	}
	return lineStart, nil
}

func readDebugInfo(r *reader, symbols [][]byte, proto *Prototype) error {
	hasDebugInfo, err := r.readByte()
	if err != nil {
		return err
	}
	if hasDebugInfo == 0 {
		return nil
	}

	localCount, err := r.readVarint()
	if err != nil {
		return err
	}
	for i := 0; i < localCount; i++ {
		nameIndex, err := r.readVarint()
		if err != nil {
			return err
		}
		name, named, _, err := symbolName(r, symbols, nameIndex)
		if err != nil {
			return err
		}

		scopeStart, err := r.readVarint()
		if err != nil {
			return err
		}
		scopeEnd, err := r.readVarint()
		if err != nil {
			return err
		}
		register, err := r.readByte()
		if err != nil {
			return err
		}

		// Unnamed slots cannot be annotated.
		if named {
			proto.Locals = append(proto.Locals, Local{
				Name:       name,
				ScopeStart: scopeStart,
				ScopeEnd:   scopeEnd,
				Register:   register,
			})
		}
	}

	upvalueCount, err := r.readVarint()
	if err != nil {
		return err
	}
	for i := 0; i < upvalueCount; i++ {
		nameIndex, err := r.readVarint()
		if err != nil {
			return err
		}
		name, named, _, err := symbolName(r, symbols, nameIndex)
		if err != nil {
			return err
		}
		if named {
			proto.Upvalues = append(proto.Upvalues, name)
		}
	}

	return nil
}
