package luau

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// reader is a cursor over a bytecode buffer. Every read checks bounds and fails
// with the byte offset where the stream ran short; the decoder never backtracks.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errors.Errorf("unexpected end of bytecode at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, errors.Errorf("unexpected end of bytecode at offset %d (want %d bytes)", r.pos, n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// readVarint reads a base-128 continuation-encoded unsigned integer.
func (r *reader) readVarint() (int, error) {
	var result uint64
	var shift uint

	for {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, errors.Errorf("varint too long at offset %d", r.pos)
		}
	}

	return int(result), nil
}

// readString reads a varint-length-prefixed byte string.
func (r *reader) readString() ([]byte, error) {
	length, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	return r.readBytes(length)
}

// remaining bounds any count-driven preallocation: a declared element count
// beyond the bytes left in the stream cannot possibly decode.
func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) skip(n int) error {
	_, err := r.readBytes(n)
	return err
}
