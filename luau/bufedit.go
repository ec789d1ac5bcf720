package luau

import "bytes"

// In-place buffer splicing helpers. Insertions shift every later offset, so
// callers always recompute positions against the current buffer state.

// splice inserts ins at pos and returns the rebuilt buffer.
func splice(buf []byte, pos int, ins []byte) []byte {
	out := make([]byte, 0, len(buf)+len(ins))
	out = append(out, buf[:pos]...)
	out = append(out, ins...)
	out = append(out, buf[pos:]...)
	return out
}

// findAndReplace replaces every occurrence of find at or after offset.
func findAndReplace(buf []byte, find, replace []byte, offset int) []byte {
	if len(find) == 0 || offset > len(buf) {
		return buf
	}
	head := buf[:offset]
	tail := bytes.ReplaceAll(buf[offset:], find, replace)
	return append(append(make([]byte, 0, len(head)+len(tail)), head...), tail...)
}

// replaceFirst replaces the first occurrence of find at or after offset.
func replaceFirst(buf []byte, find, replace []byte, offset int) []byte {
	if len(find) == 0 || offset > len(buf) {
		return buf
	}
	i := bytes.Index(buf[offset:], find)
	if i < 0 {
		return buf
	}
	i += offset

	out := make([]byte, 0, len(buf)-len(find)+len(replace))
	out = append(out, buf[:i]...)
	out = append(out, replace...)
	out = append(out, buf[i+len(find):]...)
	return out
}
