package luau

import (
	"github.com/pkg/errors"

	"github.com/vasdmi666/Deobfuscator-Luau/byteshift"
)

// ErrUnknownFormat is returned when the leading bytes of a buffer match no
// known Luau container signature.
var ErrUnknownFormat = errors.New("unsupported/unknown bytecode")

// Format describes what the magic/version bytes at the start of a buffer say
// about it: the container version, whether the byteshift obfuscation is active,
// and whether the DLC table applies.
type Format struct {
	Version uint8
	Encoded bool
	DLC     bool
}

// Known returns false when the buffer matched no signature.
func (f Format) Known() bool {
	return f.Version != 0
}

// DetectFormat classifies a raw buffer by its leading bytes. The obfuscated
// variants carry a sentinel byte after the version that a plain Luau container
// never produces.
func DetectFormat(buf []byte) Format {
	if len(buf) >= 3 {
		switch {
		case buf[0] == 0x03 && buf[1] == 0x00 && buf[2] == 0xF2:
			return Format{Version: 6, Encoded: true, DLC: true}
		case buf[0] == 0x02 && buf[1] == 0xEF:
			return Format{Version: 3, Encoded: true}
		case buf[0] == 0x03 && buf[1] == 0xFD:
			return Format{Version: 3, Encoded: true, DLC: true}
		case buf[0] == 0x02 && buf[1] == 0xF0:
			return Format{Version: 4, Encoded: true}
		case buf[0] == 0x02 && buf[1] == 0xF2:
			return Format{Version: 6, Encoded: true}
		case buf[0] == 0x06 && buf[1] == 0x03:
			return Format{Version: 6}
		}
	}
	if len(buf) >= 1 {
		switch buf[0] {
		case 0x03:
			return Format{Version: 3}
		case 0x04:
			return Format{Version: 4}
		}
	}
	return Format{}
}

// Deobfuscate undoes the byteshift transform for an encoded buffer and strips
// the sentinel byte, returning a plain Luau container ready for decoding. The
// input slice is mutated.
func Deobfuscate(buf []byte, format Format) ([]byte, error) {
	table, err := byteshift.LuauTable(byteshift.LuauKey{Version: format.Version, DLC: format.DLC})
	if err != nil {
		return nil, err
	}

	table.Shift(buf)
	return buf[1:], nil
}
