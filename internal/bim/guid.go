package bim

import (
	"fmt"

	"github.com/google/uuid"
)

// guidChars is the 64-character alphabet IFC uses for compressed GUIDs.
// Note the last two digits differ from standard base64.
const guidChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_$"

// NewGlobalID returns a fresh 22-character compressed GlobalId backed by a
// random UUID.
func NewGlobalID() string {
	return CompressUUID(uuid.New())
}

// CompressUUID encodes a UUID as a 22-character IFC GlobalId: the first byte
// becomes two base-64 digits, then each group of three bytes becomes four.
func CompressUUID(u uuid.UUID) string {
	out := make([]byte, 0, 22)
	out = appendBase64(out, uint32(u[0]), 2)
	for i := 1; i < len(u); i += 3 {
		v := uint32(u[i])<<16 | uint32(u[i+1])<<8 | uint32(u[i+2])
		out = appendBase64(out, v, 4)
	}
	return string(out)
}

// ExpandGlobalID decodes a compressed GlobalId back into the UUID it encodes.
func ExpandGlobalID(gid string) (uuid.UUID, error) {
	var u uuid.UUID
	if len(gid) != 22 {
		return u, fmt.Errorf("globalid must be 22 characters, got %d", len(gid))
	}
	digits := make([]uint32, 22)
	for i := 0; i < len(gid); i++ {
		d := digitValue(gid[i])
		if d < 0 {
			return u, fmt.Errorf("globalid contains invalid character %q", gid[i])
		}
		digits[i] = uint32(d)
	}
	first := digits[0]*64 + digits[1]
	if first > 0xFF {
		return u, fmt.Errorf("globalid leading digits out of range")
	}
	u[0] = byte(first)
	for g := 0; g < 5; g++ {
		v := uint32(0)
		for _, d := range digits[2+g*4 : 6+g*4] {
			v = v*64 + d
		}
		u[1+g*3] = byte(v >> 16)
		u[2+g*3] = byte(v >> 8)
		u[3+g*3] = byte(v)
	}
	return u, nil
}

func appendBase64(dst []byte, v uint32, width int) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, width)...)
	for i := width - 1; i >= 0; i-- {
		dst[start+i] = guidChars[v%64]
		v /= 64
	}
	return dst
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 36
	case c == '_':
		return 62
	case c == '$':
		return 63
	default:
		return -1
	}
}
