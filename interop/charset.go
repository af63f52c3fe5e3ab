package interop

import (
	"runtime"
	"strings"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/clr-bridge/errors"
)

// CharSet identifies the string encoding used at the runtime boundary.
type CharSet uint8

const (
	// CharSetWide is UTF-16 little endian, as used by wchar_t on Windows.
	CharSetWide CharSet = iota
	// CharSetUTF8 is UTF-8, as used by char_t on Unix hosts.
	CharSetUTF8
)

var wideEncoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// NativeCharSet returns the char set of the platform's runtime host.
func NativeCharSet() CharSet {
	if runtime.GOOS == "windows" {
		return CharSetWide
	}
	return CharSetUTF8
}

// String returns the char set name.
func (c CharSet) String() string {
	switch c {
	case CharSetWide:
		return "utf-16le"
	case CharSetUTF8:
		return "utf-8"
	default:
		return "unknown"
	}
}

// UnitSize returns the size in bytes of one code unit, which is also the
// size of the terminator.
func (c CharSet) UnitSize() int {
	if c == CharSetWide {
		return 2
	}
	return 1
}

func (c CharSet) encoding() encoding.Encoding {
	if c == CharSetWide {
		return wideEncoding
	}
	return unicode.UTF8
}

// Encode converts s into a NUL-terminated buffer in this char set.
// Strings containing NUL or invalid UTF-8 cannot be represented.
func (c CharSet) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errors.InvalidUTF8(errors.PhaseMarshal, nil, []byte(s))
	}
	if idx := strings.IndexByte(s, 0); idx >= 0 {
		return nil, errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
			Value(idx).
			Detail("embedded NUL at byte %d", idx).
			Build()
	}

	enc, err := c.encoding().NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMarshal, errors.KindInvalidInput, err, "encode "+c.String())
	}

	unit := c.UnitSize()
	buf := make([]byte, len(enc)+unit)
	copy(buf, enc)
	return buf, nil
}

// Bytes returns the encoded bytes of the NUL-terminated string at p,
// without the terminator. The result aliases p.
func (c CharSet) Bytes(p *byte) []byte {
	if p == nil {
		return nil
	}
	unit := c.UnitSize()
	n := 0
	for {
		if *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) == 0 &&
			(unit == 1 || *(*byte)(unsafe.Add(unsafe.Pointer(p), n+1)) == 0) {
			break
		}
		n += unit
	}
	return unsafe.Slice(p, n)
}

// Decode copies the NUL-terminated string at p into a Go string.
// A nil pointer decodes to the empty string.
func (c CharSet) Decode(p *byte) (string, error) {
	return c.DecodeBytes(c.Bytes(p))
}

// DecodeBytes converts encoded bytes (without terminator) into a Go string.
func (c CharSet) DecodeBytes(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if c == CharSetUTF8 {
		if !utf8.Valid(b) {
			return "", errors.InvalidUTF8(errors.PhaseMarshal, nil, b)
		}
		return string(b), nil
	}
	if len(b)%2 != 0 {
		return "", errors.InvalidInput(errors.PhaseMarshal, "odd-length UTF-16 buffer")
	}
	out, err := c.encoding().NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(errors.PhaseMarshal, errors.KindInvalidInput, err, "decode "+c.String())
	}
	return string(out), nil
}

// Ptr returns the address of the first byte of an encoded buffer.
func Ptr(buf []byte) *byte {
	if len(buf) == 0 {
		return nil
	}
	return &buf[0]
}
