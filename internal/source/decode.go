package source

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding names reported by Decode.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8BOM     = "utf-8-bom"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingUTF32LE     = "utf-32le"
	EncodingUTF32BE     = "utf-32be"
	EncodingWindows1252 = "windows-1252"
)

var replacementChar = []byte("\uFFFD")

type bomEncoding struct {
	bom  []byte
	name string
	enc  encoding.Encoding
}

// boms is checked in order; the UTF-32LE mark must come before UTF-16LE
// because it starts with the same two bytes.
var boms = []bomEncoding{
	{[]byte{0xEF, 0xBB, 0xBF}, EncodingUTF8BOM, nil},
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, EncodingUTF32LE, utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, EncodingUTF32BE, utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)},
	{[]byte{0xFF, 0xFE}, EncodingUTF16LE, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
	{[]byte{0xFE, 0xFF}, EncodingUTF16BE, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
}

// Decode converts raw file content to a UTF-8 string and reports the
// encoding it detected. Invalid sequences are replaced rather than
// reported, because a listing with a few replacement characters is more
// useful than no listing at all.
func Decode(data []byte) (string, string) {
	for _, b := range boms {
		if !bytes.HasPrefix(data, b.bom) {
			continue
		}
		body := data[len(b.bom):]
		if b.enc == nil {
			return string(bytes.ToValidUTF8(body, replacementChar)), b.name
		}
		out, err := b.enc.NewDecoder().Bytes(body)
		if err != nil {
			return string(bytes.ToValidUTF8(body, replacementChar)), b.name
		}
		return string(out), b.name
	}

	if utf8.Valid(data) {
		return string(data), EncodingUTF8
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, replacementChar)), EncodingWindows1252
	}
	return string(out), EncodingWindows1252
}

// SplitLines normalises CRLF line endings and splits text into lines.
// A trailing newline does not produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
