// seehuhn.de/go/pdf - a library for reading and writing PDF files
// Copyright (C) 2021  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// pdfDocSpecial holds the code points in the range 0x18-0x1F and 0x80-0xA0
// where PDFDocEncoding diverges from ISO 8859-1 (Latin-1). All other bytes
// 0x20-0x7E and 0xA1-0xFF map to the identical Unicode code point; 0x00-0x17
// are unused in PDFDocEncoding and pass through unchanged.
var pdfDocSpecial = map[byte]rune{
	0x18: 0x02D8, 0x19: 0x02C7, 0x1A: 0x02C6, 0x1B: 0x02D9,
	0x1C: 0x02DD, 0x1D: 0x02DB, 0x1E: 0x02DA, 0x1F: 0x02DC,
	0x80: 0x2022, 0x81: 0x2020, 0x82: 0x2021, 0x83: 0x2026,
	0x84: 0x2014, 0x85: 0x2013, 0x86: 0x0192, 0x87: 0x2044,
	0x88: 0x2039, 0x89: 0x203A, 0x8A: 0x2212, 0x8B: 0x2030,
	0x8C: 0x201E, 0x8D: 0x201C, 0x8E: 0x201D, 0x8F: 0x2018,
	0x90: 0x2019, 0x91: 0x201A, 0x92: 0x2122, 0x93: 0xFB01,
	0x94: 0xFB02, 0x95: 0x0141, 0x96: 0x0152, 0x97: 0x0160,
	0x98: 0x0178, 0x99: 0x017D, 0x9A: 0x0131, 0x9B: 0x0142,
	0x9C: 0x0153, 0x9D: 0x0161, 0x9E: 0x017E, 0x9F: 0xFFFD,
	0xA0: 0x20AC,
}

var pdfDocSpecialInverse = func() map[rune]byte {
	m := make(map[rune]byte, len(pdfDocSpecial))
	for b, r := range pdfDocSpecial {
		m[r] = b
	}
	return m
}()

// pdfDocDecodeByte converts one PDFDocEncoding byte to its Unicode rune.
func pdfDocDecodeByte(b byte) rune {
	if r, ok := pdfDocSpecial[b]; ok {
		return r
	}
	return rune(b)
}

// pdfDocEncode tries to encode s using PDFDocEncoding, returning ok=false if
// s contains a rune outside the encoding's repertoire.
func pdfDocEncode(s string) ([]byte, bool) {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := pdfDocSpecialInverse[r]; ok {
			buf = append(buf, b)
			continue
		}
		if r >= 0x20 && r <= 0x7E || r >= 0xA1 && r <= 0xFF {
			buf = append(buf, byte(r))
			continue
		}
		return nil, false
	}
	return buf, true
}

func pdfDocDecode(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = pdfDocDecodeByte(c)
	}
	return string(r)
}

// utf16Encode encodes s as UTF-16BE, preceded by the FE FF byte-order mark
// required for PDF text strings.
func utf16Encode(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 2+2*len(units))
	buf[0], buf[1] = 0xFE, 0xFF
	for i, u := range units {
		buf[2+2*i] = byte(u >> 8)
		buf[2+2*i+1] = byte(u)
	}
	return buf
}

func utf16DecodeBE(b []byte) string {
	var u []uint16
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(u))
}

func utf16DecodeLE(b []byte) string {
	var u []uint16
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i+1])<<8|uint16(b[i]))
	}
	return string(utf16.Decode(u))
}

// decodeTextString decodes the bytes of a PDF "text string" into UTF-8,
// dispatching on the encoding recorded when the string was read (or
// assumed, for programmatically-constructed values).
func decodeTextString(b []byte, enc StringEncoding) string {
	switch enc {
	case UTF16BE:
		return utf16DecodeBE(b)
	case UTF16LE:
		return utf16DecodeLE(b)
	case PDFDocEncoding:
		return pdfDocDecode(b)
	default:
		if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
			return utf16DecodeBE(b[2:])
		}
		if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE {
			return utf16DecodeLE(b[2:])
		}
		return pdfDocDecode(b)
	}
}

// encodeDate renders t as a PDF date string, "D:YYYYMMDDHHmmSSOHH'mm".
func encodeDate(t time.Time) Value {
	if t.IsZero() {
		return nil
	}
	_, offset := t.Zone()
	sign := "+"
	switch {
	case offset == 0:
		sign = "Z"
	case offset < 0:
		sign = "-"
		offset = -offset
	}
	s := fmt.Sprintf("D:%04d%02d%02d%02d%02d%02d",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	if sign == "Z" {
		s += "Z"
	} else {
		s += fmt.Sprintf("%s%02d'%02d'", sign, offset/3600, (offset/60)%60)
	}
	return TextString(s)
}

// decodeDate parses a PDF date string of the form "D:YYYYMMDDHHmmSSOHH'mm'".
// All fields after the four-digit year are optional; a missing field
// defaults to its minimum value (month/day to 1, others to 0), matching
// the convention used throughout the corpus for partially-specified dates.
func decodeDate(v Value) (time.Time, error) {
	s, ok := asTextString(v)
	if !ok {
		return time.Time{}, errNoDate
	}
	s = strings.TrimPrefix(s, "D:")
	if len(s) < 4 {
		return time.Time{}, errNoDate
	}

	field := func(s string, start, length, def int) (int, string, error) {
		if len(s) < start+length {
			return def, s, nil
		}
		n, err := strconv.Atoi(s[start : start+length])
		if err != nil {
			return 0, s, errNoDate
		}
		return n, s, nil
	}

	year, _ := strconv.Atoi(s[:4])
	month, _, err := field(s, 4, 2, 1)
	if err != nil {
		return time.Time{}, err
	}
	day, _, err := field(s, 6, 2, 1)
	if err != nil {
		return time.Time{}, err
	}
	hour, _, err := field(s, 8, 2, 0)
	if err != nil {
		return time.Time{}, err
	}
	min, _, err := field(s, 10, 2, 0)
	if err != nil {
		return time.Time{}, err
	}
	sec, _, err := field(s, 12, 2, 0)
	if err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	if len(s) > 14 {
		rest := s[14:]
		switch rest[0] {
		case 'Z':
			loc = time.UTC
		case '+', '-':
			offH, offM := 0, 0
			if len(rest) >= 3 {
				offH, _ = strconv.Atoi(rest[1:3])
			}
			if len(rest) >= 6 {
				offM, _ = strconv.Atoi(rest[4:6])
			}
			offset := offH*3600 + offM*60
			if rest[0] == '-' {
				offset = -offset
			}
			loc = time.FixedZone("", offset)
		}
	}

	return time.Date(year, time.Month(month), day, hour, min, sec, 0, loc), nil
}
