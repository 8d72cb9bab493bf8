package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdfcore/pdfcore/internal/float"
)

// Value is the tagged-union type for everything that can appear in a PDF
// object graph. The eleven concrete variants named in the data model are
// [Boolean], [Integer], [UInteger], [Real], [Name], [String], [HexString],
// [Array], [Dict], [*Stream], and [Reference]. A Go nil Value stands for
// the PDF null object.
type Value interface {
	// PDF writes the file representation of the value to w.
	PDF(w io.Writer) error
}

func writeValue(w io.Writer, v Value) error {
	if v == nil {
		_, err := w.Write([]byte("null"))
		return err
	}
	return v.PDF(w)
}

// Format renders v the way it would appear in a PDF file.
func Format(v Value) string {
	buf := &bytes.Buffer{}
	if err := writeValue(buf, v); err != nil {
		return "<error: " + err.Error() + ">"
	}
	return buf.String()
}

// Boolean is a PDF boolean object.
type Boolean bool

// PDF implements [Value].
func (x Boolean) PDF(w io.Writer) error {
	s := "false"
	if x {
		s = "true"
	}
	_, err := w.Write([]byte(s))
	return err
}

// Integer is a PDF integer constant that fits in a signed 64-bit int. The
// lexer only ever produces values that additionally fit in a signed
// 32-bit int (larger magnitudes become [UInteger] or [Real]), but
// programmatically-constructed values are not restricted.
type Integer int64

// PDF implements [Value].
func (x Integer) PDF(w io.Writer) error {
	_, err := w.Write([]byte(strconv.FormatInt(int64(x), 10)))
	return err
}

// UInteger is a PDF integer constant whose value exceeds the signed
// 32-bit range but fits in an unsigned 32-bit int. The PDF spec does not
// distinguish this from Integer on the wire; the distinction exists so
// that round-tripping a large object count or offset does not silently
// become a [Real].
type UInteger uint64

// PDF implements [Value].
func (x UInteger) PDF(w io.Writer) error {
	_, err := w.Write([]byte(strconv.FormatUint(uint64(x), 10)))
	return err
}

// Real is a PDF real number.
type Real float64

// PDF implements [Value]. Real numbers are written with the shortest
// exact decimal representation, dropping a leading "0" before the point
// (".5" rather than "0.5") the way real-world PDF producers do.
func (x Real) PDF(w io.Writer) error {
	s := float.Format(float64(x), -1)
	if !strings.Contains(s, ".") {
		s += "."
	}
	_, err := w.Write([]byte(s))
	return err
}

// StringEncoding records how a [String]'s bytes should be interpreted as
// text, so that AsTextString does not need to re-sniff the BOM every time.
type StringEncoding int

const (
	// RawEncoding means the bytes carry no specified text encoding.
	RawEncoding StringEncoding = iota
	// PDFDocEncoding means the bytes are in PDFDocEncoding.
	PDFDocEncoding
	// UTF16BE means the bytes are UTF-16BE, preceded by a FE FF BOM on
	// disk (the BOM itself is not included in Bytes).
	UTF16BE
	// UTF16LE means the bytes are UTF-16LE, preceded by a FF FE BOM on
	// disk (the BOM itself is not included in Bytes).
	UTF16LE
)

// String is a PDF literal (parenthesised) string.
type String struct {
	Bytes    []byte
	Encoding StringEncoding
}

// PDF implements [Value]. It chooses between `(...)` and `<...>`
// representations by which one is shorter, preferring the literal form
// unless more than a third of the bytes would need escaping.
func (x String) PDF(w io.Writer) error {
	return writeLiteralOrHex(w, x.Bytes)
}

// AsTextString decodes x as a PDF "text string" into UTF-8.
func (x String) AsTextString() string {
	return decodeTextString(x.Bytes, x.Encoding)
}

// TextString builds a String using the "text string" encoding: PDFDocEncoding
// when every rune is representable, UTF-16BE (with BOM) otherwise.
func TextString(s string) String {
	if buf, ok := pdfDocEncode(s); ok {
		return String{Bytes: buf, Encoding: PDFDocEncoding}
	}
	return String{Bytes: utf16Encode(s), Encoding: UTF16BE}
}

func writeLiteralOrHex(w io.Writer, l []byte) error {
	level := 0
	for _, c := range l {
		if c == '(' {
			level++
		} else if c == ')' {
			level--
			if level < 0 {
				break
			}
		}
	}
	balanced := level == 0

	var funny []int
	for i, c := range l {
		if c < 32 || c == '\\' || !balanced && (c == '(' || c == ')') {
			funny = append(funny, i)
		}
	}
	n := len(l)

	buf := &bytes.Buffer{}
	if 3*len(funny) <= n {
		buf.WriteByte('(')
		pos := 0
		for _, i := range funny {
			if pos < i {
				buf.Write(l[pos:i])
			}
			switch c := l[i]; c {
			case '\r':
				buf.WriteString(`\r`)
			case '\n':
				buf.WriteString(`\n`)
			case '\t':
				buf.WriteString(`\t`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			case '(':
				buf.WriteString(`\(`)
			case ')':
				buf.WriteString(`\)`)
			case '\\':
				buf.WriteString(`\\`)
			default:
				fmt.Fprintf(buf, `\%03o`, c)
			}
			pos = i + 1
		}
		if pos < n {
			buf.Write(l[pos:n])
		}
		buf.WriteByte(')')
	} else {
		fmt.Fprintf(buf, "<%x>", l)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// HexString is a PDF hex (angle-bracket) string. Upper records whether the
// digits were uppercase in the source file, so that a round trip preserves
// case instead of normalising it.
type HexString struct {
	Bytes    []byte
	Upper    bool
	Encoding StringEncoding
}

// PDF implements [Value].
func (x HexString) PDF(w io.Writer) error {
	format := "%x"
	if x.Upper {
		format = "%X"
	}
	_, err := fmt.Fprintf(w, "<"+format+">", x.Bytes)
	return err
}

// AsTextString decodes x as a PDF "text string" into UTF-8.
func (x HexString) AsTextString() string {
	return decodeTextString(x.Bytes, x.Encoding)
}

// Name is a `/`-prefixed PDF name token, stored without the slash and
// without `#xx` escaping.
type Name string

// PDF implements [Value].
func (x Name) PDF(w io.Writer) error {
	l := []byte(x)

	var funny []int
	for i, c := range l {
		if isSpace[c] || isDelimiter[c] || c < 0x21 || c > 0x7e || c == '#' {
			funny = append(funny, i)
		}
	}
	n := len(l)

	if _, err := w.Write([]byte{'/'}); err != nil {
		return err
	}
	pos := 0
	for _, i := range funny {
		if pos < i {
			if _, err := w.Write(l[pos:i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "#%02x", l[i]); err != nil {
			return err
		}
		pos = i + 1
	}
	if pos < n {
		_, err := w.Write(l[pos:n])
		return err
	}
	return nil
}

// Array is an ordered sequence of values.
type Array []Value

// PDF implements [Value].
func (x Array) PDF(w io.Writer) error {
	if _, err := w.Write([]byte{'['}); err != nil {
		return err
	}
	for i, v := range x {
		if i > 0 {
			if _, err := w.Write([]byte{' '}); err != nil {
				return err
			}
		}
		if err := writeValue(w, v); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte{']'})
	return err
}

// Reference.PDF implements [Value]: references serialize as "N G R".
func (x Reference) PDF(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d %d R", x.ID.Number, x.ID.Generation)
	return err
}

// A Placeholder reserves space in a PDF file for a value that is not yet
// known at the time it is written — typically a stream's /Length. Create
// one with [NewPlaceholder]; fill it in later with [Placeholder.Set].
type Placeholder struct {
	value []byte
	size  int

	w   *Writer
	pos []int64
	ref Reference
}

// NewPlaceholder reserves size bytes of output for a value to be filled in
// later. size must be an upper bound on the length of the eventual text.
func NewPlaceholder(w *Writer, size int) *Placeholder {
	return &Placeholder{size: size, w: w}
}

// PDF implements [Value].
func (x *Placeholder) PDF(w io.Writer) error {
	if x.value != nil {
		_, err := w.Write(x.value)
		return err
	}

	if pw, ok := w.(*posWriter); ok && pw.seekable() {
		x.pos = append(x.pos, pw.pos)
		_, err := w.Write(bytes.Repeat([]byte{' '}, x.size))
		return err
	}

	// No seekable backing store: fall back to an indirect reference that
	// we fill in once the value is known.
	x.ref = x.w.Alloc()
	buf := &bytes.Buffer{}
	if err := x.ref.PDF(buf); err != nil {
		return err
	}
	x.value = buf.Bytes()
	_, err := w.Write(x.value)
	return err
}

// Set fills in the placeholder's value. It must be called before the
// Writer is closed.
func (x *Placeholder) Set(val Value) error {
	if x.ref != (Reference{}) {
		return x.w.Put(x.ref, val)
	}

	buf := bytes.NewBuffer(make([]byte, 0, x.size))
	if err := writeValue(buf, val); err != nil {
		return err
	}
	if buf.Len() > x.size {
		return fmt.Errorf("placeholder: replacement text too long (%d > %d)", buf.Len(), x.size)
	}
	x.value = buf.Bytes()

	if len(x.pos) == 0 {
		return nil
	}
	return x.w.fillPlaceholder(x.pos, x.value)
}

