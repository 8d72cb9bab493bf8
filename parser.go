package pdf

import (
	"fmt"
	"io"
)

// Parser assembles [Value]s out of the token stream produced by a [Lexer].
// It owns the two-token lookahead needed to tell an indirect reference
// ("12 0 R") apart from two bare integers, and the stream-body splicing
// that needs random access to the underlying file.
type Parser struct {
	lx  *Lexer
	ra  io.ReaderAt
	buf []*Token // pushed-back tokens, most recent last
}

// NewParser creates a Parser reading from lx. ra, if non-nil, is the same
// underlying file as a random-access source, used to read a stream's raw
// payload via an [io.SectionReader] once /Length is known; without it,
// reading any stream object's data returns an error.
func NewParser(lx *Lexer, ra io.ReaderAt) *Parser {
	return &Parser{lx: lx, ra: ra}
}

func (p *Parser) next() (Token, error) {
	if n := len(p.buf); n > 0 {
		t := p.buf[n-1]
		p.buf = p.buf[:n-1]
		return *t, nil
	}
	return p.lx.Next()
}

func (p *Parser) unread(t Token) {
	p.buf = append(p.buf, &t)
}

// ReadObject reads one PDF object: a scalar, a `[...]` array, or a
// `<<...>>` dict — and, if the dict is immediately followed by `stream`,
// the stream's raw payload as well, returning a *Stream instead of a *Dict.
func (p *Parser) ReadObject() (Value, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.readObjectFrom(tok)
}

func (p *Parser) readObjectFrom(tok Token) (Value, error) {
	switch tok.Kind {
	case TokInteger:
		return p.readNumberOrReference(tok)
	case TokUInteger:
		return UInteger(tok.UInt), nil
	case TokReal:
		return Real(tok.Real), nil
	case TokString:
		return String{Bytes: tok.Bytes}, nil
	case TokHexString:
		return HexString{Bytes: tok.Bytes, Upper: tok.HexUpper}, nil
	case TokName:
		return Name(tok.Bytes), nil
	case TokArrayStart:
		return p.readArray()
	case TokDictStart:
		return p.readDictOrStream()
	case TokKeyword:
		switch string(tok.Bytes) {
		case "true":
			return Boolean(true), nil
		case "false":
			return Boolean(false), nil
		case "null":
			return nil, nil
		default:
			return nil, &MalformedFileError{Pos: tok.Pos, Err: fmt.Errorf("unexpected keyword %q", tok.Bytes)}
		}
	case TokArrayEnd, TokDictEnd:
		return nil, &MalformedFileError{Pos: tok.Pos, Err: fmt.Errorf("unexpected closing delimiter")}
	default:
		return nil, &MalformedFileError{Pos: tok.Pos, Err: fmt.Errorf("unexpected token")}
	}
}

// readNumberOrReference implements the "N G R" lookahead: an integer
// followed by a second integer followed by the bare keyword R collapses
// into a Reference. Any other continuation is pushed back unread.
func (p *Parser) readNumberOrReference(first Token) (Value, error) {
	if first.Int < 0 {
		return first.Int, nil
	}
	second, err := p.next()
	if err != nil {
		if err == io.EOF {
			return first.Int, nil
		}
		return nil, err
	}
	if second.Kind != TokInteger || second.Int < 0 {
		p.unread(second)
		return first.Int, nil
	}
	third, err := p.next()
	if err != nil {
		if err == io.EOF {
			p.unread(second)
			return first.Int, nil
		}
		return nil, err
	}
	if third.Kind == TokKeyword && string(third.Bytes) == "R" {
		return NewReference(uint32(first.Int), uint16(second.Int)), nil
	}
	p.unread(third)
	p.unread(second)
	return first.Int, nil
}

func (p *Parser) readArray() (Array, error) {
	var arr Array
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokArrayEnd {
			return arr, nil
		}
		v, err := p.readObjectFrom(tok)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

func (p *Parser) readDictOrStream() (Value, error) {
	d := NewDict()
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokDictEnd {
			break
		}
		if tok.Kind != TokName {
			return nil, &MalformedFileError{Pos: tok.Pos, Err: fmt.Errorf("expected dict key, got token kind %d", tok.Kind)}
		}
		key := Name(tok.Bytes)
		val, err := p.ReadObject()
		if err != nil {
			return nil, err
		}
		d.Set(key, val)
	}

	save, err := p.next()
	if err != nil {
		if err == io.EOF {
			return d, nil
		}
		return nil, err
	}
	if save.Kind != TokKeyword || string(save.Bytes) != "stream" {
		p.unread(save)
		return d, nil
	}
	return p.readStreamData(d, save.Pos)
}

// readStreamData reads the bytes between the `stream` keyword and the
// matching `endstream`: exactly one LF or CRLF must separate the keyword
// from the payload (ISO 32000-2 §7.3.8.1), and /Length gives the payload's
// extent.
func (p *Parser) readStreamData(dict *Dict, streamKeywordPos int64) (*Stream, error) {
	two, err := p.lx.Peek(2)
	if err != nil && len(two) == 0 {
		return nil, err
	}
	switch {
	case len(two) >= 2 && two[0] == '\r' && two[1] == '\n':
		p.lx.Discard(2)
	case len(two) >= 1 && two[0] == '\n':
		p.lx.Discard(1)
	default:
		return nil, &MalformedFileError{Pos: streamKeywordPos, Err: fmt.Errorf("stream keyword not followed by an end-of-line")}
	}

	start := p.lx.Pos()
	length := dict.GetInteger("Length")

	if p.ra == nil {
		return nil, &MalformedFileError{Pos: start, Err: fmt.Errorf("stream object requires random access to the source")}
	}

	if length <= 0 {
		length = Integer(p.scanForEndstream(start))
	}

	sr := io.NewSectionReader(p.ra, start, int64(length))
	if err := p.lx.Discard(int64(length)); err != nil {
		return nil, err
	}

	if err := p.lx.SkipWhiteSpace(); err != nil {
		return nil, err
	}
	if err := p.lx.SkipString("endstream"); err != nil {
		return nil, err
	}

	return &Stream{Dict: dict, R: sr}, nil
}

// scanForEndstream locates a literal "endstream" following start, used as
// a fallback when /Length is missing or clearly wrong (a producer bug this
// package tolerates rather than rejects outright). It returns the payload
// length, not consuming any lexer state itself.
func (p *Parser) scanForEndstream(start int64) int64 {
	const chunk = 4096
	buf := make([]byte, chunk+9)
	for offset := int64(0); ; offset += chunk {
		n, err := p.ra.ReadAt(buf, start+offset)
		if n <= 0 {
			return offset
		}
		if i := indexOf(buf[:n], "endstream"); i >= 0 {
			end := offset + int64(i)
			for end > 0 {
				b := buf[i-1]
				if b != '\n' && b != '\r' {
					break
				}
				end--
				i--
			}
			return end
		}
		if err != nil {
			return offset + int64(n)
		}
	}
}

func indexOf(buf []byte, pat string) int {
	n, m := len(buf), len(pat)
	for i := 0; i+m <= n; i++ {
		if string(buf[i:i+m]) == pat {
			return i
		}
	}
	return -1
}

// IndirectObject is one "N G obj ... endobj" unit as read directly off
// disk, before being filed into a [CrossReferenceTable].
type IndirectObject struct {
	Ref   Reference
	Value Value
}

// ReadIndirectObject reads one complete "N G obj <object> endobj" unit.
func (p *Parser) ReadIndirectObject() (*IndirectObject, error) {
	numTok, err := p.next()
	if err != nil {
		return nil, err
	}
	if numTok.Kind != TokInteger {
		return nil, &MalformedFileError{Pos: numTok.Pos, Err: fmt.Errorf("expected object number")}
	}
	genTok, err := p.next()
	if err != nil {
		return nil, err
	}
	if genTok.Kind != TokInteger {
		return nil, &MalformedFileError{Pos: genTok.Pos, Err: fmt.Errorf("expected generation number")}
	}
	if err := p.lx.SkipWhiteSpace(); err != nil {
		return nil, err
	}
	if err := p.lx.SkipString("obj"); err != nil {
		return nil, err
	}

	val, err := p.ReadObject()
	if err != nil {
		return nil, err
	}

	if err := p.lx.SkipWhiteSpace(); err != nil && err != io.EOF {
		return nil, err
	}
	if err := p.lx.SkipString("endobj"); err != nil {
		// Some producers omit endobj right before EOF/xref; tolerate it.
		if _, ok := err.(*MalformedFileError); !ok {
			return nil, err
		}
	}

	ref := NewReference(uint32(numTok.Int), uint16(genTok.Int))
	return &IndirectObject{Ref: ref, Value: val}, nil
}

// ReadHeaderVersion reads the "%PDF-1.N" (or "%PDF-2.0") comment expected
// at the very start of a file, tolerating leading junk bytes the way real
// readers do (some producers prepend a BOM or stray whitespace).
func ReadHeaderVersion(lx *Lexer) (Version, error) {
	const maxScan = 1024
	buf, _ := lx.Peek(maxScan)
	i := indexOf(buf, "%PDF-")
	if i < 0 {
		return 0, &MalformedFileError{Err: fmt.Errorf("no PDF header found")}
	}
	if err := lx.Discard(int64(i)); err != nil {
		return 0, err
	}

	var verBytes []byte
	if err := lx.SkipString("%PDF-"); err != nil {
		return 0, err
	}
	if err := lx.ScanBytes(func(c byte) bool {
		if c == '\r' || c == '\n' {
			return false
		}
		verBytes = append(verBytes, c)
		return true
	}); err != nil {
		return 0, err
	}
	return ParseVersion(trimAfterDigits(verBytes))
}

func trimAfterDigits(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c >= '0' && c <= '9' || c == '.' {
			out = append(out, c)
		} else {
			break
		}
	}
	return string(out)
}
