package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"golang.org/x/exp/maps"
)

// XRefEntry is one entry of a [CrossReferenceTable]: where to find one
// object number's current value, or that it is free.
type XRefEntry struct {
	// Free marks a deleted/never-used object number. Pos and InStream are
	// meaningless when Free is true.
	Free bool

	// Generation is the object's generation number.
	Generation uint16

	// Pos is the byte offset of the "N G obj" keyword in the file, valid
	// when the object is stored directly (InStream is the zero Reference).
	Pos int64

	// InStream, when non-zero, is the object stream containing this
	// object; Index is this object's position within that stream.
	InStream Reference
	Index    int
}

// CrossReferenceTable maps object numbers to their current [XRefEntry]. It
// models a single flattened view of a file's cross-reference information:
// building one from an incrementally-updated file means walking the
// trailer's /Prev chain and letting earlier (more recent) sections shadow
// later ones, which [ReadXRefChain] does.
type CrossReferenceTable struct {
	entries map[uint32]XRefEntry
}

// NewCrossReferenceTable creates an empty table.
func NewCrossReferenceTable() *CrossReferenceTable {
	return &CrossReferenceTable{entries: make(map[uint32]XRefEntry)}
}

// Add records e as object number's entry. It is an [IntegrityError] to add
// an object number that is already present — callers building a table
// from scratch (as opposed to reading one off disk, where first-wins
// shadowing is the correct behaviour) are expected to allocate object
// numbers that do not collide.
func (t *CrossReferenceTable) Add(number uint32, e XRefEntry) error {
	if _, ok := t.entries[number]; ok {
		return &IntegrityError{Err: fmt.Errorf("object number %d already present in cross-reference table", number)}
	}
	t.entries[number] = e
	return nil
}

// setIfAbsent records e only if number has no entry yet, implementing the
// "earlier sections shadow later ones" rule used when walking a /Prev
// chain: the first (most recent) xref section to mention an object number
// wins.
func (t *CrossReferenceTable) setIfAbsent(number uint32, e XRefEntry) {
	if _, ok := t.entries[number]; !ok {
		t.entries[number] = e
	}
}

// Remove deletes number's entry, if any.
func (t *CrossReferenceTable) Remove(number uint32) {
	delete(t.entries, number)
}

// Contains reports whether number has an entry (free or in-use).
func (t *CrossReferenceTable) Contains(number uint32) bool {
	_, ok := t.entries[number]
	return ok
}

// Lookup returns number's entry, if any.
func (t *CrossReferenceTable) Lookup(number uint32) (XRefEntry, bool) {
	e, ok := t.entries[number]
	return e, ok
}

// Len returns the number of entries in the table, free and in-use alike.
func (t *CrossReferenceTable) Len() int { return len(t.entries) }

// AllReferences returns every in-use object number's Reference, sorted by
// object number. Free entries are excluded.
func (t *CrossReferenceTable) AllReferences() []Reference {
	nums := maps.Keys(t.entries)
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	refs := make([]Reference, 0, len(nums))
	for _, n := range nums {
		if e := t.entries[n]; !e.Free {
			refs = append(refs, NewReference(n, e.Generation))
		}
	}
	return refs
}

// MaxObjectNumber returns the largest object number with an entry, or 0
// if the table is empty.
func (t *CrossReferenceTable) MaxObjectNumber() uint32 {
	var max uint32
	for n := range t.entries {
		if n > max {
			max = n
		}
	}
	return max
}

// Compact removes every free entry from the table, returning the count
// removed. It does not renumber the remaining in-use objects; call
// [CrossReferenceTable.Renumber] for that.
func (t *CrossReferenceTable) Compact() int {
	n := 0
	for num, e := range t.entries {
		if e.Free {
			delete(t.entries, num)
			n++
		}
	}
	return n
}

// Renumber assigns a dense 1..N numbering to the table's in-use objects,
// in their current numeric order, and returns the old->new object number
// mapping. Callers must use the mapping to rewrite every Reference in the
// object graph (via [CrossReferenceTable.FixXRefs] for the table's own
// InStream back-references, and their own graph walk for everything else)
// before the old numbering is discarded.
func (t *CrossReferenceTable) Renumber() map[uint32]uint32 {
	refs := t.AllReferences()
	mapping := make(map[uint32]uint32, len(refs))
	next := make(map[uint32]XRefEntry, len(refs))
	for i, ref := range refs {
		newNum := uint32(i + 1)
		mapping[ref.ID.Number] = newNum
		e := t.entries[ref.ID.Number]
		e.Generation = 0
		next[newNum] = e
	}
	t.entries = next
	t.FixXRefs(mapping)
	return mapping
}

// FixXRefs rewrites every entry's InStream reference through mapping,
// after a renumbering pass has changed object numbers elsewhere in the
// graph. Entries whose InStream is not in mapping are left unchanged.
func (t *CrossReferenceTable) FixXRefs(mapping map[uint32]uint32) {
	for num, e := range t.entries {
		if e.InStream == (Reference{}) {
			continue
		}
		if newNum, ok := mapping[e.InStream.ID.Number]; ok {
			e.InStream = NewReference(newNum, e.InStream.ID.Generation)
			t.entries[num] = e
		}
	}
}

// Trailer is a single cross-reference section's trailer dictionary. It
// owns its own [CrossReferenceTable] (the entries that section alone
// contributes, unshadowed by any other generation) and is linked both to
// the section it supersedes (Prev) and the one that superseded it (Next);
// walking Prev from the most recent section reconstructs the full update
// history of an incrementally-saved file. ObjectStreams lists the object
// streams this section's own entries point into. IsReadOnly marks a
// section a [Writer] must not rewrite in place (the file contains a
// digital signature); IsLinearizedHint marks one belonging to a
// linearized file's base generation. See [FlattenTrailerChain] for how a
// freshly read chain settles into one of these states.
type Trailer struct {
	Dict             *Dict
	Table            *CrossReferenceTable
	Prev             *Trailer
	Next             *Trailer
	ObjectStreams    []Reference
	IsReadOnly       bool
	IsLinearizedHint bool
}

// ReadXRefChain locates the most recent cross-reference section (via the
// `startxref` keyword at the end of the file) and walks its /Prev chain,
// merging every section into a single [CrossReferenceTable] (earlier
// sections shadow later ones) and returning the head of the corresponding
// [Trailer] chain. The returned chain has not yet been classified into
// one of the four post-parse states described by [FlattenTrailerChain] —
// callers open a document by passing the result through it.
func ReadXRefChain(ra io.ReaderAt, size int64) (*CrossReferenceTable, *Trailer, error) {
	start, err := findStartXRef(ra, size)
	if err != nil {
		return nil, nil, err
	}

	table := NewCrossReferenceTable()
	var head, tail *Trailer
	seen := make(map[int64]bool)

	for {
		if start <= 0 || start >= size {
			return nil, nil, &MalformedFileError{Err: fmt.Errorf("invalid cross-reference section offset %d", start)}
		}
		if seen[start] {
			break // a /Prev cycle: stop rather than loop forever
		}
		seen[start] = true

		ownTable := NewCrossReferenceTable()
		dict, objStreams, err := readXRefSection(ra, size, start, ownTable)
		if err != nil {
			return nil, nil, err
		}
		for num, e := range ownTable.entries {
			table.setIfAbsent(num, e)
		}

		node := &Trailer{Dict: dict, Table: ownTable, ObjectStreams: objStreams}
		if head == nil {
			head = node
		} else {
			tail.Prev = node
			node.Next = tail
		}
		tail = node

		prevRef := dict.Get("Prev")
		if prevRef == nil {
			break
		}
		prevInt, ok := prevRef.(Integer)
		if !ok {
			return nil, nil, &MalformedFileError{Err: fmt.Errorf("/Prev is not an integer")}
		}
		start = int64(prevInt)
	}

	return table, head, nil
}

// scanForSignature reports whether any direct (non-compressed) object
// reachable through table is a `/Type /Sig` dictionary. Signatures are
// never placed in object streams (doing so would defeat their own
// byte-range hashing), so only type-1 entries need inspecting.
func scanForSignature(ra io.ReaderAt, size int64, table *CrossReferenceTable) bool {
	for _, ref := range table.AllReferences() {
		entry, ok := table.Lookup(ref.ID.Number)
		if !ok || entry.InStream != (Reference{}) {
			continue
		}
		if entry.Pos < 0 || entry.Pos >= size {
			continue
		}
		lx := NewLexer(io.NewSectionReader(ra, entry.Pos, size-entry.Pos), entry.Pos)
		p := NewParser(lx, ra)
		obj, err := p.ReadIndirectObject()
		if err != nil {
			continue // a damaged object here is not this scan's concern
		}
		if dict, ok := obj.Value.(*Dict); ok && dict.Get("Type") == Name("Sig") {
			return true
		}
	}
	return false
}

// isLinearizedFile reports whether the file looks linearized: the
// Linearized dictionary (ISO 32000-2:2020 Annex F) is always the very
// first indirect object, so its presence is cheaply detectable without a
// full parse by checking for the /Linearized key near the start of the
// file.
func isLinearizedFile(ra io.ReaderAt, size int64) bool {
	n := int64(2048)
	if n > size {
		n = size
	}
	buf := make([]byte, n)
	if _, err := ra.ReadAt(buf, 0); err != nil && err != io.EOF {
		return false
	}
	return bytes.Contains(buf, []byte("/Linearized"))
}

// FlattenTrailerChain classifies a freshly read [Trailer] chain into one
// of four post-parse states and returns the Trailer and
// [CrossReferenceTable] a [Document] should treat as current.
//
//  1. A single trailer with no signature is flattened: Prev/Next are
//     cleared and the document's working table becomes the trailer's own
//     table (by then already identical in content to table).
//  2. A single trailer, or an all-cross-reference-stream chain, carrying
//     a signature is left structurally intact but every trailer is
//     marked read-only: a [Writer] must preserve the original bytes.
//  3. An all-cross-reference-stream chain of more than two trailers
//     belonging to a linearized file, with no signature, treats its
//     newest trailer as an incremental overlay: its entries are merged
//     into its immediate predecessor and it is dropped from the chain.
//  4. Anything else is kept exactly as read; saving it produces another
//     incremental update.
func FlattenTrailerChain(ra io.ReaderAt, size int64, table *CrossReferenceTable, head *Trailer) (*Trailer, *CrossReferenceTable, error) {
	if head == nil {
		return nil, table, nil
	}

	count := 0
	allXRefStream := true
	for t := head; t != nil; t = t.Prev {
		count++
		if t.Dict.Get("Type") != Name("XRef") {
			allXRefStream = false
		}
	}

	hasSig := scanForSignature(ra, size, table)
	linearized := isLinearizedFile(ra, size)

	switch {
	case count == 1 && !hasSig:
		head.Prev = nil
		head.Next = nil
		return head, head.Table, nil

	case hasSig && (count == 1 || allXRefStream):
		for t := head; t != nil; t = t.Prev {
			t.IsReadOnly = true
		}
		return head, table, nil

	case allXRefStream && count > 2 && linearized && !hasSig:
		merged := head.Prev
		if merged == nil {
			return head, table, nil
		}
		for num, e := range head.Table.entries {
			merged.Table.entries[num] = e
		}
		merged.Next = nil
		merged.ObjectStreams = append(merged.ObjectStreams, head.ObjectStreams...)
		for t := merged; t != nil; t = t.Prev {
			t.IsLinearizedHint = true
		}
		return merged, table, nil

	default:
		return head, table, nil
	}
}

func findStartXRef(ra io.ReaderAt, size int64) (int64, error) {
	pos, err := lastOccurrence(ra, size, "startxref")
	if err != nil {
		return 0, err
	}
	lx := NewLexer(io.NewSectionReader(ra, pos+int64(len("startxref")), size-pos), pos+int64(len("startxref")))
	tok, err := lx.Next()
	if err != nil {
		return 0, err
	}
	if tok.Kind != TokInteger {
		return 0, &MalformedFileError{Pos: tok.Pos, Err: errors.New("startxref not followed by an integer")}
	}
	return int64(tok.Int), nil
}

func lastOccurrence(ra io.ReaderAt, size int64, pat string) (int64, error) {
	const chunkSize = 1024
	buf := make([]byte, chunkSize)
	k := int64(len(pat))
	pos := size
	for pos >= k {
		start := pos - chunkSize
		if start < 0 {
			start = 0
		}
		n, err := ra.ReadAt(buf[:pos-start], start)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if idx := bytes.LastIndex(buf[:n], []byte(pat)); idx >= 0 {
			return start + int64(idx), nil
		}
		pos = start + k - 1
	}
	return 0, &MalformedFileError{Err: errors.New("startxref keyword not found")}
}

// readXRefSection reads one cross-reference section (classic table or
// stream) at start, filing its entries into table, and returns its
// trailer dictionary plus the distinct object streams its type-2 entries
// point into.
func readXRefSection(ra io.ReaderAt, size int64, start int64, table *CrossReferenceTable) (*Dict, []Reference, error) {
	lx := NewLexer(io.NewSectionReader(ra, start, size-start), start)

	buf, err := lx.Peek(4)
	if err != nil && len(buf) == 0 {
		return nil, nil, err
	}

	if bytes.Equal(buf, []byte("xref")) {
		dict, err := readClassicXRefTable(lx, table)
		if err != nil {
			return nil, nil, err
		}
		var objStreams []Reference
		if stmPos, ok := dict.Get("XRefStm").(Integer); ok {
			_, streams, err := readXRefStreamAt(ra, size, int64(stmPos), table)
			if err != nil {
				return nil, nil, err
			}
			objStreams = streams
		}
		return dict, objStreams, nil
	}

	dict, objStreams, err := readXRefStreamAt(ra, size, start, table)
	return dict, objStreams, err
}

func readClassicXRefTable(lx *Lexer, table *CrossReferenceTable) (*Dict, error) {
	if err := lx.SkipString("xref"); err != nil {
		return nil, err
	}
	if err := lx.SkipWhiteSpace(); err != nil {
		return nil, err
	}

	for {
		buf, err := lx.Peek(1)
		if err != nil && len(buf) == 0 {
			return nil, err
		}
		if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
			break
		}

		startTok, err := lx.Next()
		if err != nil || startTok.Kind != TokInteger {
			return nil, &MalformedFileError{Err: errors.New("malformed xref subsection header")}
		}
		countTok, err := lx.Next()
		if err != nil || countTok.Kind != TokInteger {
			return nil, &MalformedFileError{Err: errors.New("malformed xref subsection header")}
		}
		if err := lx.SkipWhiteSpace(); err != nil {
			return nil, err
		}

		first := uint32(startTok.Int)
		count := int(countTok.Int)
		for i := 0; i < count; i++ {
			entry, err := readClassicXRefEntry(lx)
			if err != nil {
				return nil, err
			}
			table.setIfAbsent(first+uint32(i), entry)
		}
		if err := lx.SkipWhiteSpace(); err != nil {
			return nil, err
		}
	}

	if err := lx.SkipString("trailer"); err != nil {
		return nil, err
	}
	if err := lx.SkipWhiteSpace(); err != nil {
		return nil, err
	}
	p := NewParser(lx, nil)
	obj, err := p.ReadObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*Dict)
	if !ok {
		return nil, &MalformedFileError{Err: errors.New("trailer is not a dictionary")}
	}
	return dict, nil
}

// readClassicXRefEntry reads one fixed-width 20-byte entry:
// "nnnnnnnnnn ggggg n\r\n" or "nnnnnnnnnn ggggg f\r\n".
func readClassicXRefEntry(lx *Lexer) (XRefEntry, error) {
	buf, err := lx.Peek(20)
	if err != nil && len(buf) < 20 {
		return XRefEntry{}, err
	}
	if len(buf) < 20 {
		return XRefEntry{}, &MalformedFileError{Err: io.ErrUnexpectedEOF}
	}

	pos, okPos := parseFixedInt(buf[0:10])
	gen, okGen := parseFixedInt(buf[11:16])
	kind := buf[17]
	if !okPos || !okGen {
		// Tolerate the common producer bug of writing the free-list head
		// as "0000000000 65536 f" with a malformed generation field.
		if bytes.HasPrefix(buf, []byte("0000000000 65536 ")) {
			gen, okGen = 65535, true
		}
		if !okPos || !okGen {
			return XRefEntry{}, &MalformedFileError{Pos: lx.Pos(), Err: errors.New("malformed xref entry")}
		}
	}

	lx.Discard(20)

	switch kind {
	case 'f':
		return XRefEntry{Free: true, Generation: uint16(gen)}, nil
	case 'n':
		return XRefEntry{Pos: pos, Generation: uint16(gen)}, nil
	default:
		return XRefEntry{}, &MalformedFileError{Err: fmt.Errorf("malformed xref entry type %q", kind)}
	}
}

func parseFixedInt(b []byte) (int64, bool) {
	var v int64
	for _, c := range b {
		if c == ' ' {
			continue
		}
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
	}
	return v, true
}

// readXRefStreamAt reads a cross-reference stream object located at pos,
// files its entries into table, and returns the distinct object streams
// its type-2 entries point into.
func readXRefStreamAt(ra io.ReaderAt, size int64, pos int64, table *CrossReferenceTable) (*Dict, []Reference, error) {
	lx := NewLexer(io.NewSectionReader(ra, pos, size-pos), pos)
	p := NewParser(lx, ra)

	obj, err := p.ReadIndirectObject()
	if err != nil {
		return nil, nil, err
	}
	stream, ok := obj.Value.(*Stream)
	if !ok {
		return nil, nil, &MalformedFileError{Pos: pos, Err: errors.New("expected a cross-reference stream")}
	}

	widths, sections, err := parseXRefStreamDict(stream.Dict)
	if err != nil {
		return nil, nil, err
	}

	r, err := DecodeStream(nil, stream, -1)
	if err != nil {
		return nil, nil, err
	}
	objStreams, err := decodeXRefStreamEntries(r, widths, sections, table)
	if err != nil {
		return nil, nil, err
	}
	return stream.Dict, objStreams, nil
}

type xrefStreamSection struct {
	start, count int
}

func parseXRefStreamDict(dict *Dict) ([3]int, []xrefStreamSection, error) {
	var widths [3]int
	wArr, ok := dict.Get("W").(Array)
	if !ok || len(wArr) < 3 {
		return widths, nil, &MalformedFileError{Err: errors.New("cross-reference stream missing /W")}
	}
	for i := 0; i < 3; i++ {
		wi, ok := wArr[i].(Integer)
		if !ok || wi < 0 || wi > 8 {
			return widths, nil, &MalformedFileError{Err: errors.New("invalid /W entry")}
		}
		widths[i] = int(wi)
	}

	size, _ := dict.Get("Size").(Integer)
	var sections []xrefStreamSection
	if idx, ok := dict.Get("Index").(Array); ok {
		if len(idx)%2 != 0 {
			return widths, nil, &MalformedFileError{Err: errors.New("malformed /Index")}
		}
		for i := 0; i < len(idx); i += 2 {
			start, ok1 := idx[i].(Integer)
			count, ok2 := idx[i+1].(Integer)
			if !ok1 || !ok2 {
				return widths, nil, &MalformedFileError{Err: errors.New("malformed /Index")}
			}
			sections = append(sections, xrefStreamSection{int(start), int(count)})
		}
	} else {
		sections = append(sections, xrefStreamSection{0, int(size)})
	}
	return widths, sections, nil
}

func decodeXRefStreamEntries(r io.Reader, w [3]int, sections []xrefStreamSection, table *CrossReferenceTable) ([]Reference, error) {
	rowWidth := w[0] + w[1] + w[2]
	buf := make([]byte, rowWidth)

	var objStreams []Reference
	seenStream := make(map[uint32]bool)

	for _, sec := range sections {
		for i := sec.start; i < sec.start+sec.count; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}

			tp := int64(1)
			if w[0] > 0 {
				tp = decodeBigEndian(buf[:w[0]])
			}
			a := decodeBigEndian(buf[w[0] : w[0]+w[1]])
			b := decodeBigEndian(buf[w[0]+w[1] : rowWidth])

			var entry XRefEntry
			switch tp {
			case 0:
				entry = XRefEntry{Free: true, Generation: uint16(b)}
			case 1:
				entry = XRefEntry{Pos: a, Generation: uint16(b)}
			case 2:
				entry = XRefEntry{InStream: NewReference(uint32(a), 0), Index: int(b)}
				if !seenStream[uint32(a)] {
					seenStream[uint32(a)] = true
					objStreams = append(objStreams, entry.InStream)
				}
			default:
				continue // reserved type, treat as a gap
			}
			table.setIfAbsent(uint32(i), entry)
		}
	}
	return objStreams, nil
}

func decodeBigEndian(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
