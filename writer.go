package pdf

import (
	"fmt"
	"io"
	"sync"
)

// posWriter tracks the current byte offset of everything written through
// it, which the cross-reference table needs to record each object's
// position. When the underlying writer also supports WriteAt, a
// [Placeholder] can reserve space and overwrite it in place once its
// value becomes known (see [Placeholder.Set]); otherwise the placeholder
// falls back to an indirect reference.
type posWriter struct {
	w   io.Writer
	pos int64
	wa  io.WriterAt
}

func newPosWriter(w io.Writer) *posWriter {
	pw := &posWriter{w: w}
	if wa, ok := w.(io.WriterAt); ok {
		pw.wa = wa
	}
	return pw
}

func (pw *posWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.pos += int64(n)
	return n, err
}

func (pw *posWriter) seekable() bool { return pw.wa != nil }

// Writer incrementally serialises a PDF object graph: each call to Put or
// OpenStream appends one "N G obj ... endobj" unit and records its offset,
// and Close emits the trailer (a classic xref table for PDF < 1.5, a
// cross-reference stream from 1.5 on) and the startxref footer.
type Writer struct {
	// mu serializes every call that appends to the underlying stream and
	// the cross-reference table together (Alloc, Put, OpenStream,
	// WriteCompressed): a Writer's output is one append-only byte stream,
	// so concurrent callers must still take turns, but they no longer need
	// to arrange that turn-taking themselves.
	mu sync.Mutex

	w        *posWriter
	meta     *MetaInfo
	table    *CrossReferenceTable
	firstNum uint32 // lowest object number this Writer itself allocates
	nextNum  uint32

	prev        *Trailer // the trailer this save is incremental to, or nil
	prevXRefPos int64    // byte offset of prev's own cross-reference section
	startPos    int64    // file offset this writer's output begins at (0 for a fresh file)
	prevW1      int      // prior save's cross-reference stream W[1], which a new save must never narrow below

	sec        SecurityHandler // installed by SetSecurityHandler, nil until then
	encryptRef Reference       // the /Encrypt dictionary's own object, never encrypted
}

// NewWriter prepares a brand-new PDF file for writing, emitting the
// header immediately.
func NewWriter(w io.Writer, meta *MetaInfo) (*Writer, error) {
	pw := newPosWriter(w)
	verStr, err := meta.Version.ToString()
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(pw, "%%PDF-%s\n%%\x80\x80\x80\x80\n", verStr); err != nil {
		return nil, err
	}
	return &Writer{w: pw, meta: meta, table: NewCrossReferenceTable(), firstNum: 1, nextNum: 1}, nil
}

// PrepareForSave prepares w for an incremental update appended to an
// already-written file: new objects are numbered starting above every
// number used so far, and the resulting trailer's /Prev links back to
// prevTable/prevTrailer. startPos is the byte offset in the underlying
// writer at which new content begins (typically the size of the existing
// file); the Writer does not itself seek there, it trusts the caller
// positioned w accordingly.
func PrepareForSave(w io.Writer, meta *MetaInfo, prevTable *CrossReferenceTable, prevTrailer *Trailer, prevXRefPos int64, startPos int64) *Writer {
	pw := newPosWriter(w)
	pw.pos = startPos
	first := prevTable.MaxObjectNumber() + 1

	var prevW1 int
	if prevTrailer != nil && prevTrailer.Dict != nil {
		if wArr, ok := prevTrailer.Dict.Get("W").(Array); ok && len(wArr) >= 2 {
			if wi, ok := wArr[1].(Integer); ok {
				prevW1 = int(wi)
			}
		}
	}

	return &Writer{
		w:           pw,
		meta:        meta,
		table:       NewCrossReferenceTable(),
		firstNum:    first,
		nextNum:     first,
		prev:        prevTrailer,
		prevXRefPos: prevXRefPos,
		startPos:    startPos,
		prevW1:      prevW1,
	}
}

// GetMeta implements [Putter].
func (w *Writer) GetMeta() *MetaInfo { return w.meta }

// Alloc implements [Putter]: it reserves the next unused object number.
func (w *Writer) Alloc() Reference {
	w.mu.Lock()
	defer w.mu.Unlock()
	ref := NewReference(w.nextNum, 0)
	w.nextNum++
	return ref
}

// Put implements [Putter]: it writes obj as ref's indirect object.
func (w *Writer) Put(ref Reference, obj Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sec != nil && ref != w.encryptRef {
		var err error
		obj, err = encryptValue(w.sec, ref, obj)
		if err != nil {
			return err
		}
	}

	pos := w.w.pos
	if _, err := fmt.Fprintf(w.w, "%d %d obj\n", ref.ID.Number, ref.ID.Generation); err != nil {
		return err
	}
	if err := writeValue(w.w, obj); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte("\nendobj\n")); err != nil {
		return err
	}
	return w.table.Add(ref.ID.Number, XRefEntry{Pos: pos, Generation: ref.ID.Generation})
}

// OpenStream implements [Putter]: it writes ref's indirect object as a
// stream, running the written bytes through filters (applied in the order
// given, so filters[0] is the first stage a reader must undo) and filling
// in /Length once the stream is closed. The returned writer must not be
// used concurrently with other calls on w; only the header is written
// under w's lock, so the body may be written at the caller's own pace.
func (w *Writer) OpenStream(ref Reference, dict *Dict, filters ...Filter) (io.WriteCloser, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos := w.w.pos
	if err := w.table.Add(ref.ID.Number, XRefEntry{Pos: pos, Generation: ref.ID.Generation}); err != nil {
		return nil, err
	}

	dict = dict.Clone()
	if len(filters) > 0 {
		var names Array
		var parms Array
		anyParms := false
		for _, f := range filters {
			names = append(names, f.Name())
			p := f.Params()
			parms = append(parms, p)
			if p != nil {
				anyParms = true
			}
		}
		if len(names) == 1 {
			dict.Set("Filter", names[0])
		} else {
			dict.Set("Filter", names)
		}
		if anyParms {
			if len(parms) == 1 {
				dict.Set("DecodeParms", parms[0])
			} else {
				dict.Set("DecodeParms", parms)
			}
		}
	}

	length := NewPlaceholder(w, 12)
	if !w.w.seekable() {
		// Placeholder.PDF's fallback would call w.Alloc, which cannot take
		// w.mu while it is held here, so reserve the /Length object now.
		length.ref = NewReference(w.nextNum, 0)
		w.nextNum++
		length.value = []byte(fmt.Sprintf("%d %d R", length.ref.ID.Number, length.ref.ID.Generation))
	}
	dict.Set("Length", length)

	if _, err := fmt.Fprintf(w.w, "%d %d obj\n", ref.ID.Number, ref.ID.Generation); err != nil {
		return nil, err
	}
	if err := dict.PDF(w.w); err != nil {
		return nil, err
	}
	if _, err := w.w.Write([]byte("\nstream\n")); err != nil {
		return nil, err
	}

	// Build the encode chain innermost-out: filters[0]'s encoder sits
	// closest to the raw file bytes (it is the first to be undone when
	// decoding), and filters[len-1]'s encoder is what callers write to.
	sw := &streamWriter{w: w, ref: ref, length: length, start: w.w.pos}
	var out io.WriteCloser = sw
	for i := 0; i < len(filters); i++ {
		var err error
		out, err = filters[i].Encode(out)
		if err != nil {
			return nil, err
		}
	}
	sw.head = out
	return streamCloser{sw}, nil
}

// streamWriter is the innermost stage of an OpenStream pipeline: it writes
// directly to the file and counts bytes so Close can fill in /Length.
type streamWriter struct {
	w      *Writer
	ref    Reference
	length *Placeholder
	start  int64
	n      int64
	head   io.WriteCloser // the outermost filter stage; Close is called on this
}

func (sw *streamWriter) Write(p []byte) (int, error) {
	n, err := sw.w.w.Write(p)
	sw.n += int64(n)
	return n, err
}

func (sw *streamWriter) Close() error { return nil }

// streamCloser is what OpenStream actually returns: closing it closes the
// filter pipeline (flushing any buffered output down to streamWriter),
// fills in /Length, and writes the endstream/endobj trailer.
type streamCloser struct{ sw *streamWriter }

func (s streamCloser) Write(p []byte) (int, error) { return s.sw.head.Write(p) }

func (s streamCloser) Close() error {
	if err := s.sw.head.Close(); err != nil {
		return err
	}
	if err := s.sw.length.Set(Integer(s.sw.n)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.sw.w.w, "\nendstream\nendobj\n")
	return err
}

// fillPlaceholder overwrites the bytes at each position in pos with val,
// used by [Placeholder.Set] once the underlying writer is seekable.
func (w *Writer) fillPlaceholder(pos []int64, val []byte) error {
	if w.w.wa == nil {
		return fmt.Errorf("pdf: placeholder fill-in requires a seekable writer")
	}
	for _, p := range pos {
		if _, err := w.w.wa.WriteAt(val, p); err != nil {
			return err
		}
	}
	return nil
}

// WriteCompressed implements [Putter]: it packs objects into a single
// object stream (ISO 32000-2:2020 §7.5.7), compressed with FlateDecode,
// and records each member's location as type-2 (InStream) in the
// cross-reference table.
func (w *Writer) WriteCompressed(refs []Reference, objects ...Value) error {
	_, err := w.WriteCompressedExtends(refs, Reference{}, objects...)
	return err
}

// WriteCompressedExtends is [Writer.WriteCompressed], plus an /Extends
// entry (ISO 32000-2:2020 table 5, /Extends): extends, if non-zero, names
// the object stream this one continues, used by [ObjectStreamBatcher] to
// preserve the DAG invariant across a sequence of object streams written
// in one save. It returns the new stream's own reference, so a caller
// chaining several object streams together can thread it into the next
// call's extends argument.
func (w *Writer) WriteCompressedExtends(refs []Reference, extends Reference, objects ...Value) (Reference, error) {
	if len(refs) != len(objects) {
		panic("pdf: mismatched refs/objects length")
	}

	body := &byteBuffer{}
	first, err := WriteObjectStream(body, refs, objects)
	if err != nil {
		return Reference{}, err
	}

	streamRef := w.Alloc()
	dict := NewDict()
	dict.Set("Type", Name("ObjStm"))
	dict.Set("N", Integer(len(refs)))
	dict.Set("First", Integer(first))
	if extends != (Reference{}) {
		dict.Set("Extends", extends)
	}

	sw, err := w.OpenStream(streamRef, dict, newFlateFilter(nil))
	if err != nil {
		return Reference{}, err
	}
	if _, err := sw.Write(body.b); err != nil {
		return Reference{}, err
	}
	if err := sw.Close(); err != nil {
		return Reference{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for i, ref := range refs {
		if err := w.table.Add(ref.ID.Number, XRefEntry{InStream: streamRef, Index: i, Generation: ref.ID.Generation}); err != nil {
			return Reference{}, err
		}
	}
	return streamRef, nil
}

// Close implements [Putter]: it writes the trailer and startxref footer.
// The trailer gets no /Root or /Info entry; [Writer.CloseDocument] sets
// those.
func (w *Writer) Close() error {
	return w.closeWith(Reference{}, Reference{})
}

// CloseDocument is like Close but records the document catalog and
// information dictionary references in the trailer.
func (w *Writer) CloseDocument(root, info Reference) error {
	return w.closeWith(root, info)
}

func (w *Writer) closeWith(root, info Reference) error {
	trailerDict := NewDict()
	trailerDict.Set("Size", Integer(w.nextNum))
	if root != (Reference{}) {
		trailerDict.Set("Root", root)
	}
	if info != (Reference{}) {
		trailerDict.Set("Info", info)
	}
	if len(w.meta.ID) == 2 {
		trailerDict.Set("ID", Array{HexString{Bytes: w.meta.ID[0]}, HexString{Bytes: w.meta.ID[1]}})
	}
	if w.prev != nil {
		trailerDict.Set("Prev", Integer(w.prevXRefPos))
	}

	xrefPos := w.w.pos
	var err error
	if w.meta.Version < V1_5 {
		err = w.writeClassicXRefTable(trailerDict)
	} else {
		err = w.writeXRefStream(trailerDict)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w.w, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)
	return err
}

// classicXRefRow is one object number's worth of state for
// writeClassicXRefTable: either the free-list head (object 0, written only
// for a fresh, non-incremental file), or an in-use object with its own
// direct position.
type classicXRefRow struct {
	num   uint32
	entry XRefEntry
}

// xrefSubsections groups nums (already in ascending order) into maximal
// runs of consecutive object numbers, the way a classic xref table's
// subsections are meant to be written: a gap in the numbering starts a new
// subsection rather than being papered over with synthetic free rows.
func xrefSubsections(nums []uint32) [][]uint32 {
	var out [][]uint32
	for i := 0; i < len(nums); {
		j := i + 1
		for j < len(nums) && nums[j] == nums[j-1]+1 {
			j++
		}
		out = append(out, nums[i:j])
		i = j
	}
	return out
}

func (w *Writer) writeClassicXRefTable(trailerDict *Dict) error {
	fresh := w.firstNum <= 1

	var rows []classicXRefRow
	if fresh {
		rows = append(rows, classicXRefRow{num: 0, entry: XRefEntry{Free: true, Generation: 65535}})
	}
	for num := w.firstNum; num < w.nextNum; num++ {
		entry, ok := w.table.Lookup(num)
		if !ok {
			continue
		}
		if entry.InStream != (Reference{}) {
			return fmt.Errorf("pdf: classic xref table cannot represent compressed object %d", num)
		}
		rows = append(rows, classicXRefRow{num: num, entry: entry})
	}

	nums := make([]uint32, len(rows))
	byNum := make(map[uint32]XRefEntry, len(rows))
	for i, r := range rows {
		nums[i] = r.num
		byNum[r.num] = r.entry
	}

	if _, err := w.w.Write([]byte("xref\n")); err != nil {
		return err
	}
	for _, sub := range xrefSubsections(nums) {
		if _, err := fmt.Fprintf(w.w, "%d %d\n", sub[0], len(sub)); err != nil {
			return err
		}
		for _, num := range sub {
			entry := byNum[num]
			if entry.Free {
				if _, err := fmt.Fprintf(w.w, "%010d %05d f\r\n", 0, entry.Generation); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(w.w, "%010d %05d n\r\n", entry.Pos, entry.Generation); err != nil {
				return err
			}
		}
	}

	if _, err := w.w.Write([]byte("trailer\n")); err != nil {
		return err
	}
	return trailerDict.PDF(w.w)
}

// fieldWidth returns the minimum of {1,2,3,4} bytes that can hold max
// (unsigned, big-endian), per the width-widening rule of the
// cross-reference stream's /W entry: a value of 0 always fits in 1 byte.
func fieldWidth(max int64) int {
	for w := 1; w < 4; w++ {
		if max < int64(1)<<(8*uint(w)) {
			return w
		}
	}
	return 4
}

func (w *Writer) writeXRefStream(trailerDict *Dict) error {
	ref := w.Alloc()
	xrefStreamPos := w.w.pos

	fresh := w.firstNum <= 1

	type row struct {
		num  uint32
		tp   int64
		a, b int64
	}
	var rows []row
	if fresh {
		rows = append(rows, row{num: 0, tp: 0, a: 0, b: 65535})
	}
	for num := w.firstNum; num < w.nextNum; num++ {
		if num == ref.ID.Number {
			rows = append(rows, row{num: num, tp: 1, a: xrefStreamPos, b: 0})
			continue
		}
		entry, ok := w.table.Lookup(num)
		switch {
		case !ok || entry.Free:
			rows = append(rows, row{num: num, tp: 0, a: 0, b: 65535})
		case entry.InStream != (Reference{}):
			rows = append(rows, row{num: num, tp: 2, a: int64(entry.InStream.ID.Number), b: int64(entry.Index)})
		default:
			rows = append(rows, row{num: num, tp: 1, a: entry.Pos, b: int64(entry.Generation)})
		}
	}

	// W[1] must never narrow across saves: widen it to fit this save's
	// largest field-2 value (a byte offset or object number), but never
	// drop below the W[1] of the save this one is incremental to.
	var maxA, maxB int64
	for _, r := range rows {
		if r.a > maxA {
			maxA = r.a
		}
		if r.b > maxB {
			maxB = r.b
		}
	}
	w1 := fieldWidth(maxA)
	if w.prevW1 > w1 {
		w1 = w.prevW1
	}
	w2 := fieldWidth(maxB)
	const w0 = 1 // type field: 0..2 always fits in a single byte

	nums := make([]uint32, len(rows))
	for i, r := range rows {
		nums[i] = r.num
	}

	trailerDict.Set("Size", Integer(w.nextNum))
	trailerDict.Set("Type", Name("XRef"))
	trailerDict.Set("W", Array{Integer(w0), Integer(w1), Integer(w2)})

	var index Array
	for _, sub := range xrefSubsections(nums) {
		index = append(index, Integer(sub[0]), Integer(len(sub)))
	}
	trailerDict.Set("Index", index)

	byNum := make(map[uint32]row, len(rows))
	for _, r := range rows {
		byNum[r.num] = r
	}

	body := &byteBuffer{}
	putRow := func(tp int64, a, b int64) {
		buf := make([]byte, 0, w0+w1+w2)
		buf = appendBigEndian(buf, tp, w0)
		buf = appendBigEndian(buf, a, w1)
		buf = appendBigEndian(buf, b, w2)
		body.b = append(body.b, buf...)
	}
	for _, num := range nums {
		r := byNum[num]
		putRow(r.tp, r.a, r.b)
	}

	sw, err := w.OpenStream(ref, trailerDict, newFlateFilter(nil))
	if err != nil {
		return err
	}
	if _, err := sw.Write(body.b); err != nil {
		return err
	}
	return sw.Close()
}

func appendBigEndian(dst []byte, v int64, width int) []byte {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return append(dst, buf...)
}
