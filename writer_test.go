package pdf

import (
	"bytes"
	"io"
	"testing"
)

func TestWriterFreshFile(t *testing.T) {
	buf := &bytes.Buffer{}
	meta := &MetaInfo{Version: V1_7}
	w, err := NewWriter(buf, meta)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	catRef := w.Alloc()
	pagesRef := w.Alloc()
	cat := NewDict()
	cat.Set("Type", Name("Catalog"))
	cat.Set("Pages", pagesRef)
	if err := w.Put(catRef, cat); err != nil {
		t.Fatalf("Put(catalog): %v", err)
	}

	pages := NewDict()
	pages.Set("Type", Name("Pages"))
	pages.Set("Kids", Array{})
	pages.Set("Count", Integer(0))
	if err := w.Put(pagesRef, pages); err != nil {
		t.Fatalf("Put(pages): %v", err)
	}

	if err := w.CloseDocument(catRef, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n")) {
		t.Fatalf("missing header: %q", data[:20])
	}
	if !bytes.Contains(data, []byte("startxref")) {
		t.Fatalf("missing startxref footer")
	}

	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("re-opening written file: %v", err)
	}
	gotCat, err := GetDict(doc, catRef)
	if err != nil {
		t.Fatalf("reading back catalog: %v", err)
	}
	if gotCat.Get("Type") != Name("Catalog") {
		t.Errorf("catalog Type = %#v", gotCat.Get("Type"))
	}
}

func TestWriterStream(t *testing.T) {
	buf := &bytes.Buffer{}
	meta := &MetaInfo{Version: V1_7}
	w, err := NewWriter(buf, meta)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	ref := w.Alloc()
	dict := NewDict()
	sw, err := w.OpenStream(ref, dict, newFlateFilter(nil))
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if _, err := sw.Write([]byte("hello, stream!")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("re-opening written file: %v", err)
	}
	r, err := GetStreamReader(doc, ref)
	if err != nil {
		t.Fatalf("GetStreamReader: %v", err)
	}
	got := make([]byte, len("hello, stream!"))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("reading decoded stream: %v", err)
	}
	if string(got) != "hello, stream!" {
		t.Errorf("got %q", got)
	}
}

func TestWriterCompressedObjects(t *testing.T) {
	buf := &bytes.Buffer{}
	meta := &MetaInfo{Version: V1_7}
	w, err := NewWriter(buf, meta)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	r1, r2 := w.Alloc(), w.Alloc()
	if err := w.WriteCompressed([]Reference{r1, r2}, Integer(100), Name("Foo")); err != nil {
		t.Fatalf("WriteCompressed: %v", err)
	}
	if err := w.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("re-opening written file: %v", err)
	}
	v1, err := doc.Get(r1)
	if err != nil {
		t.Fatalf("Get(r1): %v", err)
	}
	if v1 != Integer(100) {
		t.Errorf("r1 = %#v, want Integer(100)", v1)
	}
	v2, err := doc.Get(r2)
	if err != nil {
		t.Fatalf("Get(r2): %v", err)
	}
	if v2 != Name("Foo") {
		t.Errorf("r2 = %#v, want Name(Foo)", v2)
	}
}

func TestWriterIncrementalUpdate(t *testing.T) {
	buf := &bytes.Buffer{}
	meta := &MetaInfo{Version: V1_7}
	w, err := NewWriter(buf, meta)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	catRef := w.Alloc()
	cat := NewDict()
	cat.Set("Type", Name("Catalog"))
	if err := w.Put(catRef, cat); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.CloseDocument(catRef, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	original := buf.Bytes()
	doc, err := Open(bytes.NewReader(original), int64(len(original)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// The caller tracks the prior xref section's own offset; re-derive it
	// the same way Open itself would, by scanning for startxref.
	prevXRefPos, err := findStartXRef(bytes.NewReader(original), int64(len(original)))
	if err != nil {
		t.Fatalf("findStartXRef: %v", err)
	}

	update := &bytes.Buffer{}
	update.Write(original)
	w2 := doc.StartAppend(update, prevXRefPos)
	newRef := w2.Alloc()
	if err := w2.Put(newRef, Integer(7)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w2.CloseDocument(catRef, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	final := update.Bytes()
	doc2, err := Open(bytes.NewReader(final), int64(len(final)))
	if err != nil {
		t.Fatalf("re-opening updated file: %v", err)
	}
	v, err := doc2.Get(catRef)
	if err != nil {
		t.Fatalf("Get(catRef) after update: %v", err)
	}
	if d, ok := v.(*Dict); !ok || d.Get("Type") != Name("Catalog") {
		t.Errorf("catalog not preserved across update: %#v", v)
	}
	v, err = doc2.Get(newRef)
	if err != nil {
		t.Fatalf("Get(newRef): %v", err)
	}
	if v != Integer(7) {
		t.Errorf("newRef = %#v, want Integer(7)", v)
	}
}

func TestXrefSubsectionsGroupsContiguousRuns(t *testing.T) {
	got := xrefSubsections([]uint32{1, 2, 3, 4, 5, 7, 8, 9})
	want := [][]uint32{{1, 2, 3, 4, 5}, {7, 8, 9}}
	if len(got) != len(want) {
		t.Fatalf("got %d subsections, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("subsection %d = %v, want %v", i, got[i], want[i])
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("subsection %d = %v, want %v", i, got[i], want[i])
			}
		}
	}
}

func TestWriterClassicXRefTableGroupsSubsectionsAndUsesCRLF(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, &MetaInfo{Version: V1_4})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// Object 6 is allocated but never written, leaving a gap that splits
	// the in-use objects into two contiguous runs.
	var last Reference
	for i := 0; i < 5; i++ {
		ref := w.Alloc()
		if err := w.Put(ref, Integer(i)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		last = ref
	}
	w.Alloc() // object 6: never Put, leaving a gap in the table
	for i := 0; i < 3; i++ {
		ref := w.Alloc()
		if err := w.Put(ref, Integer(i)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		last = ref
	}
	_ = last

	if err := w.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	// Object 0 (the free-list head) is contiguous with in-use objects
	// 1-5, so the first subsection is "0 6"; the gap at object 6 starts
	// a second subsection, "7 3".
	if !bytes.Contains(data, []byte("0 6\r\n")) {
		t.Errorf("missing \"0 6\" subsection header: %q", data)
	}
	if !bytes.Contains(data, []byte("7 3\r\n")) {
		t.Errorf("missing \"7 3\" subsection header: %q", data)
	}
	if bytes.Contains(data, []byte(" n \n")) || bytes.Contains(data, []byte(" f \n")) {
		t.Errorf("xref rows must use CRLF, not LF: %q", data)
	}
	if !bytes.Contains(data, []byte(" n\r\n")) {
		t.Errorf("missing CRLF-terminated in-use row: %q", data)
	}
}

func TestWriterXRefStreamNeverNarrowsW1(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, &MetaInfo{Version: V1_7})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	// A real object large enough to push later positions beyond 16 bits
	// forces W[1] to widen to 3 bytes this save.
	padRef := w.Alloc()
	pad := bytes.Repeat([]byte("A"), 70000)
	if err := w.Put(padRef, String{Bytes: pad}); err != nil {
		t.Fatalf("Put(pad): %v", err)
	}
	ref := w.Alloc()
	if err := w.Put(ref, Integer(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("re-opening written file: %v", err)
	}
	if doc.trailer == nil || doc.trailer.Dict == nil {
		t.Fatal("missing trailer")
	}
	wArr, ok := doc.trailer.Dict.Get("W").(Array)
	if !ok || len(wArr) < 2 {
		t.Fatalf("missing /W: %#v", doc.trailer.Dict.Get("W"))
	}
	w1, ok := wArr[1].(Integer)
	if !ok || w1 < 3 {
		t.Fatalf("/W[1] = %#v, want >= 3", wArr[1])
	}

	// A second save appended after this one must not narrow W[1] back
	// down even though its own positions would otherwise fit in less.
	update := &bytes.Buffer{}
	update.Write(data)
	prevXRefPos, err := findStartXRef(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("findStartXRef: %v", err)
	}
	w2 := doc.StartAppend(update, prevXRefPos)
	ref2 := w2.Alloc()
	if err := w2.Put(ref2, Integer(2)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w2.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	final := update.Bytes()
	doc2, err := Open(bytes.NewReader(final), int64(len(final)))
	if err != nil {
		t.Fatalf("re-opening updated file: %v", err)
	}
	wArr2, ok := doc2.trailer.Dict.Get("W").(Array)
	if !ok || len(wArr2) < 2 {
		t.Fatalf("missing /W on update: %#v", doc2.trailer.Dict.Get("W"))
	}
	if w2v, ok := wArr2[1].(Integer); !ok || w2v < w1 {
		t.Errorf("/W[1] narrowed across saves: was %v, now %v", w1, wArr2[1])
	}
}
