package pdf

import (
	"bytes"
	"sync"
	"testing"
)

func TestWriteReadObjectStreamRoundTrip(t *testing.T) {
	refs := []Reference{NewReference(1, 0), NewReference(2, 0), NewReference(3, 0)}
	objects := []Value{
		Integer(42),
		Name("Catalog"),
		String{Bytes: []byte("hi")},
	}

	body := &byteBuffer{}
	first, err := WriteObjectStream(body, refs, objects)
	if err != nil {
		t.Fatalf("WriteObjectStream: %v", err)
	}

	dict := NewDict()
	dict.Set("Type", Name("ObjStm"))
	dict.Set("N", Integer(len(refs)))
	dict.Set("First", Integer(first))
	stream := &Stream{Dict: dict, R: byteSliceReader{body.b}}

	os, err := ReadObjectStream(nil, stream)
	if err != nil {
		t.Fatalf("ReadObjectStream: %v", err)
	}
	if len(os.Refs) != 3 || len(os.Values) != 3 {
		t.Fatalf("got %d refs, %d values", len(os.Refs), len(os.Values))
	}
	for i, ref := range refs {
		if os.Refs[i] != ref {
			t.Errorf("Refs[%d] = %v, want %v", i, os.Refs[i], ref)
		}
	}
	if os.Values[0] != Integer(42) {
		t.Errorf("Values[0] = %#v", os.Values[0])
	}
	if os.Values[1] != Name("Catalog") {
		t.Errorf("Values[1] = %#v", os.Values[1])
	}
	s, ok := os.Values[2].(String)
	if !ok || string(s.Bytes) != "hi" {
		t.Errorf("Values[2] = %#v", os.Values[2])
	}
}

func TestWriteObjectStreamRejectsStream(t *testing.T) {
	refs := []Reference{NewReference(1, 0)}
	objects := []Value{&Stream{Dict: NewDict()}}

	body := &byteBuffer{}
	if _, err := WriteObjectStream(body, refs, objects); err == nil {
		t.Fatal("expected an error packing a stream into an object stream")
	}
}

func TestObjectStreamBatcherFlushesAtCapacity(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, &MetaInfo{Version: V1_7})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	batcher := NewObjectStreamBatcher(w)

	refs := make([]Reference, objStreamCapacity+5)
	for i := range refs {
		refs[i] = w.Alloc()
		if err := batcher.Add(refs[i], Integer(i)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := batcher.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("re-opening written file: %v", err)
	}
	for i, ref := range refs {
		v, err := doc.Get(ref)
		if err != nil {
			t.Fatalf("Get(%v): %v", ref, err)
		}
		if v != Integer(i) {
			t.Errorf("ref %d = %#v, want Integer(%d)", i, v, i)
		}
	}
}

func TestObjectStreamBatcherExtendsChainsAcrossFlushes(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, &MetaInfo{Version: V1_7})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	batcher := NewObjectStreamBatcher(w)

	// objStreamCapacity members exactly fill the first stream; the
	// (objStreamCapacity+1)th triggers its flush and starts a second.
	refs := make([]Reference, objStreamCapacity+1)
	for i := range refs {
		refs[i] = w.Alloc()
		if err := batcher.Add(refs[i], Integer(i)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := batcher.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("re-opening written file: %v", err)
	}

	firstEntry, ok := doc.table.Lookup(refs[0].ID.Number)
	if !ok || firstEntry.InStream == (Reference{}) {
		t.Fatalf("object 0's entry is not compressed: %+v", firstEntry)
	}
	lastEntry, ok := doc.table.Lookup(refs[len(refs)-1].ID.Number)
	if !ok || lastEntry.InStream == (Reference{}) {
		t.Fatalf("last object's entry is not compressed: %+v", lastEntry)
	}
	if firstEntry.InStream == lastEntry.InStream {
		t.Fatalf("expected the capacity overflow to start a second object stream")
	}

	secondStreamVal, err := doc.Get(lastEntry.InStream)
	if err != nil {
		t.Fatalf("Get(second stream): %v", err)
	}
	secondStream, ok := secondStreamVal.(*Stream)
	if !ok {
		t.Fatalf("second stream = %#v, want *Stream", secondStreamVal)
	}
	extends, ok := secondStream.Dict.Get("Extends").(Reference)
	if !ok || extends != firstEntry.InStream {
		t.Errorf("second stream's /Extends = %#v, want %v", secondStream.Dict.Get("Extends"), firstEntry.InStream)
	}

	for i, ref := range refs {
		v, err := doc.Get(ref)
		if err != nil {
			t.Fatalf("Get(%v): %v", ref, err)
		}
		if v != Integer(i) {
			t.Errorf("ref %d = %#v, want Integer(%d)", i, v, i)
		}
	}
}

func TestObjectStreamBatcherConcurrentAdd(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, &MetaInfo{Version: V1_7})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	batcher := NewObjectStreamBatcher(w)

	const n = 50
	refs := make([]Reference, n)
	for i := range refs {
		refs[i] = w.Alloc()
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = batcher.Add(refs[i], Integer(i))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if err := batcher.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.CloseDocument(Reference{}, Reference{}); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}

	data := buf.Bytes()
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("re-opening written file: %v", err)
	}
	seen := make(map[int64]bool)
	for _, ref := range refs {
		v, err := doc.Get(ref)
		if err != nil {
			t.Fatalf("Get(%v): %v", ref, err)
		}
		iv, ok := v.(Integer)
		if !ok {
			t.Fatalf("Get(%v) = %#v, want Integer", ref, v)
		}
		seen[int64(iv)] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct values, want %d", len(seen), n)
	}
}
