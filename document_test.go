package pdf

import (
	"bytes"
	"testing"
)

func buildDocument(t *testing.T, info *Info) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, &MetaInfo{Version: V1_7})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	pagesRef := w.Alloc()
	catRef := w.Alloc()
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

	var infoRef Reference
	if info != nil {
		infoRef = w.Alloc()
		if err := w.Put(infoRef, AsDict(info)); err != nil {
			t.Fatalf("Put(info): %v", err)
		}
	}

	if err := w.CloseDocument(catRef, infoRef); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}
	return buf.Bytes()
}

func TestDocumentOpenResolvesCatalogAndInfo(t *testing.T) {
	data := buildDocument(t, &Info{Title: "A Test Document"})

	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Catalog() == nil {
		t.Fatal("Catalog() is nil")
	}
	if doc.Catalog().Pages == (Reference{}) {
		t.Error("Catalog().Pages is unset")
	}
	if doc.Info() == nil || doc.Info().Title != "A Test Document" {
		t.Errorf("Info() = %#v", doc.Info())
	}
	if doc.GetMeta().Version != V1_7 {
		t.Errorf("Version = %v, want V1_7", doc.GetMeta().Version)
	}
}

func TestDocumentOpenWithoutInfo(t *testing.T) {
	data := buildDocument(t, nil)
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Info() != nil {
		t.Errorf("Info() = %#v, want nil", doc.Info())
	}
}

func TestDocumentGetCachesResult(t *testing.T) {
	data := buildDocument(t, nil)
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ref := NewReference(doc.Catalog().Pages.ID.Number, 0)
	v1, err := doc.Get(ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	v2, err := doc.Get(ref)
	if err != nil {
		t.Fatalf("Get (cached): %v", err)
	}
	d1, _ := v1.(*Dict)
	d2, _ := v2.(*Dict)
	if d1 == nil || d2 == nil || d1.Get("Type") != d2.Get("Type") {
		t.Errorf("cached read mismatch: %#v vs %#v", v1, v2)
	}
}

func TestSaveRenumbersAndCopies(t *testing.T) {
	data := buildDocument(t, &Info{Title: "Original"})
	src, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	out := &bytes.Buffer{}
	newCat := &Catalog{Pages: src.Catalog().Pages}
	newInfo := &Info{Title: "Copied"}
	if err := Save(out, src, newCat, newInfo); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved := out.Bytes()
	doc2, err := Open(bytes.NewReader(saved), int64(len(saved)))
	if err != nil {
		t.Fatalf("re-opening saved file: %v", err)
	}
	if doc2.Info() == nil || doc2.Info().Title != "Copied" {
		t.Errorf("Info() = %#v", doc2.Info())
	}
	if doc2.Catalog() == nil {
		t.Fatal("Catalog() is nil")
	}
}
