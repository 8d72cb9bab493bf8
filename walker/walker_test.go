package walker

import (
	"errors"
	"reflect"
	"testing"

	pdf "github.com/go-pdfcore/pdfcore"
)

// mockGetter simulates a simple PDF object graph for testing.
type mockGetter struct {
	objects map[pdf.Reference]pdf.Value
	meta    *pdf.MetaInfo
}

var (
	mockErrorRef = pdf.NewReference(99, 0)
	errMock      = errors.New("mock error")
)

func (m *mockGetter) Get(ref pdf.Reference) (pdf.Value, error) {
	if ref == mockErrorRef {
		return nil, errMock
	}
	return m.objects[ref], nil
}

func (m *mockGetter) GetMeta() *pdf.MetaInfo {
	return m.meta
}

func newMockPDF() *mockGetter {
	ref := func(n uint32) pdf.Reference { return pdf.NewReference(n, 0) }

	objects := map[pdf.Reference]pdf.Value{
		ref(1): pdf.Name("unused object"),
		ref(2): func() *pdf.Dict {
			d := pdf.NewDict()
			d.Set("Type", pdf.Name("Pages"))
			d.Set("Kids", pdf.Array{ref(3), ref(4)})
			return d
		}(),
		ref(3): func() *pdf.Dict {
			d := pdf.NewDict()
			d.Set("Type", pdf.Name("Page"))
			d.Set("Parent", ref(2))
			d.Set("Contents", ref(5))
			return d
		}(),
		ref(4): func() *pdf.Dict {
			d := pdf.NewDict()
			d.Set("Type", pdf.Name("Page"))
			d.Set("Parent", ref(2))
			d.Set("Contents", ref(6))
			return d
		}(),
		ref(5): pdf.String{Bytes: []byte("Content of page 1")},
		ref(6): pdf.String{Bytes: []byte("Content of page 2")},
	}

	return &mockGetter{
		objects: objects,
		meta: &pdf.MetaInfo{
			Info: &pdf.Info{Title: "Mock PDF"},
			Catalog: &pdf.Catalog{
				Pages: ref(2),
			},
		},
	}
}

func TestWalker_PreOrder(t *testing.T) {
	mockPDF := newMockPDF()
	w := New(mockPDF)

	var objects []pdf.Reference
	for r := range w.PreOrder() {
		if r != (pdf.Reference{}) {
			objects = append(objects, r)
		}
	}

	if w.Err != nil {
		t.Errorf("unexpected error: %v", w.Err)
	}

	ref := func(n uint32) pdf.Reference { return pdf.NewReference(n, 0) }
	expected := []pdf.Reference{ref(2), ref(3), ref(5), ref(4), ref(6)}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("incorrect pre-order traversal: got %v, want %v", objects, expected)
	}
}

func TestWalker_PostOrder(t *testing.T) {
	mockPDF := newMockPDF()
	w := New(mockPDF)

	var objects []pdf.Reference
	for r := range w.PostOrder() {
		if r != (pdf.Reference{}) {
			objects = append(objects, r)
		}
	}

	if w.Err != nil {
		t.Errorf("unexpected error: %v", w.Err)
	}

	ref := func(n uint32) pdf.Reference { return pdf.NewReference(n, 0) }
	expected := []pdf.Reference{ref(5), ref(3), ref(6), ref(4), ref(2)}
	if !reflect.DeepEqual(objects, expected) {
		t.Errorf("incorrect post-order traversal: got %v, want %v", objects, expected)
	}
}

func TestWalker_Error(t *testing.T) {
	mockPDF := newMockPDF()
	mockPDF.meta.Catalog.Metadata = mockErrorRef

	w := New(mockPDF)

	for r := range w.PreOrder() {
		if r == mockErrorRef {
			t.Errorf("mockErrorRef should not be reached")
		}
	}

	if w.Err != errMock {
		t.Errorf("expected errMock, got %v", w.Err)
	}
}
