// seehuhn.de/go/pdf - a library for reading and writing PDF files
// Copyright (C) 2024  Jochen Voss <voss@seehuhn.de>
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

// Package walker provides functionality to iterate over all objects
// reachable from a PDF document's catalog and information dictionary.
package walker

import (
	"iter"

	pdf "github.com/go-pdfcore/pdfcore"
)

// A Walker traverses every object reachable from a [pdf.Document]'s
// catalog and information dictionary.
//
// This only visits objects in the PDF container. It does not interpret
// the contents of content streams (page descriptions, font programs, and
// so on).
type Walker struct {
	pdf.Getter

	// Err holds the first error encountered during traversal. The
	// traversal stops immediately when an error is encountered; callers
	// should check this field once an iterator is exhausted.
	Err error
}

// New creates a Walker over r's object graph.
func New(r pdf.Getter) *Walker {
	return &Walker{Getter: r}
}

// PreOrder returns an iterator that visits every reachable object,
// container before contents, yielding each object's [pdf.Reference] (the
// zero Reference for objects that were not reached via one) and value.
//
// The iterator cannot be used concurrently.
func (w *Walker) PreOrder() iter.Seq2[pdf.Reference, pdf.Value] {
	return func(yield func(pdf.Reference, pdf.Value) bool) {
		w.walk(yield, true)
	}
}

// PostOrder is like [Walker.PreOrder] but yields each container after its
// contents.
func (w *Walker) PostOrder() iter.Seq2[pdf.Reference, pdf.Value] {
	return func(yield func(pdf.Reference, pdf.Value) bool) {
		w.walk(yield, false)
	}
}

func (w *Walker) walk(yield func(pdf.Reference, pdf.Value) bool, preOrder bool) {
	w.Err = nil
	visited := make(map[pdf.Reference]struct{})

	meta := w.GetMeta()
	var roots []pdf.Value
	if meta.Info != nil {
		roots = append(roots, pdf.AsDict(meta.Info))
	}
	if meta.Catalog != nil {
		roots = append(roots, pdf.AsDict(meta.Catalog))
	}

	for _, root := range roots {
		if !w.walkObject(pdf.Reference{}, root, yield, preOrder, visited) {
			return
		}
	}
}

func (w *Walker) walkObject(ref pdf.Reference, obj pdf.Value, yield func(pdf.Reference, pdf.Value) bool, preOrder bool, visited map[pdf.Reference]struct{}) bool {
	if obj == nil {
		return true
	}

	if r, isReference := obj.(pdf.Reference); isReference {
		if _, already := visited[r]; already {
			return true
		}
		visited[r] = struct{}{}

		resolved, err := w.Get(r)
		if err != nil {
			w.Err = err
			return false
		}

		if stm, isStream := resolved.(*pdf.Stream); isStream {
			// /Length depends on whether the stream is encrypted, so it
			// is not safe to copy verbatim into another file; clear it
			// to force recomputation by whatever writes this object out.
			stm.Dict.Delete("Length")
		}

		return w.walkObject(r, resolved, yield, preOrder, visited)
	}

	if preOrder {
		if !yield(ref, obj) {
			return false
		}
	}

	switch v := obj.(type) {
	case pdf.Array:
		for _, item := range v {
			if !w.walkObject(pdf.Reference{}, item, yield, preOrder, visited) {
				return false
			}
		}
	case *pdf.Dict:
		for _, k := range v.Keys() {
			if !w.walkObject(pdf.Reference{}, v.Get(k), yield, preOrder, visited) {
				return false
			}
		}
	case *pdf.Stream:
		if !w.walkObject(pdf.Reference{}, v.Dict, yield, preOrder, visited) {
			return false
		}
	}

	if !preOrder {
		if !yield(ref, obj) {
			return false
		}
	}

	return true
}

// IndirectObjects returns an iterator over only the indirectly-referenced
// objects of a pre-order traversal, skipping inline (directly-nested)
// values.
func (w *Walker) IndirectObjects() iter.Seq2[pdf.Reference, pdf.Value] {
	return func(yield func(pdf.Reference, pdf.Value) bool) {
		for ref, obj := range w.PreOrder() {
			if ref == (pdf.Reference{}) || obj == nil {
				continue
			}
			if !yield(ref, obj) {
				return
			}
		}
	}
}
