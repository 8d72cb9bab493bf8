package fuzzing

import (
	"bytes"
	"io"

	pdf "github.com/go-pdfcore/pdfcore"
)

// Fuzz is the entrance point for github.com/dvyukov/go-fuzz. It opens
// data as a PDF file and walks every object reachable from the catalog
// and information dictionary, draining any stream content found along
// the way, to exercise the cross-reference and filter machinery against
// arbitrary byte strings.
func Fuzz(data []byte) int {
	r := bytes.NewReader(data)
	doc, err := pdf.Open(r, int64(len(data)))
	if err != nil {
		return 0
	}

	seen := make(map[pdf.Reference]bool)
	var roots []pdf.Value
	if cat := doc.Catalog(); cat != nil {
		roots = append(roots, pdf.AsDict(cat))
	}
	if info := doc.Info(); info != nil {
		roots = append(roots, pdf.AsDict(info))
	}

	var walk func(v pdf.Value) error
	walk = func(v pdf.Value) error {
		switch x := v.(type) {
		case pdf.Reference:
			if seen[x] {
				return nil
			}
			seen[x] = true
			resolved, err := doc.Get(x)
			if err != nil {
				return err
			}
			return walk(resolved)
		case pdf.Array:
			for _, e := range x {
				if err := walk(e); err != nil {
					return err
				}
			}
			return nil
		case *pdf.Dict:
			for _, k := range x.Keys() {
				if err := walk(x.Get(k)); err != nil {
					return err
				}
			}
			return nil
		case *pdf.Stream:
			if err := walk(x.Dict); err != nil {
				return err
			}
			body, err := pdf.DecodeStream(doc, x, -1)
			if err != nil {
				return nil // a malformed filter chain is not a fuzz crash
			}
			_, err = io.Copy(io.Discard, body)
			return err
		}
		return nil
	}

	for _, v := range roots {
		if err := walk(v); err != nil {
			return 0
		}
	}
	return 1
}
