// Copyright 2020 Jochen Voss <voss@seehuhn.de>
//
// Some code here, e.g. the pngUpReader/pngUpWriter predictor plumbing, is
// adapted from https://pkg.go.dev/rsc.io/pdf . Use of that source is
// governed by a BSD-style license, which is reproduced here:
//
//     Copyright (c) 2009 The Go Authors. All rights reserved.
//
//     Redistribution and use in source and binary forms, with or without
//     modification, are permitted provided that the following conditions are
//     met:
//
//        * Redistributions of source code must retain the above copyright
//     notice, this list of conditions and the following disclaimer.
//        * Redistributions in binary form must reproduce the above
//     copyright notice, this list of conditions and the following disclaimer
//     in the documentation and/or other materials provided with the
//     distribution.
//        * Neither the name of Google Inc. nor the names of its
//     contributors may be used to endorse or promote products derived from
//     this software without specific prior written permission.
//
//     THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
//     "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
//     LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
//     A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
//     OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
//     SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
//     LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
//     DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
//     THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
//     (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
//     OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package pdf

import (
	"compress/zlib"
	"fmt"
	"io"

	"github.com/go-pdfcore/pdfcore/ascii85"
	"github.com/go-pdfcore/pdfcore/internal/filter/asciihex"
	"github.com/go-pdfcore/pdfcore/internal/filter/predict"
	"github.com/go-pdfcore/pdfcore/internal/filter/runlength"
)

// Filter is one entry of a stream's /Filter pipeline: something that can
// decode (read path) and encode (write path) a byte stream. Filters are
// applied in array order when reading, and the corresponding encoders are
// applied in reverse when writing, so that the /Filter array always lists
// them in the order a reader must undo them.
type Filter interface {
	// Name is the value to record in /Filter for this stage.
	Name() Name

	// Params is the corresponding /DecodeParms entry, or nil.
	Params() *Dict

	// Decode wraps r to undo this filter's encoding.
	Decode(r io.Reader) (io.Reader, error)

	// Encode wraps w to apply this filter's encoding. Closing the
	// returned writer must flush any buffered state but must not close w.
	Encode(w io.WriteCloser) (io.WriteCloser, error)
}

// ApplyFilters returns a reader that decodes r through each filter in
// pipeline, in order (pipeline[0] is undone first, matching the order a
// stream's /Filter array lists them).
func ApplyFilters(r io.Reader, pipeline []Filter) (io.Reader, error) {
	for _, f := range pipeline {
		var err error
		r, err = f.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
	}
	return r, nil
}

// filterPipeline builds the []Filter described by a stream dictionary's
// /Filter and /DecodeParms entries.
func filterPipeline(r Getter, dict *Dict) ([]Filter, error) {
	filterObj, err := Resolve(r, dict.Get("Filter"))
	if err != nil {
		return nil, err
	}
	if filterObj == nil {
		return nil, nil
	}

	var names []Name
	switch x := filterObj.(type) {
	case Name:
		names = []Name{x}
	case Array:
		for _, v := range x {
			n, err := GetName(r, v)
			if err != nil {
				return nil, err
			}
			names = append(names, n)
		}
	default:
		return nil, &MalformedFileError{Err: fmt.Errorf("invalid /Filter entry %T", filterObj)}
	}

	parmsObj, err := Resolve(r, dict.Get("DecodeParms"))
	if err != nil {
		return nil, err
	}
	var parmsList []*Dict
	switch x := parmsObj.(type) {
	case nil:
		parmsList = make([]*Dict, len(names))
	case *Dict:
		parmsList = []*Dict{x}
	case Array:
		for _, v := range x {
			d, err := GetDict(r, v)
			if err != nil {
				return nil, err
			}
			parmsList = append(parmsList, d)
		}
	}
	for len(parmsList) < len(names) {
		parmsList = append(parmsList, nil)
	}

	pipeline := make([]Filter, len(names))
	for i, name := range names {
		f, err := newFilter(name, parmsList[i])
		if err != nil {
			return nil, err
		}
		pipeline[i] = f
	}
	return pipeline, nil
}

func newFilter(name Name, parms *Dict) (Filter, error) {
	switch name {
	case "FlateDecode":
		return newFlateFilter(parms), nil
	case "ASCIIHexDecode":
		return &asciiHexFilter{}, nil
	case "ASCII85Decode":
		return &ascii85Filter{}, nil
	case "RunLengthDecode":
		return &runLengthFilter{}, nil
	default:
		return nil, &UnsupportedFeatureError{Feature: "filter " + string(name)}
	}
}

func predictParams(parms *Dict) *predict.Params {
	get := func(key Name, def int) int {
		if parms == nil {
			return def
		}
		if i, ok := parms.Get(key).(Integer); ok {
			return int(i)
		}
		return def
	}
	return &predict.Params{
		Predictor:        get("Predictor", 1),
		Colors:           get("Colors", 1),
		BitsPerComponent: get("BitsPerComponent", 8),
		Columns:          get("Columns", 1),
	}
}

type flateFilter struct {
	parms *Dict
}

func newFlateFilter(parms *Dict) *flateFilter {
	return &flateFilter{parms: parms}
}

func (f *flateFilter) Name() Name    { return "FlateDecode" }
func (f *flateFilter) Params() *Dict { return f.parms }

func (f *flateFilter) Decode(r io.Reader) (io.Reader, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	p := predictParams(f.parms)
	if p.Predictor == 1 {
		return zr, nil
	}
	return predict.NewReader(zr, p)
}

func (f *flateFilter) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	zw := zlib.NewWriter(w)
	p := predictParams(f.parms)
	if p.Predictor == 1 {
		return &flateWriteCloser{zw}, nil
	}
	pw, err := predict.NewWriter(&flateWriteCloser{zw}, p)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// flateWriteCloser adapts a *zlib.Writer (whose Close both flushes the
// DEFLATE stream and writes the Adler-32 checksum) to io.WriteCloser
// without closing the underlying stream writer.
type flateWriteCloser struct {
	zw *zlib.Writer
}

func (f *flateWriteCloser) Write(p []byte) (int, error) { return f.zw.Write(p) }
func (f *flateWriteCloser) Close() error                { return f.zw.Close() }

type asciiHexFilter struct{}

func (asciiHexFilter) Name() Name    { return "ASCIIHexDecode" }
func (asciiHexFilter) Params() *Dict { return nil }

func (asciiHexFilter) Decode(r io.Reader) (io.Reader, error) {
	return asciihex.Decode(r), nil
}

func (asciiHexFilter) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return &asciiHexWriter{w: w}, nil
}

// asciiHexWriter writes two hex digits per input byte, terminated by '>'
// on Close.
type asciiHexWriter struct {
	w io.WriteCloser
}

func (w *asciiHexWriter) Write(p []byte) (int, error) {
	buf := make([]byte, 0, 2*len(p))
	const digits = "0123456789ABCDEF"
	for _, b := range p {
		buf = append(buf, digits[b>>4], digits[b&0xf])
	}
	if _, err := w.w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *asciiHexWriter) Close() error {
	if _, err := w.w.Write([]byte{'>'}); err != nil {
		return err
	}
	return nil
}

type ascii85Filter struct {
	f ascii85.Filter
}

func (f *ascii85Filter) Name() Name    { return "ASCII85Decode" }
func (f *ascii85Filter) Params() *Dict { return nil }

func (f *ascii85Filter) Decode(r io.Reader) (io.Reader, error) { return f.f.Decode(r) }
func (f *ascii85Filter) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return f.f.Encode(w)
}

type runLengthFilter struct{}

func (runLengthFilter) Name() Name    { return "RunLengthDecode" }
func (runLengthFilter) Params() *Dict { return nil }

func (runLengthFilter) Decode(r io.Reader) (io.Reader, error) {
	return runlength.Decode(r), nil
}

func (runLengthFilter) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return &runLengthWriter{w: w}, nil
}

// runLengthWriter encodes its input as literal runs of at most 128 bytes
// each and never emits a repeat run. This
// never beats FlateDecode, but it is correct and simple, matching the
// low ambition the RunLengthDecode filter itself has in practice (it
// exists for decoding legacy files, rarely for producing new ones).
type runLengthWriter struct {
	w io.WriteCloser
}

func (w *runLengthWriter) Write(p []byte) (int, error) {
	for len(p) > 0 {
		n := len(p)
		if n > 128 {
			n = 128
		}
		if _, err := w.w.Write([]byte{byte(n - 1)}); err != nil {
			return 0, err
		}
		if _, err := w.w.Write(p[:n]); err != nil {
			return 0, err
		}
		p = p[n:]
	}
	return len(p), nil
}

func (w *runLengthWriter) Close() error {
	_, err := w.w.Write([]byte{128})
	return err
}
