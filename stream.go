package pdf

import (
	"bytes"
	"io"
)

// Stream is a PDF stream object: a dictionary together with a sequence of
// bytes. R holds the stream's raw (still-encoded) bytes; decoding the
// /Filter pipeline is the caller's responsibility via [DecodeStream].
type Stream struct {
	Dict *Dict
	R    io.Reader
}

// PDF implements [Value]. Writing a stream's body requires knowing its
// exact byte length in advance; callers that stream content through an
// [io.Writer] without buffering should use [Writer.OpenStream] instead,
// which fills in /Length via a [Placeholder].
func (s *Stream) PDF(w io.Writer) error {
	data, err := io.ReadAll(s.R)
	if err != nil {
		return err
	}

	dict := s.Dict
	if dict == nil {
		dict = NewDict()
	}
	if !dict.Contains("Length") || int64(dict.GetInteger("Length")) != int64(len(data)) {
		dict = dict.Clone()
		dict.Set("Length", Integer(len(data)))
	}

	if err := dict.PDF(w); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\nstream\n")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\nendstream"))
	return err
}

// DecodeStream returns a reader for s's fully-decoded content: every
// filter named in /Filter is undone, in order. numFilters, if
// non-negative, limits decoding to the first numFilters filters; every
// caller in this module passes -1 and decodes fully.
func DecodeStream(r Getter, s *Stream, numFilters int) (io.Reader, error) {
	pipeline, err := filterPipeline(r, s.Dict)
	if err != nil {
		return nil, err
	}
	if numFilters >= 0 && numFilters < len(pipeline) {
		pipeline = pipeline[:numFilters]
	}
	return ApplyFilters(s.R, pipeline)
}

// GetStreamReader resolves obj to a *Stream and returns a reader for its
// fully-decoded content, in one step.
func GetStreamReader(r Getter, obj Value) (io.Reader, error) {
	s, err := GetStream(r, obj)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return bytes.NewReader(nil), nil
	}
	return DecodeStream(r, s, -1)
}
