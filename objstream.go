package pdf

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// objStreamCapacity bounds how many objects this package packs into one
// object stream when writing: PDF readers tolerate arbitrarily large
// object streams, but very large ones hurt incremental-update locality
// (the whole stream must be rewritten to touch any one member) and make a
// decode failure lose more objects at once.
const objStreamCapacity = 100

// ObjectStream is a decoded PDF object stream (ISO 32000-2:2020 §7.5.7): a
// container for indirectly-referenced non-stream objects, each located by
// an index rather than a byte offset.
type ObjectStream struct {
	Refs   []Reference
	Values []Value
}

// ReadObjectStream decodes stream as an object stream. r is used to
// resolve /N and /First if they are themselves indirect (unusual, but
// legal).
func ReadObjectStream(r Getter, stream *Stream) (*ObjectStream, error) {
	n, err := GetInt(r, stream.Dict.Get("N"))
	if err != nil {
		return nil, err
	}
	first, err := GetInt(r, stream.Dict.Get("First"))
	if err != nil {
		return nil, err
	}
	if n < 0 || first < 0 {
		return nil, &MalformedFileError{Err: errors.New("object stream has negative /N or /First")}
	}

	body, err := DecodeStream(r, stream, -1)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	lx := NewLexer(byteSliceReader{data}, 0)
	type header struct {
		num    uint32
		offset int64
	}
	headers := make([]header, n)
	for i := range headers {
		numTok, err := lx.Next()
		if err != nil || numTok.Kind != TokInteger {
			return nil, &MalformedFileError{Err: errors.New("malformed object stream header")}
		}
		offTok, err := lx.Next()
		if err != nil || offTok.Kind != TokInteger {
			return nil, &MalformedFileError{Err: errors.New("malformed object stream header")}
		}
		headers[i] = header{uint32(numTok.Int), int64(offTok.Int)}
	}

	os := &ObjectStream{
		Refs:   make([]Reference, n),
		Values: make([]Value, n),
	}
	for i, h := range headers {
		pos := int64(first) + h.offset
		if pos < 0 || pos > int64(len(data)) {
			return nil, &MalformedFileError{Err: fmt.Errorf("object stream member %d out of bounds", i)}
		}
		olx := NewLexer(byteSliceReader{data[pos:]}, pos)
		p := NewParser(olx, nil)
		v, err := p.ReadObject()
		if err != nil {
			return nil, err
		}
		os.Refs[i] = NewReference(h.num, 0)
		os.Values[i] = v
	}
	return os, nil
}

// byteSliceReader is a minimal io.Reader over an in-memory slice, used so
// the lexer's buffered-refill path works uniformly whether its source is
// a file or already-decoded bytes.
type byteSliceReader struct{ b []byte }

func (r byteSliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	return n, nil
}

// WriteObjectStream encodes objects (which must not themselves be
// streams — object streams cannot nest) into w as an object stream body: a
// header of "num offset" pairs followed by the concatenated object bodies.
// It returns the header's length in bytes, the value of the stream
// dictionary's /First entry.
func WriteObjectStream(w io.Writer, refs []Reference, objects []Value) (int, error) {
	if len(refs) != len(objects) {
		panic("pdf: mismatched refs/objects length")
	}

	bodies := make([][]byte, len(objects))
	for i, obj := range objects {
		if _, ok := obj.(*Stream); ok {
			return 0, fmt.Errorf("pdf: object streams cannot contain stream objects (ref %s)", refs[i])
		}
		buf := &byteBuffer{}
		if err := writeValue(buf, obj); err != nil {
			return 0, err
		}
		bodies[i] = buf.b
	}

	header := &byteBuffer{}
	offset := int64(0)
	for i, ref := range refs {
		fmt.Fprintf(header, "%d %d ", ref.ID.Number, offset)
		offset += int64(len(bodies[i])) + 1 // +1 for the separating space
	}

	if _, err := w.Write(header.b); err != nil {
		return 0, err
	}
	for _, body := range bodies {
		if _, err := w.Write(body); err != nil {
			return 0, err
		}
		if _, err := w.Write([]byte{' '}); err != nil {
			return 0, err
		}
	}
	return len(header.b), nil
}

type byteBuffer struct{ b []byte }

func (b *byteBuffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// ObjectStreamBatcher accumulates objects destined for object streams and
// flushes them in batches of at most [objStreamCapacity], so that several
// goroutines producing objects concurrently (e.g. one per page being
// built) can each call Add without individually tracking when a batch has
// grown large enough to be worth writing out.
type ObjectStreamBatcher struct {
	w *Writer

	mu      sync.Mutex
	refs    []Reference
	objects []Value

	// lastStream and lastExtends track the most recently flushed stream's
	// own reference and its /Extends value, so the next flush can preserve
	// the /Extends DAG invariant (ISO 32000-2:2020 table 5): a stream
	// created because an earlier one filled up points at whatever its
	// predecessor already extended, or at the predecessor itself if it
	// extended nothing.
	lastStream  Reference
	lastExtends Reference
}

// NewObjectStreamBatcher returns a batcher that flushes completed batches
// to w.
func NewObjectStreamBatcher(w *Writer) *ObjectStreamBatcher {
	return &ObjectStreamBatcher{w: w}
}

// Add queues obj under ref for compressed storage, flushing the pending
// batch first if it has reached [objStreamCapacity].
func (b *ObjectStreamBatcher) Add(ref Reference, obj Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.refs) >= objStreamCapacity {
		if err := b.flushLocked(); err != nil {
			return err
		}
	}
	b.refs = append(b.refs, ref)
	b.objects = append(b.objects, obj)
	return nil
}

// Flush writes out any partial batch, even if it has not reached
// [objStreamCapacity]. Callers must call Flush after the last Add to avoid
// losing a partial batch.
func (b *ObjectStreamBatcher) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *ObjectStreamBatcher) flushLocked() error {
	if len(b.refs) == 0 {
		return nil
	}

	var extends Reference
	if b.lastStream != (Reference{}) {
		extends = b.lastStream
		if b.lastExtends != (Reference{}) {
			extends = b.lastExtends
		}
	}

	streamRef, err := b.w.WriteCompressedExtends(b.refs, extends, b.objects...)
	b.refs = nil
	b.objects = nil
	if err != nil {
		return err
	}
	b.lastStream = streamRef
	b.lastExtends = extends
	return nil
}
