package pdf

import (
	"bytes"
	"io"
	"testing"
)

func parseOne(t *testing.T, s string) Value {
	t.Helper()
	r := bytes.NewReader([]byte(s))
	lx := NewLexer(r, 0)
	p := NewParser(lx, r)
	v, err := p.ReadObject()
	if err != nil {
		t.Fatalf("%q: %v", s, err)
	}
	return v
}

func TestParserScalars(t *testing.T) {
	if v := parseOne(t, "true"); v != Boolean(true) {
		t.Errorf("true: got %#v", v)
	}
	if v := parseOne(t, "false"); v != Boolean(false) {
		t.Errorf("false: got %#v", v)
	}
	if v := parseOne(t, "null"); v != nil {
		t.Errorf("null: got %#v, want nil", v)
	}
	if v := parseOne(t, "42"); v != Integer(42) {
		t.Errorf("42: got %#v", v)
	}
	if v := parseOne(t, "/Foo"); v != Name("Foo") {
		t.Errorf("/Foo: got %#v", v)
	}
}

func TestParserReference(t *testing.T) {
	v := parseOne(t, "12 0 R")
	ref, ok := v.(Reference)
	if !ok {
		t.Fatalf("expected a Reference, got %#v", v)
	}
	if ref.ID.Number != 12 || ref.ID.Generation != 0 {
		t.Errorf("got %v, want 12 0 R", ref)
	}
}

func TestParserTwoIntegersNotAReference(t *testing.T) {
	r := bytes.NewReader([]byte("12 0 obj"))
	lx := NewLexer(r, 0)
	p := NewParser(lx, r)

	v, err := p.ReadObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Integer(12) {
		t.Fatalf("first object: got %#v, want Integer(12)", v)
	}
	v, err = p.ReadObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Integer(0) {
		t.Fatalf("second object: got %#v, want Integer(0)", v)
	}
}

func TestParserArray(t *testing.T) {
	v := parseOne(t, "[1 2 (three) /Four]")
	arr, ok := v.(Array)
	if !ok || len(arr) != 4 {
		t.Fatalf("got %#v", v)
	}
	if arr[0] != Integer(1) || arr[1] != Integer(2) {
		t.Errorf("got %#v", arr)
	}
	s, ok := arr[2].(String)
	if !ok || string(s.Bytes) != "three" {
		t.Errorf("arr[2] = %#v", arr[2])
	}
	if arr[3] != Name("Four") {
		t.Errorf("arr[3] = %#v", arr[3])
	}
}

func TestParserDict(t *testing.T) {
	v := parseOne(t, "<< /Type /Catalog /Count 3 >>")
	d, ok := v.(*Dict)
	if !ok {
		t.Fatalf("got %#v", v)
	}
	if d.Get("Type") != Name("Catalog") {
		t.Errorf("Type = %#v", d.Get("Type"))
	}
	if d.Get("Count") != Integer(3) {
		t.Errorf("Count = %#v", d.Get("Count"))
	}
}

func TestParserStream(t *testing.T) {
	body := "hello world"
	src := "<< /Length 11 >>\nstream\n" + body + "\nendstream"
	r := bytes.NewReader([]byte(src))
	lx := NewLexer(r, 0)
	p := NewParser(lx, r)

	v, err := p.ReadObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stm, ok := v.(*Stream)
	if !ok {
		t.Fatalf("expected a *Stream, got %#v", v)
	}
	buf, err := io.ReadAll(stm.R)
	if err != nil {
		t.Fatalf("reading stream body: %v", err)
	}
	if string(buf) != body {
		t.Errorf("stream body = %q, want %q", buf, body)
	}
}

func TestParserStreamMissingLength(t *testing.T) {
	body := "hello world"
	src := "<< >>\nstream\n" + body + "\nendstream"
	r := bytes.NewReader([]byte(src))
	lx := NewLexer(r, 0)
	p := NewParser(lx, r)

	v, err := p.ReadObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stm, ok := v.(*Stream)
	if !ok {
		t.Fatalf("expected a *Stream, got %#v", v)
	}
	buf, err := io.ReadAll(stm.R)
	if err != nil {
		t.Fatalf("reading stream body: %v", err)
	}
	if string(buf) != body {
		t.Errorf("recovered stream body = %q, want %q", buf, body)
	}
}

func TestReadIndirectObject(t *testing.T) {
	src := "7 0 obj\n(payload)\nendobj"
	r := bytes.NewReader([]byte(src))
	lx := NewLexer(r, 0)
	p := NewParser(lx, r)

	obj, err := p.ReadIndirectObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.Ref.ID.Number != 7 || obj.Ref.ID.Generation != 0 {
		t.Errorf("Ref = %v", obj.Ref)
	}
	s, ok := obj.Value.(String)
	if !ok || string(s.Bytes) != "payload" {
		t.Errorf("Value = %#v", obj.Value)
	}
}

func TestReadHeaderVersion(t *testing.T) {
	r := bytes.NewReader([]byte("%PDF-1.7\n%binary junk\n1 0 obj"))
	lx := NewLexer(r, 0)
	ver, err := ReadHeaderVersion(lx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ver != V1_7 {
		t.Errorf("got %v, want V1_7", ver)
	}
}
