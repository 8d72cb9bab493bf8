package pdf

import "testing"

func TestGetRectangleNormalizesCorners(t *testing.T) {
	g := new(mockGetter)
	a := Array{Real(10), Real(100), Real(-5), Real(20)}

	rect, err := GetRectangle(g, a)
	if err != nil {
		t.Fatalf("GetRectangle: %v", err)
	}
	if rect.LLx != -5 || rect.LLy != 20 || rect.URx != 10 || rect.URy != 100 {
		t.Errorf("got %+v", rect)
	}
}

func TestGetRectangleNilObject(t *testing.T) {
	g := new(mockGetter)
	rect, err := GetRectangle(g, nil)
	if err != nil {
		t.Fatalf("GetRectangle: %v", err)
	}
	if rect != nil {
		t.Errorf("expected a nil Rectangle, got %+v", rect)
	}
}

func TestGetRectangleWrongLength(t *testing.T) {
	g := new(mockGetter)
	a := Array{Real(1), Real(2), Real(3)}

	if _, err := GetRectangle(g, a); err == nil {
		t.Fatal("expected an error for a three-element array")
	}
}

func TestRectangleIsZero(t *testing.T) {
	var rect Rectangle
	if !rect.IsZero() {
		t.Error("zero-value Rectangle reported as non-zero")
	}
	rect.URx = 1
	if rect.IsZero() {
		t.Error("non-zero Rectangle reported as zero")
	}
}

func TestGetNumberRejectsNonNumber(t *testing.T) {
	g := new(mockGetter)
	if _, err := GetNumber(g, Name("Foo")); err == nil {
		t.Fatal("expected an error converting a Name to a number")
	}
}

func TestGetNumberAcceptsIntegerUIntegerReal(t *testing.T) {
	g := new(mockGetter)
	cases := []Value{Integer(-3), UInteger(7), Real(1.5)}
	want := []float64{-3, 7, 1.5}

	for i, v := range cases {
		got, err := GetNumber(g, v)
		if err != nil {
			t.Fatalf("GetNumber(%#v): %v", v, err)
		}
		if got != want[i] {
			t.Errorf("GetNumber(%#v) = %v, want %v", v, got, want[i])
		}
	}
}
