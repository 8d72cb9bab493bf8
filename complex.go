// seehuhn.de/go/pdf - a library for reading and writing PDF files
// Copyright (C) 2021  Jochen Voss <voss@seehuhn.de>
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

package pdf

// This file contains composite PDF data structures built from the
// elementary types in "value.go".

import (
	"fmt"
	"io"
	"math"
)

// GetNumber resolves obj and checks that it is an Integer, UInteger, or
// Real, returning its value as a float64.
func GetNumber(r Getter, obj Value) (float64, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case Integer:
		return float64(x), nil
	case UInteger:
		return float64(x), nil
	case Real:
		return float64(x), nil
	default:
		return 0, &MalformedFileError{Err: fmt.Errorf("expected number but got %T", obj)}
	}
}

// Rectangle represents a PDF rectangle object: a four-element numeric
// array giving two opposite corners, in arbitrary order.
type Rectangle struct {
	LLx, LLy, URx, URy float64
}

// GetRectangle resolves obj and converts it to a Rectangle, normalising
// the corners so that LLx<=URx and LLy<=URy. A null object yields a nil
// Rectangle and no error.
func GetRectangle(r Getter, obj Value) (*Rectangle, error) {
	a, err := GetArray(r, obj)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	return asRectangle(r, a)
}

func asRectangle(r Getter, a Array) (*Rectangle, error) {
	if len(a) != 4 {
		return nil, errNoRectangle
	}
	var v [4]float64
	for i, obj := range a {
		x, err := GetNumber(r, obj)
		if err != nil {
			return nil, err
		}
		v[i] = x
	}
	return &Rectangle{
		LLx: math.Min(v[0], v[2]),
		LLy: math.Min(v[1], v[3]),
		URx: math.Max(v[0], v[2]),
		URy: math.Max(v[1], v[3]),
	}, nil
}

func (rect *Rectangle) String() string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", rect.LLx, rect.LLy, rect.URx, rect.URy)
}

// PDF implements [Value].
func (rect *Rectangle) PDF(w io.Writer) error {
	res := Array{
		Real(rect.LLx), Real(rect.LLy), Real(rect.URx), Real(rect.URy),
	}
	return res.PDF(w)
}

// IsZero reports whether rect is the zero rectangle.
func (rect Rectangle) IsZero() bool {
	return rect.LLx == 0 && rect.LLy == 0 && rect.URx == 0 && rect.URy == 0
}
