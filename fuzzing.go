// seehuhn.de/go/pdf - support for reading and writing PDF files
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

// +build gofuzz

package pdf

import (
	"bytes"
	"fmt"
)

// Fuzz is the entrance point for github.com/dvyukov/go-fuzz. It checks
// the encode/decode round-trip invariant: parsing data, re-serialising
// the result, and parsing that again must yield an identical third
// serialisation.
func Fuzz(data []byte) int {
	obj1, err := parseOneObject(data)
	if err != nil {
		return 0
	}

	buf1 := &bytes.Buffer{}
	if err := writeValue(buf1, obj1); err != nil {
		fmt.Println(err)
		panic("first re-serialisation failed")
	}

	obj2, err := parseOneObject(buf1.Bytes())
	if err != nil {
		fmt.Printf("%q\n", buf1.Bytes())
		fmt.Println(err)
		panic("second parse of re-serialised output failed")
	}

	buf2 := &bytes.Buffer{}
	if err := writeValue(buf2, obj2); err != nil {
		fmt.Println(err)
		panic("second re-serialisation failed")
	}

	if buf1.String() != buf2.String() {
		fmt.Println(buf1.String())
		fmt.Println(buf2.String())
		panic("round trip is not idempotent")
	}

	return 1
}

func parseOneObject(data []byte) (Value, error) {
	r := bytes.NewReader(data)
	lx := NewLexer(r, 0)
	p := NewParser(lx, r)
	return p.ReadObject()
}
