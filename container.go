// seehuhn.de/go/pdf - a library for reading and writing PDF files
// Copyright (C) 2023  Jochen Voss <voss@seehuhn.de>
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

import (
	"errors"
	"fmt"
	"io"
)

// Getter gives read access to a PDF object graph: [MetaInfo] plus
// resolving a [Reference] to the Value it names.
type Getter interface {
	GetMeta() *MetaInfo
	Get(ref Reference) (Value, error)
}

// Putter gives write access to a PDF object graph being constructed or
// amended: allocating fresh references, writing objects and streams under
// them, and compressing groups of objects into an object stream.
type Putter interface {
	Close() error
	GetMeta() *MetaInfo
	Alloc() Reference
	Put(ref Reference, obj Value) error
	OpenStream(ref Reference, dict *Dict, filters ...Filter) (io.WriteCloser, error)
	WriteCompressed(refs []Reference, objects ...Value) error
}

// Resolve follows obj if it is a [Reference], repeatedly, until it
// resolves to a non-reference Value (or PDF null). Anything that is not a
// Reference is returned unchanged. A chain of more than 16 references is
// reported as a [MalformedFileError], since real files never need more
// than a couple of hops and a longer chain is almost always a cycle.
func Resolve(r Getter, obj Value) (Value, error) {
	orig := obj
	for count := 0; ; count++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj, nil
		}
		if count >= 16 {
			return nil, &MalformedFileError{Err: fmt.Errorf(
				"too many levels of indirection resolving %s", orig)}
		}
		var err error
		obj, err = r.Get(ref)
		if err != nil {
			return nil, err
		}
	}
}

func resolveAndCast[T Value](r Getter, obj Value) (x T, err error) {
	obj, err = Resolve(r, obj)
	if err != nil {
		return x, err
	}
	if obj == nil {
		return x, nil
	}
	if x, ok := obj.(T); ok {
		return x, nil
	}
	return x, &MalformedFileError{Err: fmt.Errorf("expected %T but got %T", x, obj)}
}

// Typed accessors: each resolves obj (following indirect references) and
// casts it to the named type. A null object yields the zero value and no
// error; a type mismatch is a [MalformedFileError]. GetReference is the
// exception: it does not resolve obj, and anything other than a
// [Reference], null included, is a [MalformedFileError].
var (
	GetArray     = resolveAndCast[Array]
	GetBoolean   = resolveAndCast[Boolean]
	GetDict      = resolveAndCast[*Dict]
	GetInt       = resolveAndCast[Integer]
	GetName      = resolveAndCast[Name]
	GetReal      = resolveAndCast[Real]
	GetStream    = resolveAndCast[*Stream]
	GetString    = resolveAndCast[String]
	GetReference = resolveRef
)

func resolveRef(r Getter, obj Value) (Reference, error) {
	ref, ok := obj.(Reference)
	if !ok {
		return Reference{}, &MalformedFileError{Err: errors.New("expected indirect reference")}
	}
	return ref, nil
}

// GetTextString resolves obj and decodes it as a PDF text string,
// accepting either a [String] or a [HexString].
func GetTextString(r Getter, obj Value) (string, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return "", err
	}
	switch x := obj.(type) {
	case nil:
		return "", nil
	case String:
		return x.AsTextString(), nil
	case HexString:
		return x.AsTextString(), nil
	default:
		return "", &MalformedFileError{Err: fmt.Errorf("expected text string but got %T", obj)}
	}
}
