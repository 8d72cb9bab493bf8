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

package pdf

// A Copier copies objects from one document to another, renumbering
// indirect references as it goes and copying each source object at most
// once. [Save] uses it to write a renumbered, standalone copy of a
// document.
type Copier struct {
	trans map[Reference]Reference
	r     Getter
	w     Putter
}

// NewCopier creates a Copier that reads from r and writes (newly
// allocated) objects into w.
func NewCopier(w Putter, r Getter) *Copier {
	return &Copier{
		trans: make(map[Reference]Reference),
		r:     r,
		w:     w,
	}
}

// Copy copies obj, recursively translating any references it contains.
// The returned value has the same concrete type as obj.
func (c *Copier) Copy(obj Value) (Value, error) {
	switch x := obj.(type) {
	case *Dict:
		return c.CopyDict(x)
	case Array:
		return c.CopyArray(x)
	case *Stream:
		dict, err := c.CopyDict(x.Dict)
		if err != nil {
			return nil, err
		}
		return &Stream{Dict: dict, R: x.R}, nil
	case Reference:
		return c.CopyReference(x)
	default:
		return obj, nil
	}
}

// CopyDict copies a dictionary, preserving key order.
func (c *Copier) CopyDict(obj *Dict) (*Dict, error) {
	if obj == nil {
		return nil, nil
	}
	res := NewDict()
	for _, key := range obj.Keys() {
		repl, err := c.Copy(obj.Get(key))
		if err != nil {
			return nil, err
		}
		res.Set(key, repl)
	}
	return res, nil
}

// CopyArray copies an array element-wise.
func (c *Copier) CopyArray(obj Array) (Array, error) {
	var res Array
	for _, val := range obj {
		var repl Value
		if val != nil {
			var err error
			repl, err = c.Copy(val)
			if err != nil {
				return nil, err
			}
		}
		res = append(res, repl)
	}
	return res, nil
}

// CopyReference copies the object a reference points to into the target
// document and returns a reference to the copy. Chains of indirect
// references are shortened: the returned reference always points
// directly at a non-reference object.
func (c *Copier) CopyReference(obj Reference) (Reference, error) {
	if newRef, ok := c.trans[obj]; ok {
		return newRef, nil
	}
	newRef := c.w.Alloc()
	c.trans[obj] = newRef

	val, err := Resolve(c.r, obj)
	if err != nil {
		return Reference{}, err
	}
	trans, err := c.Copy(val)
	if err != nil {
		return Reference{}, err
	}
	if err := c.w.Put(newRef, trans); err != nil {
		return Reference{}, err
	}

	return newRef, nil
}

// Redirect records that obj in the source document has already been
// copied to newRef in the target document, without actually copying
// anything. This is used to bind a trailer's /Root and /Info to objects
// the caller has already written by hand.
func (c *Copier) Redirect(origRef, newRef Reference) {
	c.trans[origRef] = newRef
}
