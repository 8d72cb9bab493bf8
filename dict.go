package pdf

import (
	"fmt"
	"io"
	"strconv"
)

// Dict is a PDF dictionary: an ordered mapping from [Name] to [Value].
// Iteration order (via [Dict.Keys]) always matches insertion order — the
// first insertion of a given key wins on conflicting re-inserts during
// parsing, and the writer re-emits keys in that same order, so that
// signatures and golden-file tests that depend on key order survive a
// parse/serialize/parse round trip.
type Dict struct {
	keys   []Name
	values map[Name]Value
}

// NewDict returns an empty dictionary ready for use.
func NewDict() *Dict {
	return &Dict{values: make(map[Name]Value)}
}

func (d *Dict) ensure() {
	if d.values == nil {
		d.values = make(map[Name]Value)
	}
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Contains reports whether key is present (even if its value is nil/null).
func (d *Dict) Contains(key Name) bool {
	if d == nil {
		return false
	}
	_, ok := d.values[key]
	return ok
}

// Get returns the value stored under key, or nil if absent.
func (d *Dict) Get(key Name) Value {
	if d == nil {
		return nil
	}
	return d.values[key]
}

// Set inserts or updates key. The first call for a given key determines
// its position in [Dict.Keys]; later calls update the value in place.
func (d *Dict) Set(key Name, value Value) {
	d.ensure()
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Delete removes key, if present.
func (d *Dict) Delete(key Name) {
	if d == nil {
		return
	}
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the dictionary's keys in insertion order. The returned
// slice must not be mutated.
func (d *Dict) Keys() []Name {
	if d == nil {
		return nil
	}
	return d.keys
}

// Clone returns a shallow copy preserving key order.
func (d *Dict) Clone() *Dict {
	if d == nil {
		return NewDict()
	}
	out := &Dict{
		keys:   append([]Name(nil), d.keys...),
		values: make(map[Name]Value, len(d.values)),
	}
	for k, v := range d.values {
		out.values[k] = v
	}
	return out
}

// PDF implements [Value]. Entries whose value is a Go nil are skipped,
// matching the convention that an absent/null entry is equivalent to the
// key not being present at all.
func (d *Dict) PDF(w io.Writer) error {
	if d == nil {
		_, err := w.Write([]byte("null"))
		return err
	}

	if _, err := w.Write([]byte("<<")); err != nil {
		return err
	}
	for _, key := range d.keys {
		val := d.values[key]
		if val == nil {
			continue
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return err
		}
		if err := key.PDF(w); err != nil {
			return err
		}
		if _, err := w.Write([]byte{' '}); err != nil {
			return err
		}
		if err := writeValue(w, val); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte("\n>>"))
	return err
}

func (d *Dict) String() string {
	tp := ""
	if n, ok := d.Get("Type").(Name); ok {
		tp = string(n) + " "
	}
	n := d.Len()
	entry := "entries"
	if n == 1 {
		entry = "entry"
	}
	return "<" + tp + "Dict, " + strconv.Itoa(n) + " " + entry + ">"
}

// Typed accessors. Integer/name/array/dictionary accessors return a zero
// value (or nil) when the key is absent or of the wrong type, while the
// string/reference/rectangle accessors also return a boolean that is
// false in either case; neither kind distinguishes absence from a type
// mismatch.

// GetInteger returns the Integer stored at key, or 0 if absent or of the
// wrong type.
func (d *Dict) GetInteger(key Name) Integer {
	i, _ := d.Get(key).(Integer)
	return i
}

// GetName returns the Name stored at key, or "" if absent or of the wrong
// type.
func (d *Dict) GetName(key Name) Name {
	n, _ := d.Get(key).(Name)
	return n
}

// GetArray returns the Array stored at key, or nil if absent or of the
// wrong type.
func (d *Dict) GetArray(key Name) Array {
	a, _ := d.Get(key).(Array)
	return a
}

// GetDictionary returns the Dict stored at key, or nil if absent, null, or
// of the wrong type.
func (d *Dict) GetDictionary(key Name) *Dict {
	v := d.Get(key)
	if v == nil {
		return nil
	}
	if sub, ok := v.(*Dict); ok {
		return sub
	}
	return nil
}

// GetString returns the text-string accessor for key, treating either
// [String] or [HexString] as acceptable, returning ok=false otherwise.
func (d *Dict) GetString(key Name) (s string, ok bool) {
	switch v := d.Get(key).(type) {
	case String:
		return v.AsTextString(), true
	case HexString:
		return v.AsTextString(), true
	default:
		return "", false
	}
}

// GetReference returns the Reference stored at key and whether it was one.
func (d *Dict) GetReference(key Name) (Reference, bool) {
	r, ok := d.Get(key).(Reference)
	return r, ok
}

// GetRectangle returns the four-number array stored at key as a Rectangle.
func (d *Dict) GetRectangle(key Name) (*Rectangle, bool) {
	a := d.GetArray(key)
	if len(a) != 4 {
		return nil, false
	}
	var f [4]float64
	for i, v := range a {
		switch x := v.(type) {
		case Integer:
			f[i] = float64(x)
		case UInteger:
			f[i] = float64(x)
		case Real:
			f[i] = float64(x)
		default:
			return nil, false
		}
	}
	return &Rectangle{LLx: f[0], LLy: f[1], URx: f[2], URy: f[3]}, true
}

func toDict(v Value) (*Dict, error) {
	if v == nil {
		return nil, nil
	}
	d, ok := v.(*Dict)
	if !ok {
		return nil, fmt.Errorf("wrong type, expected Dict but got %T", v)
	}
	return d, nil
}

func toName(v Value) (Name, error) {
	n, ok := v.(Name)
	if !ok {
		return "", fmt.Errorf("wrong type, expected Name but got %T", v)
	}
	return n, nil
}
