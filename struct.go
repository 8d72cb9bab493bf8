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

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// AsDict encodes the fields of a Go struct as a PDF dictionary. It is the
// converse of [DecodeDict]. s may be a struct or a pointer to one; for a
// nil s, a nil pointer, or any other kind of value AsDict returns nil.
//
// Struct tags of the form `pdf:"..."` control the encoding:
//
//   - "optional": the field is omitted from the dictionary when it holds
//     the Go zero value.
//   - "textstring": the field is a Go string, encoded as a PDF text
//     string via [TextString].
//   - "date": the field is a time.Time, encoded as a PDF date string.
//   - "extra": the field is a map[string]string, each entry of which
//     becomes a text-string valued dictionary entry.
//   - "Key=Value": a fixed Name=Name entry, used for e.g. `/Type /Catalog`.
func AsDict(s interface{}) *Dict {
	if s == nil {
		return nil
	}
	v := reflect.Indirect(reflect.ValueOf(s))
	if v.Kind() != reflect.Struct {
		return nil
	}
	vt := v.Type()

	res := NewDict()
fieldLoop:
	for i := 0; i < vt.NumField(); i++ {
		fVal := v.Field(i)
		fInfo := vt.Field(i)

		optional, textstring, date := false, false, false
		for _, t := range strings.Split(fInfo.Tag.Get("pdf"), ",") {
			switch t {
			case "":
			case "optional":
				optional = true
			case "textstring":
				textstring = true
			case "date":
				date = true
			case "extra":
				for key, val := range fVal.Interface().(map[string]string) {
					res.Set(Name(key), TextString(val))
				}
				continue fieldLoop
			default:
				if kv := strings.SplitN(t, "=", 2); len(kv) == 2 {
					res.Set(Name(kv[0]), Name(kv[1]))
				}
			}
		}
		if !fVal.CanInterface() {
			continue
		}

		key := Name(fInfo.Name)
		switch {
		case optional && fVal.IsZero():
			continue
		case textstring:
			res.Set(key, TextString(fVal.String()))
		case date:
			res.Set(key, encodeDate(fVal.Interface().(time.Time)))
		case fInfo.Type == languageType:
			tag := fVal.Interface().(language.Tag)
			if !tag.IsRoot() {
				res.Set(key, TextString(tag.String()))
			}
		case fInfo.Type == versionType:
			version := fVal.Interface().(Version)
			if s, err := version.ToString(); err == nil {
				res.Set(key, Name(s))
			}
		case fVal.Kind() == reflect.Bool:
			res.Set(key, Boolean(fVal.Bool()))
		case fInfo.Type == referenceType:
			ref := fVal.Interface().(Reference)
			if ref != (Reference{}) {
				res.Set(key, ref)
			}
		default:
			val := fVal.Interface()
			obj, ok := val.(Value)
			if !ok {
				panic(fmt.Sprintf("pdf: unsupported field type %T", val))
			}
			res.Set(key, obj)
		}
	}

	return res
}

// DecodeDict populates dst, a pointer to a struct, from src. See [AsDict]
// for the supported struct tags. Fields are zeroed before being filled in,
// so a partially malformed dictionary still yields best-effort results; the
// first error encountered, if any, is returned wrapped in
// [MalformedFileError].
func DecodeDict(r Getter, dst interface{}, src *Dict) error {
	v := reflect.Indirect(reflect.ValueOf(dst))
	vt := v.Type()

	var firstErr error
	seen := map[string]bool{}
	extra := -1

fieldLoop:
	for i := 0; i < vt.NumField(); i++ {
		fVal := v.Field(i)
		if !fVal.CanSet() {
			continue
		}
		fInfo := vt.Field(i)
		seen[fInfo.Name] = true
		fVal.Set(reflect.Zero(fInfo.Type))

		optional, textstring, date := false, false, false
		for _, t := range strings.Split(fInfo.Tag.Get("pdf"), ",") {
			switch t {
			case "optional":
				optional = true
			case "textstring":
				textstring = true
			case "date":
				date = true
			case "extra":
				extra = i
				continue fieldLoop
			}
		}

		var dictVal Value
		if src != nil {
			dictVal = src.Get(Name(fInfo.Name))
		}
		if fInfo.Type != valueType && fInfo.Type != referenceType {
			obj, err := Resolve(r, dictVal)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			dictVal = obj
		}
		if dictVal == nil {
			if !optional && firstErr == nil {
				firstErr = fmt.Errorf("required Dict entry /%s not found", fInfo.Name)
			}
			continue
		}

		switch {
		case textstring:
			s, ok := asTextString(dictVal)
			if !ok {
				if firstErr == nil {
					firstErr = fmt.Errorf("/%s: expected text string but got %T", fInfo.Name, dictVal)
				}
				continue
			}
			fVal.SetString(s)
		case date:
			t, err := decodeDate(dictVal)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("/%s: %w", fInfo.Name, err)
				}
				continue
			}
			fVal.Set(reflect.ValueOf(t))
		case fInfo.Type == languageType:
			s, _ := asTextString(dictVal)
			tag, err := language.Parse(s)
			if err == nil {
				fVal.Set(reflect.ValueOf(tag))
			} else if s != "" && firstErr == nil {
				firstErr = fmt.Errorf("/%s: %s: %w", fInfo.Name, s, err)
			}
		case fInfo.Type == versionType:
			var vString string
			switch x := dictVal.(type) {
			case Name:
				vString = string(x)
			case String:
				vString = x.AsTextString()
			default:
				if firstErr == nil {
					firstErr = fmt.Errorf("/%s: expected Name but got %T", fInfo.Name, dictVal)
				}
				continue
			}
			version, err := ParseVersion(vString)
			if err == nil {
				fVal.Set(reflect.ValueOf(version))
			} else if firstErr == nil {
				firstErr = fmt.Errorf("/%s: %s: %w", fInfo.Name, vString, err)
			}
		case fInfo.Type.Kind() == reflect.Bool:
			fVal.SetBool(dictVal == Boolean(true))
		case reflect.TypeOf(dictVal).AssignableTo(fInfo.Type):
			fVal.Set(reflect.ValueOf(dictVal))
		default:
			if firstErr == nil {
				firstErr = fmt.Errorf("/%s: expected %s but got %T", fInfo.Name, fInfo.Type, dictVal)
			}
		}
	}

	if extra >= 0 && src != nil {
		extraMap := make(map[string]string)
		for _, key := range src.Keys() {
			if seen[string(key)] {
				continue
			}
			if s, ok := asTextString(src.Get(key)); ok && s != "" {
				extraMap[string(key)] = s
			}
		}
		if len(extraMap) > 0 {
			v.Field(extra).Set(reflect.ValueOf(extraMap))
		}
	}

	if firstErr != nil {
		return &MalformedFileError{Err: firstErr}
	}
	return nil
}

func asTextString(v Value) (string, bool) {
	switch x := v.(type) {
	case String:
		return x.AsTextString(), true
	case HexString:
		return x.AsTextString(), true
	case Name:
		return string(x), true
	default:
		return "", false
	}
}

var (
	valueType     = reflect.TypeFor[Value]()
	referenceType = reflect.TypeFor[Reference]()
	languageType  = reflect.TypeFor[language.Tag]()
	versionType   = reflect.TypeFor[Version]()
)
