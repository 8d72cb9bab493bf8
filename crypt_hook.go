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

import "io"

// NeedsPassword reports whether d's trailer declares an /Encrypt entry.
// When true, strings and streams read through [Document.Get] are still
// the raw on-disk bytes until [Document.Authenticate] installs a
// [SecurityHandler], since this package implements none of the standard
// security handler's cryptography itself.
func (d *Document) NeedsPassword() bool {
	return d.trailer != nil && d.trailer.Dict.Get("Encrypt") != nil
}

// Authenticate validates password against sec, which the caller must have
// built from d's /Encrypt dictionary, and installs sec so that subsequent
// calls to [Document.Get] decrypt strings and streams through it. This is
// the password validation round required before any object beyond the
// xref proper is trusted to be well-formed plaintext.
func (d *Document) Authenticate(sec SecurityHandler, password string) (PasswordStatus, error) {
	status, err := sec.Authenticate(password)
	if err != nil {
		return status, err
	}
	if status == PasswordInvalid {
		return status, &PasswordError{Status: PasswordInvalid}
	}
	if encRef, ok := d.trailer.Dict.Get("Encrypt").(Reference); ok {
		d.encryptRef = encRef
	}
	d.sec = sec
	return status, nil
}

// decryptValue runs [DecryptDocument] over every string and stream byte
// string reachable from v, which must be the direct (not object-stream
// compressed) indirect object named by ref — ISO 32000-2:2020 §7.6.2
// exempts object-stream members from per-object encryption, since the
// container stream is itself encrypted as a whole.
func (d *Document) decryptValue(ref Reference, v Value) (Value, error) {
	switch x := v.(type) {
	case String:
		dec, err := DecryptDocument(d.sec, ref, false, x.Bytes)
		if err != nil {
			return nil, err
		}
		x.Bytes = dec
		return x, nil

	case HexString:
		dec, err := DecryptDocument(d.sec, ref, false, x.Bytes)
		if err != nil {
			return nil, err
		}
		x.Bytes = dec
		return x, nil

	case *Dict:
		if x == nil {
			return x, nil
		}
		for _, key := range x.Keys() {
			nv, err := d.decryptValue(ref, x.Get(key))
			if err != nil {
				return nil, err
			}
			x.Set(key, nv)
		}
		return x, nil

	case Array:
		for i, elem := range x {
			nv, err := d.decryptValue(ref, elem)
			if err != nil {
				return nil, err
			}
			x[i] = nv
		}
		return x, nil

	case *Stream:
		if x == nil {
			return x, nil
		}
		data, err := io.ReadAll(x.R)
		if err != nil {
			return nil, err
		}
		dec, err := DecryptDocument(d.sec, ref, true, data)
		if err != nil {
			return nil, err
		}
		x.R = byteSliceReader{dec}
		if _, err := d.decryptValue(ref, x.Dict); err != nil {
			return nil, err
		}
		return x, nil

	default:
		return v, nil
	}
}

// SetSecurityHandler installs sec as w's encryption hook: every object
// Put from now on has its strings and (already-filtered) stream bytes run
// through [EncryptDocument] before being written, except encryptRef
// itself (the /Encrypt dictionary's own indirect object, which must never
// be encrypted). Object streams written via [Writer.WriteCompressed] are
// exempt: their body is produced by an incremental filter pipeline that
// would need to be fully buffered to encrypt correctly, which defeats the
// point of that streaming API, so this hook only covers [Writer.Put].
func (w *Writer) SetSecurityHandler(sec SecurityHandler, encryptRef Reference) {
	w.sec = sec
	w.encryptRef = encryptRef
}

// encryptValue is [Document.decryptValue]'s write-side counterpart.
func encryptValue(sec SecurityHandler, ref Reference, v Value) (Value, error) {
	switch x := v.(type) {
	case String:
		enc, err := EncryptDocument(sec, ref, false, x.Bytes)
		if err != nil {
			return nil, err
		}
		x.Bytes = enc
		return x, nil

	case HexString:
		enc, err := EncryptDocument(sec, ref, false, x.Bytes)
		if err != nil {
			return nil, err
		}
		x.Bytes = enc
		return x, nil

	case *Dict:
		if x == nil {
			return x, nil
		}
		out := x.Clone()
		for _, key := range out.Keys() {
			nv, err := encryptValue(sec, ref, out.Get(key))
			if err != nil {
				return nil, err
			}
			out.Set(key, nv)
		}
		return out, nil

	case Array:
		out := make(Array, len(x))
		for i, elem := range x {
			nv, err := encryptValue(sec, ref, elem)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil

	case *Stream:
		if x == nil {
			return x, nil
		}
		data, err := io.ReadAll(x.R)
		if err != nil {
			return nil, err
		}
		enc, err := EncryptDocument(sec, ref, true, data)
		if err != nil {
			return nil, err
		}
		dict, err := encryptValue(sec, ref, x.Dict)
		if err != nil {
			return nil, err
		}
		return &Stream{Dict: dict.(*Dict), R: byteSliceReader{enc}}, nil

	default:
		return v, nil
	}
}
