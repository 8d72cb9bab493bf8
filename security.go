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
	"github.com/xdg-go/stringprep"
)

// SecurityHandler decrypts and encrypts the strings and streams of an
// encrypted document. This package does not implement any particular
// handler's cryptography itself (RC4, AES-CBC, AES-GCM, the various
// standard security handler key-derivation algorithms): it only defines
// the hook a caller-supplied implementation plugs into, and the password
// normalisation both the V2/V4 (PDFDocEncoding-padded) and V5/V6
// (SASLprep) revisions of the standard security handler require before
// deriving a key from a user-supplied password.
type SecurityHandler interface {
	// Decrypt returns the decrypted bytes of data belonging to ref
	// (a string or a stream's raw bytes, depending on forStream).
	Decrypt(ref Reference, forStream bool, data []byte) ([]byte, error)

	// Encrypt is Decrypt's inverse, used when writing an encrypted
	// document.
	Encrypt(ref Reference, forStream bool, data []byte) ([]byte, error)

	// Authenticate checks password against the /Encrypt dictionary this
	// handler was built from, returning which of the user/owner passwords
	// (if either) it matched.
	Authenticate(password string) (PasswordStatus, error)
}

// NormalizePasswordUTF8 prepares a password for the V5/V6 (AES-256) key
// derivation algorithms (ISO 32000-2:2020 §7.6.4.3.3), which require
// SASLprep normalisation (RFC 4013) followed by truncation to 127 bytes
// of the resulting UTF-8.
func NormalizePasswordUTF8(password string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(password)
	if err != nil {
		return nil, &PasswordError{Status: PasswordInvalid}
	}
	buf := []byte(prepped)
	if len(buf) > 127 {
		buf = buf[:127]
	}
	return buf, nil
}

// passwordPad is the fixed 32-byte padding string the V2/V4 standard
// security handler algorithms append to a PDFDocEncoding-encoded password
// shorter than 32 bytes (ISO 32000-2:2020 Annex C, step a).
var passwordPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// NormalizePasswordLegacy pads or truncates password to the 32 bytes the
// V2/V4 standard security handler key-derivation algorithm requires: the
// password is PDFDocEncoded, then padded with the bytes of
// [passwordPad] (or truncated) to exactly 32 bytes.
func NormalizePasswordLegacy(password string) ([]byte, error) {
	buf, ok := pdfDocEncode(password)
	if !ok {
		return nil, &PasswordError{Status: PasswordInvalid}
	}
	if len(buf) > 32 {
		return buf[:32], nil
	}
	padded := make([]byte, 32)
	n := copy(padded, buf)
	copy(padded[n:], passwordPad)
	return padded, nil
}

// EncryptDocument is the single point at which a [Writer] or [Document]
// invokes a [SecurityHandler] to protect a string or stream's bytes before
// they are serialised. [Writer.Put] calls it once a handler has been
// installed via [Writer.SetSecurityHandler]; this package does not
// implement the standard security handler's own cryptography, so the
// handler itself is always supplied by the caller.
func EncryptDocument(sec SecurityHandler, ref Reference, forStream bool, data []byte) ([]byte, error) {
	if sec == nil {
		return data, nil
	}
	return sec.Encrypt(ref, forStream, data)
}

// DecryptDocument is [EncryptDocument]'s read-side counterpart.
func DecryptDocument(sec SecurityHandler, ref Reference, forStream bool, data []byte) ([]byte, error) {
	if sec == nil {
		return data, nil
	}
	return sec.Decrypt(ref, forStream, data)
}
