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
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// MetaInfo bundles the pieces of a PDF document that sit outside the raw
// object graph: the file's declared version, its /ID pair, and (once
// resolved) its catalog and information dictionaries.
type MetaInfo struct {
	// Version is the PDF version used in this file.
	Version Version

	// ID is either a pair of byte strings (the permanent ID of the file
	// and the ID of the current version), or nil if the file does not
	// specify one.
	ID [][]byte

	// Catalog is the document catalog for this file.
	Catalog *Catalog

	// Info is the document information dictionary, or nil if the file
	// does not contain one.
	Info *Info
}

// Version represents a version of the PDF standard.
type Version int

// PDF versions supported by this package.
const (
	_ Version = iota
	V1_0
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
)

// ParseVersion parses a PDF version string such as "1.7".
func ParseVersion(verString string) (Version, error) {
	switch verString {
	case "1.0":
		return V1_0, nil
	case "1.1":
		return V1_1, nil
	case "1.2":
		return V1_2, nil
	case "1.3":
		return V1_3, nil
	case "1.4":
		return V1_4, nil
	case "1.5":
		return V1_5, nil
	case "1.6":
		return V1_6, nil
	case "1.7":
		return V1_7, nil
	case "2.0":
		return V2_0, nil
	}
	return 0, errVersion
}

// ToString returns the string representation of ver, e.g. "1.7". An error
// is returned if ver is not one of the supported versions.
func (ver Version) ToString() (string, error) {
	if ver >= V1_0 && ver <= V1_7 {
		return "1." + string([]byte{byte(ver - V1_0 + '0')}), nil
	}
	if ver == V2_0 {
		return "2.0", nil
	}
	return "", errVersion
}

func (ver Version) String() string {
	s, err := ver.ToString()
	if err != nil {
		s = "Version(" + strconv.Itoa(int(ver)) + ")"
	}
	return s
}

// Catalog represents a PDF document catalog (§7.7.2 of ISO 32000-2:2020),
// trimmed to the entries this package itself interprets. Only the fields
// below are kept: [DecodeDict] ignores every other catalog entry a
// document might carry (outlines, AcroForm, ...), and [AsDict] does not
// write them back.
type Catalog struct {
	_ struct{} `pdf:"Type=Catalog"`

	// Pages references the root of the page tree. Required by the PDF
	// spec, but this package does not itself walk the page tree, so it is
	// treated as an opaque reference.
	Pages Reference

	// Version, if present, overrides the header version for files that
	// need a newer feature than their header version declares.
	Version Name `pdf:"optional"`

	// MarkInfo, if present, records tagged/structured-document metadata.
	MarkInfo Value `pdf:"optional"`

	// Metadata references an XMP metadata stream attached to the catalog.
	Metadata Reference `pdf:"optional"`

	// Lang is the default natural language for the document (a BCP 47
	// tag, e.g. "en-US"), used by screen readers when a page or its
	// content does not specify its own language.
	Lang language.Tag `pdf:"optional"`
}

// Info represents a PDF document information dictionary (§14.3.3 of
// ISO 32000-2:2020). All fields are optional; the zero value is an empty
// Info dictionary.
type Info struct {
	Title    string `pdf:"textstring,optional"`
	Author   string `pdf:"textstring,optional"`
	Subject  string `pdf:"textstring,optional"`
	Keywords string `pdf:"textstring,optional"`

	// Creator names the application that created the original document,
	// if it was converted to PDF from another format.
	Creator string `pdf:"textstring,optional"`

	// Producer names the application that produced this PDF file.
	Producer string `pdf:"textstring,optional"`

	// CreationDate is when the document was created.
	CreationDate time.Time `pdf:"date,optional"`

	// ModDate is when the document was most recently modified.
	ModDate time.Time `pdf:"date,optional"`

	// Trapped records whether the document has been trapped for print
	// production: "True", "False", or "" (the PDF default, "Unknown").
	Trapped Name `pdf:"optional"`

	// Custom holds non-standard Info dictionary entries.
	Custom map[string]string `pdf:"extra"`
}
