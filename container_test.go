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

import "testing"

func TestGetDict_NilObject(t *testing.T) {
	g := new(mockGetter)
	dict, err := GetDict(g, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dict != nil {
		t.Fatalf("expected nil, got %v", dict)
	}
}

func TestResolve_ChainTooLong(t *testing.T) {
	g := &chainGetter{}
	_, err := Resolve(g, NewReference(1, 0))
	if err == nil {
		t.Fatal("expected an error for an unbounded reference chain")
	}
}

// mockGetter is a [Getter] whose object graph is always empty.
type mockGetter struct{}

func (m *mockGetter) Get(ref Reference) (Value, error) { return nil, nil }
func (m *mockGetter) GetMeta() *MetaInfo               { return &MetaInfo{} }

// chainGetter resolves every reference to the next-numbered reference,
// simulating an unbroken chain (or cycle) of indirection.
type chainGetter struct{}

func (c *chainGetter) Get(ref Reference) (Value, error) {
	return NewReference(ref.ID.Number+1, 0), nil
}
func (c *chainGetter) GetMeta() *MetaInfo { return &MetaInfo{} }
