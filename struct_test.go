package pdf

import (
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestAsDictCatalogOmitsOptionalZeroFields(t *testing.T) {
	cat := &Catalog{Pages: NewReference(3, 0)}
	dict := AsDict(cat)

	if dict.Get("Type") != Name("Catalog") {
		t.Errorf("Type = %#v", dict.Get("Type"))
	}
	if dict.Get("Pages") != NewReference(3, 0) {
		t.Errorf("Pages = %#v", dict.Get("Pages"))
	}
	for _, key := range []Name{"Version", "MarkInfo", "Metadata", "Lang"} {
		if dict.Contains(key) {
			t.Errorf("unexpected key %q in %v", key, dict)
		}
	}
}

func TestCatalogLangRoundTrip(t *testing.T) {
	cat := &Catalog{Pages: NewReference(1, 0), Lang: language.AmericanEnglish}
	dict := AsDict(cat)

	s, ok := dict.GetString("Lang")
	if !ok || s != "en-US" {
		t.Fatalf("Lang in dict = %q, %v", s, ok)
	}

	var got Catalog
	if err := DecodeDict(nil, &got, dict); err != nil {
		t.Fatalf("DecodeDict: %v", err)
	}
	if got.Lang != language.AmericanEnglish {
		t.Errorf("Lang = %v, want %v", got.Lang, language.AmericanEnglish)
	}
}

func TestInfoTextStringAndDateRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	info := &Info{
		Title:        "A Document",
		CreationDate: created,
		Custom:       map[string]string{"CustomKey": "custom value"},
	}
	dict := AsDict(info)

	var got Info
	if err := DecodeDict(nil, &got, dict); err != nil {
		t.Fatalf("DecodeDict: %v", err)
	}
	if got.Title != "A Document" {
		t.Errorf("Title = %q", got.Title)
	}
	if !got.CreationDate.Equal(created) {
		t.Errorf("CreationDate = %v, want %v", got.CreationDate, created)
	}
	if got.Custom["CustomKey"] != "custom value" {
		t.Errorf("Custom[CustomKey] = %q", got.Custom["CustomKey"])
	}
}

func TestDecodeDictMissingRequiredField(t *testing.T) {
	dict := NewDict()
	dict.Set("Type", Name("Catalog"))

	var got Catalog
	err := DecodeDict(nil, &got, dict)
	if err == nil {
		t.Fatal("expected an error decoding a Catalog with no /Pages")
	}
}
