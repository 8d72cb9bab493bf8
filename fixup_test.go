package pdf

import (
	"bytes"
	"testing"
)

func TestDocumentGetReturnsDeadObjectForMissingReference(t *testing.T) {
	data := buildDocument(t, nil)
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	missing := NewReference(9999, 0)
	v, err := doc.Get(missing)
	if err != nil {
		t.Fatalf("Get(missing): %v", err)
	}
	dict, ok := v.(*Dict)
	if !ok {
		t.Fatalf("Get(missing) = %#v, want a *Dict", v)
	}
	if dict.GetInteger("DeadObjectCount") != 1 {
		t.Errorf("DeadObjectCount = %v, want 1", dict.Get("DeadObjectCount"))
	}

	v2, err := doc.Get(NewReference(9998, 0))
	if err != nil {
		t.Fatalf("Get(missing2): %v", err)
	}
	dict2 := v2.(*Dict)
	if dict2 != dict {
		t.Errorf("expected the same shared dead-object dictionary to be reused")
	}
	if dict2.GetInteger("DeadObjectCount") != 2 {
		t.Errorf("DeadObjectCount after second miss = %v, want 2", dict2.Get("DeadObjectCount"))
	}
}

func TestDocumentGetReturnsDeadObjectForFreeEntry(t *testing.T) {
	data := buildDocument(t, nil)
	doc, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Object 0 is always the free-list head of a freshly written file.
	e, ok := doc.table.Lookup(0)
	if !ok || !e.Free {
		t.Fatal("fixture's object 0 is not a free entry")
	}

	v, err := doc.Get(NewReference(0, 0))
	if err != nil {
		t.Fatalf("Get(free): %v", err)
	}
	if _, ok := v.(*Dict); !ok || v.(*Dict).Get("DeadObjectCount") == nil {
		t.Errorf("Get on a free entry should return the dead object, got %#v", v)
	}
}

func TestFixXRefsRebindsStaleGenerationAndDropsUnresolvable(t *testing.T) {
	doc := &Document{
		table:      NewCrossReferenceTable(),
		dead:       newDeadObject(),
		cache:      newCache(objectCacheSize),
		objStreams: make(map[uint32]*ObjectStream),
	}
	doc.table.Add(1, XRefEntry{Pos: 0, Generation: 3})

	root := NewDict()
	root.Set("Stale", NewReference(1, 0)) // generation 0 is stale; table says 3
	root.Set("Gone", NewReference(42, 0)) // no entry at all
	root.Set("Plain", Integer(5))

	fixed := doc.FixXRefs(root, doc.table, false).(*Dict)

	got, ok := fixed.Get("Stale").(Reference)
	if !ok || got.ID.Generation != 3 {
		t.Errorf("Stale = %#v, want generation 3", fixed.Get("Stale"))
	}
	if _, ok := fixed.Get("Gone").(*Dict); !ok {
		t.Errorf("Gone = %#v, want the dead-object placeholder", fixed.Get("Gone"))
	}
	if fixed.Get("Plain") != Integer(5) {
		t.Errorf("Plain was mutated: %#v", fixed.Get("Plain"))
	}
}

func TestFixXRefsForceDocumentUsesDocumentWideTable(t *testing.T) {
	doc := &Document{
		table:      NewCrossReferenceTable(),
		dead:       newDeadObject(),
		cache:      newCache(objectCacheSize),
		objStreams: make(map[uint32]*ObjectStream),
	}
	doc.table.Add(1, XRefEntry{Pos: 0, Generation: 7})

	// An empty, unrelated table passed as the nominal argument must be
	// ignored in favor of doc's own table when forceDocument is true.
	staleTable := NewCrossReferenceTable()

	root := NewDict()
	root.Set("Ref", NewReference(1, 0))
	fixed := doc.FixXRefs(root, staleTable, true).(*Dict)

	got, ok := fixed.Get("Ref").(Reference)
	if !ok || got.ID.Generation != 7 {
		t.Errorf("Ref = %#v, want generation 7 from the document-wide table", fixed.Get("Ref"))
	}
}
