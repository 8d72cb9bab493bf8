package pdf

import "sync"

// deadObject is the shared placeholder a [Document] substitutes for any
// Reference that fails to resolve, so that a reference to a missing or
// deleted object does not sever the rest of the graph. Every document
// keeps exactly one: its /DeadObjectCount entry counts how many times it
// has stood in so far, which is the only signal a caller has that a
// given dictionary is synthetic rather than a real, merely-empty one.
type deadObject struct {
	mu    sync.Mutex
	dict  *Dict
	count int
}

func newDeadObject() *deadObject {
	d := &deadObject{dict: NewDict()}
	d.dict.Set("DeadObjectCount", Integer(0))
	return d
}

// get returns the document's shared dead-object dictionary, incrementing
// its /DeadObjectCount.
func (d *deadObject) get() *Dict {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.dict.Set("DeadObjectCount", Integer(d.count))
	return d.dict
}

// DeadObject returns the document's shared "dead object" dictionary: the
// stand-in returned in place of a Reference that cannot be resolved, so
// that serializing an otherwise-valid branch of the graph still succeeds.
func (d *Document) DeadObject() *Dict {
	return d.dead.get()
}

// FixXRefs implements the fix_xrefs(force_document) operation: it walks
// every dictionary and array reachable from root, rebinding each embedded
// Reference to the object number's currently live Reference (correcting
// a stale generation left over from an earlier save) using either table
// (forceDocument == false) or d's own document-wide table
// (forceDocument == true). A Reference whose object number has no entry,
// or whose entry is free, in the table consulted is replaced by
// [Document.DeadObject]. Dict and Stream values are mutated and returned
// in place; Array values are mutated in place and returned unchanged.
func (d *Document) FixXRefs(root Value, table *CrossReferenceTable, forceDocument bool) Value {
	if forceDocument {
		table = d.table
	}
	return d.fixupValue(root, table, make(map[*Dict]bool))
}

func (d *Document) fixupValue(v Value, table *CrossReferenceTable, seen map[*Dict]bool) Value {
	switch x := v.(type) {
	case Reference:
		entry, ok := table.Lookup(x.ID.Number)
		if !ok || entry.Free {
			return d.DeadObject()
		}
		if entry.Generation == x.ID.Generation {
			return x
		}
		return NewReference(x.ID.Number, entry.Generation)

	case *Dict:
		if x == nil || seen[x] {
			return x
		}
		seen[x] = true
		for _, key := range x.Keys() {
			x.Set(key, d.fixupValue(x.Get(key), table, seen))
		}
		return x

	case Array:
		for i, elem := range x {
			x[i] = d.fixupValue(elem, table, seen)
		}
		return x

	case *Stream:
		if x == nil {
			return x
		}
		d.fixupValue(x.Dict, table, seen)
		return x

	default:
		return v
	}
}
