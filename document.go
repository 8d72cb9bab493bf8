package pdf

import (
	"fmt"
	"io"
)

const objectCacheSize = 256

// Document is an in-memory view of one PDF file: its flattened
// cross-reference table, trailer chain, and the document catalog/info it
// points at. It implements both [Getter] and [Putter], so the same type
// serves reading an existing file and building incremental updates to it.
type Document struct {
	ra   io.ReaderAt
	size int64

	table   *CrossReferenceTable
	trailer *Trailer
	meta    *MetaInfo
	dead    *deadObject

	sec        SecurityHandler // installed by Authenticate, nil until then
	encryptRef Reference       // the /Encrypt dictionary's own object, never decrypted

	cache      *lruCache
	objStreams map[uint32]*ObjectStream // decoded object streams, keyed by the stream's own object number

	*Writer // non-nil once the document is open for appending an incremental update
}

// Open reads the cross-reference chain and trailer of the PDF file backed
// by ra (size bytes long), and resolves its catalog and information
// dictionaries. It does not read the rest of the object graph; objects
// are decoded lazily through [Document.Get].
func Open(ra io.ReaderAt, size int64) (*Document, error) {
	d := &Document{
		ra:         ra,
		size:       size,
		cache:      newCache(objectCacheSize),
		objStreams: make(map[uint32]*ObjectStream),
		dead:       newDeadObject(),
	}

	lx := NewLexer(io.NewSectionReader(ra, 0, size), 0)
	headerVersion, err := ReadHeaderVersion(lx)
	if err != nil {
		return nil, err
	}

	table, head, err := ReadXRefChain(ra, size)
	if err != nil {
		return nil, err
	}
	trailer, table, err := FlattenTrailerChain(ra, size, table, head)
	if err != nil {
		return nil, err
	}
	d.table = table
	d.trailer = trailer

	meta := &MetaInfo{Version: headerVersion}
	if trailer != nil {
		if idArr, ok := trailer.Dict.Get("ID").(Array); ok {
			for _, v := range idArr {
				switch s := v.(type) {
				case String:
					meta.ID = append(meta.ID, s.Bytes)
				case HexString:
					meta.ID = append(meta.ID, s.Bytes)
				}
			}
		}
	}
	d.meta = meta

	// An /Encrypt entry defers resolving the catalog and info
	// dictionaries, since both can carry encrypted strings that would
	// otherwise be decoded as garbage before a password is ever checked.
	// The caller must call [Document.Authenticate] and then
	// [Document.ResolveMeta] to populate them.
	if d.NeedsPassword() {
		return d, nil
	}

	if err := d.ResolveMeta(); err != nil {
		return nil, err
	}

	return d, nil
}

// ResolveMeta decodes the document's catalog and information dictionaries
// into [Document.GetMeta]'s result, rebinding any stale References within
// them via [Document.FixXRefs]. [Open] calls this itself unless
// [Document.NeedsPassword] is true, in which case the caller must call it
// again after [Document.Authenticate] succeeds.
func (d *Document) ResolveMeta() error {
	trailer := d.trailer
	meta := d.meta
	if trailer != nil {
		if rootRef, ok := trailer.Dict.Get("Root").(Reference); ok {
			catDict, err := GetDict(d, rootRef)
			if err != nil {
				return err
			}
			if catDict != nil {
				d.FixXRefs(catDict, trailer.Table, false)
				cat := &Catalog{}
				if err := DecodeDict(d, cat, catDict); err != nil {
					return err
				}
				meta.Catalog = cat
				if verName := catDict.GetName("Version"); verName != "" {
					if v, err := ParseVersion(string(verName)); err == nil && v > meta.Version {
						meta.Version = v
					}
				}
			}
		}
		if infoRef, ok := trailer.Dict.Get("Info").(Reference); ok {
			infoDict, err := GetDict(d, infoRef)
			if err != nil {
				return err
			}
			if infoDict != nil {
				d.FixXRefs(infoDict, trailer.Table, false)
				info := &Info{}
				if err := DecodeDict(d, info, infoDict); err != nil {
					return err
				}
				meta.Info = info
			}
		}
	}

	return nil
}

// GetMeta implements [Getter] and [Putter].
func (d *Document) GetMeta() *MetaInfo { return d.meta }

// Get implements [Getter]: it resolves ref to its current value, reading
// it from disk (or from a compressing object stream) on first access and
// caching the result.
func (d *Document) Get(ref Reference) (Value, error) {
	if v, ok := d.cache.Get(ref); ok {
		return v, nil
	}

	entry, ok := d.table.Lookup(ref.ID.Number)
	if !ok || entry.Free {
		return d.DeadObject(), nil
	}

	var val Value
	var err error
	if entry.InStream != (Reference{}) {
		val, err = d.getCompressed(entry)
	} else {
		val, err = d.readDirect(entry.Pos)
		if err == nil && d.sec != nil && ref != d.encryptRef {
			val, err = d.decryptValue(ref, val)
		}
	}
	if err != nil {
		return nil, err
	}

	d.cache.Put(ref, val)
	return val, nil
}

func (d *Document) readDirect(pos int64) (Value, error) {
	if pos < 0 || pos >= d.size {
		return nil, &MalformedFileError{Err: fmt.Errorf("object offset %d out of range", pos)}
	}
	lx := NewLexer(io.NewSectionReader(d.ra, pos, d.size-pos), pos)
	p := NewParser(lx, d.ra)
	obj, err := p.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	return obj.Value, nil
}

func (d *Document) getCompressed(entry XRefEntry) (Value, error) {
	streamNum := entry.InStream.ID.Number
	os, ok := d.objStreams[streamNum]
	if !ok {
		streamVal, err := d.Get(entry.InStream)
		if err != nil {
			return nil, err
		}
		stream, ok := streamVal.(*Stream)
		if !ok {
			return nil, &MalformedFileError{Err: fmt.Errorf("object %d is not an object stream", streamNum)}
		}
		os, err = ReadObjectStream(d, stream)
		if err != nil {
			return nil, err
		}
		d.objStreams[streamNum] = os
	}
	if entry.Index < 0 || entry.Index >= len(os.Values) {
		return nil, &MalformedFileError{Err: fmt.Errorf("object stream index %d out of range", entry.Index)}
	}
	return os.Values[entry.Index], nil
}

// Catalog returns the document's resolved catalog, or nil if the file has
// none.
func (d *Document) Catalog() *Catalog { return d.meta.Catalog }

// Info returns the document's resolved information dictionary, or nil.
func (d *Document) Info() *Info { return d.meta.Info }

// StartAppend opens an incremental update to be appended after the
// document's current content, returning a [Writer] whose Close will chain
// its trailer's /Prev back to the document's own. prevXRefPos must be the
// byte offset of the most recent cross-reference section already on
// disk, as returned alongside the trailer by [ReadXRefChain]; [Document]
// does not track this itself since [Open] discards it once the
// [CrossReferenceTable] has been built.
func (d *Document) StartAppend(w io.Writer, prevXRefPos int64) *Writer {
	writer := PrepareForSave(w, d.meta, d.table, d.trailer, prevXRefPos, d.size)
	if d.sec != nil {
		writer.SetSecurityHandler(d.sec, d.encryptRef)
	}
	d.Writer = writer
	return writer
}

// Save writes a complete (non-incremental) copy of the document's current
// object graph to w: every object reachable from catalog and info is
// copied over fresh object numbers starting at 1 (objects reachable from
// neither are not written), and a new catalog/info/trailer is emitted. This
// is the right choice for producing a standalone, renumbered file (e.g.
// after deleting enough objects that compacting the numbering is worth
// the rewrite); [Document.StartAppend] is the right choice for a small
// edit to a large file.
func Save(w io.Writer, src Getter, catalog *Catalog, info *Info) error {
	meta := src.GetMeta()
	writer, err := NewWriter(w, meta)
	if err != nil {
		return err
	}

	copier := NewCopier(writer, src)

	var catRef, infoRef Reference
	if catalog != nil {
		catDict := AsDict(catalog)
		copied, err := copier.CopyDict(catDict)
		if err != nil {
			return err
		}
		catRef = writer.Alloc()
		if err := writer.Put(catRef, copied); err != nil {
			return err
		}
	}
	if info != nil {
		infoDict := AsDict(info)
		copied, err := copier.CopyDict(infoDict)
		if err != nil {
			return err
		}
		infoRef = writer.Alloc()
		if err := writer.Put(infoRef, copied); err != nil {
			return err
		}
	}

	return writer.CloseDocument(catRef, infoRef)
}
