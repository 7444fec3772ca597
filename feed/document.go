package feed

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// errInconsistent signals a violated reconciliation invariant during a
// merge pass. It never escapes Merge; recovery is a full clear-and-rebuild
// of both item maps.
var errInconsistent = errors.New("feed: reconciliation inconsistency")

// Document is the stored state of one syndication feed. Items are indexed
// twice: by cross-fetch identity and by ordinal (position in the most
// recently fetched source list). Outside of an in-progress merge every
// ordinal entry is reachable from its identity entry and vice versa; an
// identity entry may temporarily lose its ordinal slot when a newer item
// takes its position.
//
// A Document is created by Parse and mutated in place by Merge. It is not
// safe for concurrent use; callers serialize access through the owning
// cache cell's lock.
type Document struct {
	Title       string
	Link        string
	GeneratedAt time.Time
	Description string

	byIdentity map[Identity]*Item
	byOrdinal  map[int]*Item
}

// NewDocument returns an empty document with the given channel fields.
func NewDocument(title, link, description string, generatedAt time.Time) *Document {
	return &Document{
		Title:       title,
		Link:        link,
		Description: description,
		GeneratedAt: generatedAt,
		byIdentity:  make(map[Identity]*Item),
		byOrdinal:   make(map[int]*Item),
	}
}

// Len returns the number of stored identities.
func (d *Document) Len() int { return len(d.byIdentity) }

// ByIdentity returns the stored item with the given identity.
func (d *Document) ByIdentity(id Identity) (*Item, bool) {
	it, ok := d.byIdentity[id]
	return it, ok
}

// ByOrdinal returns the stored item at the given ordinal.
func (d *Document) ByOrdinal(ordinal int) (*Item, bool) {
	it, ok := d.byOrdinal[ordinal]
	return it, ok
}

func (d *Document) insert(item *Item) {
	d.byIdentity[item.Identity()] = item
	d.byOrdinal[item.Ordinal] = item
}

// Items returns the ordinal-reachable items in ascending ordinal order.
func (d *Document) Items() []*Item {
	ordinals := make([]int, 0, len(d.byOrdinal))
	for ord := range d.byOrdinal {
		ordinals = append(ordinals, ord)
	}
	sort.Ints(ordinals)
	items := make([]*Item, 0, len(ordinals))
	for _, ord := range ordinals {
		items = append(items, d.byOrdinal[ord])
	}
	return items
}

// ItemsWhere returns the items in ascending ordinal order, restricted to
// those matching pred. Filtering happens at iteration time only; stored
// state is never filtered.
func (d *Document) ItemsWhere(pred func(*Item) bool) []*Item {
	items := d.Items()
	out := items[:0:0]
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// Merge reconciles a freshly parsed document into the stored one and
// reports whether anything visible changed. Channel fields are diffed
// like item fields, except that a generatedAt change alone does not count
// as a change and is rolled back when nothing else changed, so a pure
// no-op refresh does not alter the visible build time.
//
// A violated aging invariant (items only move toward the front of the
// list as they age) is recovered locally: both maps are cleared and the
// incoming list is replayed as an insert-only pass, leaving the same
// state as parsing the fetch from empty.
func (d *Document) Merge(src *Document) bool {
	origGeneratedAt := d.GeneratedAt
	changed := false
	if d.Title != src.Title {
		d.Title = src.Title
		changed = true
	}
	if d.Link != src.Link {
		d.Link = src.Link
		changed = true
	}
	if d.Description != src.Description {
		d.Description = src.Description
		changed = true
	}
	if !d.GeneratedAt.Equal(src.GeneratedAt) {
		d.GeneratedAt = src.GeneratedAt
	}

	incoming := src.Items()
	itemsChanged, err := d.mergeItems(incoming)
	if err != nil {
		d.byIdentity = make(map[Identity]*Item, len(incoming))
		d.byOrdinal = make(map[int]*Item, len(incoming))
		itemsChanged, _ = d.mergeItems(incoming)
	}
	if itemsChanged {
		changed = true
	}
	if !changed {
		d.GeneratedAt = origGeneratedAt
	}
	return changed
}

// mergeItems runs one reconciliation pass over the incoming items in
// ascending ordinal order. Against empty maps it degenerates to an
// insert-only pass and cannot fail.
func (d *Document) mergeItems(incoming []*Item) (bool, error) {
	changed := false
	for _, item := range incoming {
		if stored, ok := d.byIdentity[item.Identity()]; ok {
			if stored.equal(item) {
				continue
			}
			oldOrd, newOrd := stored.Ordinal, item.Ordinal
			if cur, ok := d.byOrdinal[oldOrd]; ok && cur == stored {
				if oldOrd <= newOrd {
					return changed, errors.Wrapf(errInconsistent,
						"item %q moved from ordinal %d to %d", stored.Title, oldOrd, newOrd)
				}
				delete(d.byOrdinal, oldOrd)
			}
			if stored.applyFrom(item) {
				changed = true
			}
			if newOrd != oldOrd {
				d.byOrdinal[newOrd] = stored
			}
			continue
		}
		if occupant, ok := d.byOrdinal[item.Ordinal]; ok {
			if occupant.Ordinal <= item.Ordinal {
				return changed, errors.Wrapf(errInconsistent,
					"ordinal %d occupied by %q at ordinal %d", item.Ordinal, occupant.Title, occupant.Ordinal)
			}
			// The occupant keeps its identity entry; it is unreachable by
			// ordinal until a later pass re-links it.
			delete(d.byOrdinal, item.Ordinal)
		}
		d.insert(item)
		changed = true
	}
	return changed, nil
}

// AddCustom inserts an operator-submitted item at its chosen ordinal,
// shifting every stored item at or after that position back by one.
func (d *Document) AddCustom(item *Item) {
	for _, it := range d.byIdentity {
		if it.Ordinal >= item.Ordinal {
			it.Ordinal++
		}
	}
	relinked := make(map[int]*Item, len(d.byOrdinal)+1)
	for _, it := range d.byOrdinal {
		relinked[it.Ordinal] = it
	}
	relinked[item.Ordinal] = item
	d.byOrdinal = relinked
	d.byIdentity[item.Identity()] = item
}

type documentState struct {
	Title       string    `msgpack:"title"`
	Link        string    `msgpack:"link"`
	GeneratedAt time.Time `msgpack:"generated_at"`
	Description string    `msgpack:"description"`
	Items       []*Item   `msgpack:"items"`
}

var (
	_ msgpack.CustomEncoder = (*Document)(nil)
	_ msgpack.CustomDecoder = (*Document)(nil)
)

// EncodeMsgpack serializes the document with its items as a flat list;
// the two indexes are rebuilt on decode.
func (d *Document) EncodeMsgpack(enc *msgpack.Encoder) error {
	items := make([]*Item, 0, len(d.byIdentity))
	for _, it := range d.byIdentity {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Ordinal < items[j].Ordinal })
	return enc.Encode(documentState{
		Title:       d.Title,
		Link:        d.Link,
		GeneratedAt: d.GeneratedAt,
		Description: d.Description,
		Items:       items,
	})
}

func (d *Document) DecodeMsgpack(dec *msgpack.Decoder) error {
	var state documentState
	if err := dec.Decode(&state); err != nil {
		return err
	}
	d.Title = state.Title
	d.Link = state.Link
	d.GeneratedAt = state.GeneratedAt
	d.Description = state.Description
	d.byIdentity = make(map[Identity]*Item, len(state.Items))
	d.byOrdinal = make(map[int]*Item, len(state.Items))
	for _, it := range state.Items {
		d.insert(it)
	}
	return nil
}
