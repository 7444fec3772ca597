package feed

import (
	"slices"
	"time"
)

// Identity uniquely identifies a feed item across fetches, independent of
// its position in the document. Two fetches of the same event share an
// identity even when every other field changed.
type Identity struct {
	Start int64 // unix seconds, UTC
	Title string
}

// Section is one titled block extracted from a calendar item's HTML
// description.
type Section struct {
	Title string   `msgpack:"title"`
	Lines []string `msgpack:"lines"`
}

// Item is a single entry of a syndication document. The common fields are
// populated for every source kind; the remaining fields are filled in by
// the source-specific item parsers.
type Item struct {
	Title       string    `msgpack:"title"`
	PubDate     time.Time `msgpack:"pub_date"`
	Description string    `msgpack:"description"`
	StartTime   time.Time `msgpack:"start_time"`
	EndTime     time.Time `msgpack:"end_time"`

	// Ordinal is the zero-based position of the item in the most recently
	// fetched source document.
	Ordinal int `msgpack:"ordinal"`

	// Meetings items carry the venue split out of the location field.
	Address string `msgpack:"address,omitempty"`
	City    string `msgpack:"city,omitempty"`

	// Legistar items carry the source guid and category.
	GUID     string `msgpack:"guid,omitempty"`
	Category string `msgpack:"category,omitempty"`

	// Calendar items carry their description parsed into titled sections.
	Sections []Section `msgpack:"sections,omitempty"`
}

// Identity returns the item's cross-fetch identity key.
func (it *Item) Identity() Identity {
	return Identity{Start: it.StartTime.UTC().Unix(), Title: it.Title}
}

func sectionsEqual(a, b []Section) bool {
	return slices.EqualFunc(a, b, func(x, y Section) bool {
		return x.Title == y.Title && slices.Equal(x.Lines, y.Lines)
	})
}

// equal compares every declared field by value.
func (it *Item) equal(other *Item) bool {
	return it.Title == other.Title &&
		it.PubDate.Equal(other.PubDate) &&
		it.Description == other.Description &&
		it.StartTime.Equal(other.StartTime) &&
		it.EndTime.Equal(other.EndTime) &&
		it.Ordinal == other.Ordinal &&
		it.Address == other.Address &&
		it.City == other.City &&
		it.GUID == other.GUID &&
		it.Category == other.Category &&
		sectionsEqual(it.Sections, other.Sections)
}

// applyFrom copies each field that differs from other onto the item and
// reports whether anything changed. The diff is schema-fixed: each
// declared field is compared by value, no reflection.
func (it *Item) applyFrom(other *Item) bool {
	changed := false
	if it.Title != other.Title {
		it.Title = other.Title
		changed = true
	}
	if !it.PubDate.Equal(other.PubDate) {
		it.PubDate = other.PubDate
		changed = true
	}
	if it.Description != other.Description {
		it.Description = other.Description
		changed = true
	}
	if !it.StartTime.Equal(other.StartTime) {
		it.StartTime = other.StartTime
		changed = true
	}
	if !it.EndTime.Equal(other.EndTime) {
		it.EndTime = other.EndTime
		changed = true
	}
	if it.Ordinal != other.Ordinal {
		it.Ordinal = other.Ordinal
		changed = true
	}
	if it.Address != other.Address {
		it.Address = other.Address
		changed = true
	}
	if it.City != other.City {
		it.City = other.City
		changed = true
	}
	if it.GUID != other.GUID {
		it.GUID = other.GUID
		changed = true
	}
	if it.Category != other.Category {
		it.Category = other.Category
		changed = true
	}
	if !sectionsEqual(it.Sections, other.Sections) {
		it.Sections = slices.Clone(other.Sections)
		changed = true
	}
	return changed
}
