package feed

import (
	"bytes"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mmcdole/gofeed"
)

// Kind selects the source-specific item parsing rules for a feed.
type Kind string

const (
	KindMeetings Kind = "meetings"
	KindCalendar Kind = "calendar"
	KindLegistar Kind = "legistar"
)

// ParseKind validates a feed kind from configuration.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMeetings, KindCalendar, KindLegistar:
		return Kind(s), nil
	}
	return "", errors.Newf("feed: unknown kind %q", s)
}

// calendarEventNS is the extension prefix the civic calendar sources use
// for their structured event fields.
const calendarEventNS = "calendarEvent"

// eventDateTimeLayout parses "September 2, 2020 8:00 AM".
const eventDateTimeLayout = "January 2, 2006 3:04 PM"

// ItemParser extracts one Item from a source item block. Implementations
// share the common field extraction and add their source-specific rules.
type ItemParser interface {
	ParseItem(src *gofeed.Item, ordinal int) (*Item, error)
}

// Parser turns raw syndication documents of one kind into Documents.
// Event times without an explicit zone are interpreted in loc.
type Parser struct {
	kind  Kind
	fp    *gofeed.Parser
	items ItemParser
}

// NewParser returns a Parser for the given source kind.
func NewParser(kind Kind, loc *time.Location) *Parser {
	base := baseParser{loc: loc}
	var items ItemParser
	switch kind {
	case KindCalendar:
		items = calendarParser{base}
	case KindLegistar:
		items = legistarParser{base}
	default:
		items = meetingsParser{base}
	}
	return &Parser{
		kind:  kind,
		fp:    gofeed.NewParser(),
		items: items,
	}
}

// Kind returns the parser's source kind.
func (p *Parser) Kind() Kind { return p.kind }

// Parse builds a fresh Document from one fetched payload. Item ordinals
// follow source order, ordinal 0 first in the document.
func (p *Parser) Parse(data []byte) (*Document, error) {
	src, err := p.fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parsing feed document")
	}
	var generatedAt time.Time
	if src.UpdatedParsed != nil {
		generatedAt = *src.UpdatedParsed
	} else if src.PublishedParsed != nil {
		generatedAt = *src.PublishedParsed
	}
	doc := NewDocument(strings.TrimSpace(src.Title), strings.TrimSpace(src.Link),
		strings.TrimSpace(src.Description), generatedAt)
	for i, it := range src.Items {
		item, err := p.items.ParseItem(it, i)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		doc.insert(item)
	}
	return doc, nil
}
