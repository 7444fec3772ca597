package feed

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

type baseParser struct {
	loc *time.Location
}

func extValue(src *gofeed.Item, name string) (string, bool) {
	ns, ok := src.Extensions[calendarEventNS]
	if !ok {
		return "", false
	}
	exts, ok := ns[name]
	if !ok || len(exts) == 0 {
		return "", false
	}
	return strings.TrimSpace(exts[0].Value), true
}

// parseCommon extracts the fields shared by every source kind. Start and
// end times come from the calendarEvent extension block when present and
// fall back to the publish date otherwise.
func (p baseParser) parseCommon(src *gofeed.Item, ordinal int) (*Item, error) {
	item := &Item{
		Title:       strings.TrimSpace(src.Title),
		Description: strings.TrimSpace(src.Description),
		Ordinal:     ordinal,
	}
	if src.PublishedParsed != nil {
		item.PubDate = *src.PublishedParsed
	}
	start, end, ok, err := p.eventTimes(src)
	if err != nil {
		return nil, err
	}
	if !ok {
		start, end = item.PubDate, item.PubDate
	}
	item.StartTime = start
	item.EndTime = end
	return item, nil
}

// eventTimes parses the calendarEvent:EventDates / EventTimes pair.
// EventDates is either a single date or a "start - end" range; EventTimes
// is always a "start - end" range.
func (p baseParser) eventTimes(src *gofeed.Item) (time.Time, time.Time, bool, error) {
	dates, okDates := extValue(src, "EventDates")
	times, okTimes := extValue(src, "EventTimes")
	if !okDates || !okTimes {
		return time.Time{}, time.Time{}, false, nil
	}
	dateParts := strings.SplitN(dates, " - ", 2)
	if len(dateParts) == 1 {
		dateParts = append(dateParts, dateParts[0])
	}
	timeParts := strings.SplitN(times, " - ", 2)
	if len(timeParts) != 2 {
		return time.Time{}, time.Time{}, false, errors.Newf("malformed event times %q", times)
	}
	var out [2]time.Time
	for i := range out {
		s := strings.TrimSpace(dateParts[i]) + " " + strings.TrimSpace(timeParts[i])
		dt, err := time.ParseInLocation(eventDateTimeLayout, s, p.loc)
		if err != nil {
			return time.Time{}, time.Time{}, false, errors.Wrapf(err, "parsing event time %q", s)
		}
		out[i] = dt
	}
	return out[0], out[1], true, nil
}

// meetingsParser handles the public-meetings source, which carries the
// venue as an HTML-delimited "address<br>city" location string.
type meetingsParser struct {
	baseParser
}

func (p meetingsParser) ParseItem(src *gofeed.Item, ordinal int) (*Item, error) {
	item, err := p.parseCommon(src, ordinal)
	if err != nil {
		return nil, err
	}
	if location, ok := extValue(src, "Location"); ok {
		parts := strings.SplitN(location, "<br>", 2)
		item.Address = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			item.City = strings.TrimSpace(parts[1])
		}
	}
	return item, nil
}

// calendarParser handles the all-calendar source, whose item descriptions
// are HTML blocks of <strong>title</strong> sections separated by <br>
// line breaks.
type calendarParser struct {
	baseParser
}

func (p calendarParser) ParseItem(src *gofeed.Item, ordinal int) (*Item, error) {
	item, err := p.parseCommon(src, ordinal)
	if err != nil {
		return nil, err
	}
	item.Sections = sectionsFromHTML(item.Description)
	return item, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// sectionsFromHTML splits a description into titled sections: each
// <strong> element starts a section, and the sibling content up to the
// next <strong> becomes its lines, one per <br> break.
func sectionsFromHTML(desc string) []Section {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return nil
	}
	var sections []Section
	doc.Find("strong").Each(func(_ int, sel *goquery.Selection) {
		section := Section{Title: strings.TrimSpace(sel.Text())}
		var buf strings.Builder
		flush := func() {
			if line := strings.TrimSpace(buf.String()); line != "" {
				section.Lines = append(section.Lines, line)
			}
			buf.Reset()
		}
		for n := sel.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
			if n.Type == html.ElementNode && n.Data == "strong" {
				break
			}
			if n.Type == html.ElementNode && n.Data == "br" {
				flush()
				continue
			}
			buf.WriteString(nodeText(n))
		}
		flush()
		sections = append(sections, section)
	})
	return sections
}

// legistarParser handles the legislative calendar source, a plain RSS
// feed whose items carry a guid and category instead of structured event
// fields.
type legistarParser struct {
	baseParser
}

func (p legistarParser) ParseItem(src *gofeed.Item, ordinal int) (*Item, error) {
	item, err := p.parseCommon(src, ordinal)
	if err != nil {
		return nil, err
	}
	item.GUID = src.GUID
	if len(src.Categories) > 0 {
		item.Category = strings.TrimSpace(src.Categories[0])
	}
	return item, nil
}
