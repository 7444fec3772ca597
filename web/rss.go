package web

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/signview/signview/cache"
	"github.com/signview/signview/feed"
)

const maxFeedBytes = 4 << 20

func (a *App) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building feed request")
	}
	req.Header.Set("User-Agent", "signview/1.0")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("%s returned %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", url)
	}
	return data, nil
}

// feedCallback builds the refresh callback for one feed: fetch, parse,
// reconcile into the stored document, persist. The cell lock is already
// held when the group invokes it.
func (a *App) feedCallback(entry feedEntry) cache.Callback {
	return func(ctx context.Context, cell *cache.Cell) error {
		data, err := a.fetch(ctx, entry.cfg.URL)
		if err != nil {
			return err
		}
		fresh, err := entry.parser.Parse(data)
		if err != nil {
			return errors.Wrapf(err, "parsing feed %q", cell.Key())
		}
		stored, ok, err := cache.Hydrate[*feed.Document](cell)
		if err != nil || !ok {
			return cell.Update(fresh, time.Now(), 0)
		}
		if stored.Merge(fresh) {
			a.log.Debug("feed %q changed, %d items", cell.Key(), stored.Len())
		}
		return cell.Update(stored, time.Now(), 0)
	}
}

// demandFeed is the foreground read path for one feed key.
func (a *App) demandFeed(key string) (*feed.Document, feedEntry, error) {
	entry, ok := a.feedConfig(key)
	if !ok {
		return nil, feedEntry{}, errors.Newf("unknown feed %q", key)
	}
	cell, err := a.store.GetOrCreate(key)
	if err != nil {
		return nil, entry, err
	}
	doc, err := cache.Demand[*feed.Document](cell, entry.cfg.Interval())
	return doc, entry, err
}

// visibleItems applies the feed's venue restriction and item cap at
// render time; stored state is never filtered.
func visibleItems(doc *feed.Document, entry feedEntry) []*feed.Item {
	items := doc.Items()
	if entry.cfg.Venue != "" {
		items = doc.ItemsWhere(func(it *feed.Item) bool {
			return it.Address == entry.cfg.Venue
		})
	}
	if max := entry.cfg.MaxItems; max > 0 && len(items) > max {
		items = items[:max]
	}
	return items
}

func pageTitle(doc *feed.Document, entry feedEntry) string {
	if entry.cfg.Title != "" {
		return entry.cfg.Title
	}
	return doc.Title
}

// handleRSS dispatches everything under /rss/:
//
//	/rss/{key}.xml          rendered RSS document
//	/rss/{key}.html         HTML page
//	/rss/{key}/feed-items   HTML fragment with the item list only
//	/rss/{key}/custom-item  form (GET) and submit (POST) for manual items
func (a *App) handleRSS(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/rss/")
	switch {
	case strings.HasSuffix(rest, ".xml"):
		a.serveFeedXML(w, r, strings.TrimSuffix(rest, ".xml"))
	case strings.HasSuffix(rest, ".html"):
		a.serveFeedPage(w, r, strings.TrimSuffix(rest, ".html"))
	case strings.HasSuffix(rest, "/feed-items"):
		a.serveFeedItems(w, r, strings.TrimSuffix(rest, "/feed-items"))
	case strings.HasSuffix(rest, "/custom-item"):
		a.serveCustomItem(w, r, strings.TrimSuffix(rest, "/custom-item"))
	default:
		http.NotFound(w, r)
	}
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description,omitempty"`
	GUID        string `xml:"guid,omitempty"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

func (a *App) serveFeedXML(w http.ResponseWriter, r *http.Request, key string) {
	doc, entry, err := a.demandFeed(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	out := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:       pageTitle(doc, entry),
			Link:        doc.Link,
			Description: doc.Description,
		},
	}
	if !doc.GeneratedAt.IsZero() {
		out.Channel.LastBuildDate = doc.GeneratedAt.Format(time.RFC1123Z)
	}
	for _, it := range visibleItems(doc, entry) {
		item := rssItem{
			Title:       it.Title,
			Description: it.Description,
			GUID:        it.GUID,
			Category:    it.Category,
		}
		if !it.PubDate.IsZero() {
			item.PubDate = it.PubDate.Format(time.RFC1123Z)
		}
		out.Channel.Items = append(out.Channel.Items, item)
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		a.log.Warn("encoding rss for %q: %v", key, err)
	}
}

// feedView is the template payload for the feed pages and fragments.
type feedView struct {
	Key         string
	Title       string
	Link        string
	GeneratedAt time.Time
	Items       []*feed.Item
}

func (a *App) feedView(key string) (feedView, error) {
	doc, entry, err := a.demandFeed(key)
	if err != nil {
		return feedView{}, err
	}
	return feedView{
		Key:         key,
		Title:       pageTitle(doc, entry),
		Link:        doc.Link,
		GeneratedAt: doc.GeneratedAt,
		Items:       visibleItems(doc, entry),
	}, nil
}

func (a *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.tmpl.ExecuteTemplate(w, name, data); err != nil {
		a.log.Error("rendering %s: %v", name, err)
	}
}

func (a *App) serveFeedPage(w http.ResponseWriter, r *http.Request, key string) {
	view, err := a.feedView(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	a.render(w, "feed.html", view)
}

func (a *App) serveFeedItems(w http.ResponseWriter, r *http.Request, key string) {
	view, err := a.feedView(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	a.render(w, "feed_items.html", view)
}

func (a *App) serveCustomItem(w http.ResponseWriter, r *http.Request, key string) {
	entry, ok := a.feedConfig(key)
	if !ok {
		http.NotFound(w, r)
		return
	}
	title := entry.cfg.Title
	if title == "" {
		title = key
	}
	switch r.Method {
	case http.MethodGet:
		a.render(w, "custom_item_form.html", feedView{Key: key, Title: title})
	case http.MethodPost:
		a.submitCustomItem(w, r, key)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// submitCustomItem inserts an operator-entered item into the stored
// document at the requested position and persists it.
func (a *App) submitCustomItem(w http.ResponseWriter, r *http.Request, key string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	title := strings.TrimSpace(r.PostFormValue("title"))
	if title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	start, err := time.ParseInLocation("2006-01-02T15:04", r.PostFormValue("start_time"), a.loc)
	if err != nil {
		http.Error(w, "invalid start time", http.StatusBadRequest)
		return
	}
	ordinal := 0
	if v := r.PostFormValue("ordinal"); v != "" {
		if ordinal, err = strconv.Atoi(v); err != nil || ordinal < 0 {
			http.Error(w, "invalid ordinal", http.StatusBadRequest)
			return
		}
	}
	item := &feed.Item{
		Title:       title,
		Description: strings.TrimSpace(r.PostFormValue("description")),
		StartTime:   start,
		PubDate:     time.Now(),
		Ordinal:     ordinal,
		GUID:        uuid.NewString(),
	}
	if v := r.PostFormValue("end_time"); v != "" {
		end, err := time.ParseInLocation("2006-01-02T15:04", v, a.loc)
		if err != nil {
			http.Error(w, "invalid end time", http.StatusBadRequest)
			return
		}
		item.EndTime = end
	}

	cell, err := a.store.GetOrCreate(key)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	// Keep the refresh schedule as-is: a manual insert is not a refresh.
	last := cell.LastRefresh()
	cell.Lock()
	doc, ok, err := cache.Hydrate[*feed.Document](cell)
	if err != nil || !ok {
		cell.Unlock()
		http.Error(w, "feed not yet loaded", http.StatusConflict)
		return
	}
	doc.AddCustom(item)
	err = cell.Update(doc, last, 0)
	cell.Broadcast()
	cell.Unlock()
	if err != nil {
		a.log.Error("persisting custom item on %q: %v", key, err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	a.log.Info("custom item %q added to feed %q at position %d", title, key, ordinal)
	http.Redirect(w, r, "/rss/"+key+".html", http.StatusSeeOther)
}
