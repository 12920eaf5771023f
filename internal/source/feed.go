package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/ratelimit"
	"github.com/modelscout/modelscout/internal/utils/httpclients"
	"github.com/modelscout/modelscout/internal/utils/stringutils"
)

const feedTitleMaxLen = 120

// ArchiveFeed ingests a paginated RSS preservation feed whose items carry a
// namespaced seed-count extension element.
type ArchiveFeed struct {
	feedURL   string
	transport *transport
}

// NewArchiveFeed builds a client for the given RSS feed URL.
func NewArchiveFeed(feedURL string, proxy httpclients.ProxyFunc, limiter *ratelimit.Limiter) *ArchiveFeed {
	return &ArchiveFeed{
		feedURL:   feedURL,
		transport: newTransport("archive-feed", proxy, limiter),
	}
}

// Name returns the catalog identifier.
func (f *ArchiveFeed) Name() string { return string(catalog.SourceArchiveFeed) }

// Fetcher returns a pagination driver over this feed.
func (f *ArchiveFeed) Fetcher(opts ...FetcherOption) *Fetcher {
	return NewFetcher(f.Name(), f.FetchPage, opts...)
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
	// Namespaced extension; the unqualified name matches any namespace.
	Seeders int `xml:"seeders"`
}

// FetchPage retrieves one page of the feed. Items missing a title or link are
// dropped.
func (f *ArchiveFeed) FetchPage(ctx context.Context, page int) ([]catalog.ModelRecord, error) {
	body, err := f.transport.get(ctx, f.pageURL(page))
	if err != nil {
		return nil, err
	}

	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse feed page %d: %w", page, err)
	}

	records := make([]catalog.ModelRecord, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		r, ok := f.toRecord(item)
		if !ok {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (f *ArchiveFeed) pageURL(page int) string {
	sep := "?"
	if strings.Contains(f.feedURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", f.feedURL, sep, page)
}

func (f *ArchiveFeed) toRecord(item rssItem) (catalog.ModelRecord, bool) {
	name := stringutils.GenerateTitle(item.Title, feedTitleMaxLen)
	if name == "" || item.Link == "" {
		return catalog.ModelRecord{}, false
	}

	seeders := item.Seeders
	r := catalog.ModelRecord{
		ID:          feedIdentity(item),
		Name:        name,
		Domain:      inferDomain(item.Title + " " + item.Description),
		Source:      catalog.SourceArchiveFeed,
		URL:         item.Link,
		Description: item.Description,
		Hosting: catalog.Hosting{
			WeightsAvailable:  true,
			OnPremiseFriendly: true,
		},
		UpdatedAt:  time.Now().UTC(),
		Downloads:  &seeders,
		Provenance: "archive feed item",
	}
	if ts, ok := parsePubDate(item.PubDate); ok {
		r.ReleaseDate = &ts
	}
	EnrichTags(&r)
	return r, true
}

// feedIdentity prefers the item GUID, then the link's trailing segment. An
// empty result defers to the fetcher's page/index synthesis.
func feedIdentity(item rssItem) string {
	if item.GUID != "" {
		return "archive-feed:" + lastPathSegment(item.GUID)
	}
	if tail := lastPathSegment(item.Link); tail != "" {
		return "archive-feed:" + tail
	}
	return ""
}

func lastPathSegment(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	trimmed := strings.TrimRight(raw, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func parsePubDate(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
