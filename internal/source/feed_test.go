package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/internal/domain/catalog"
)

const feedPageOne = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:archive="https://feeds.example.org/xmlns/archive">
  <channel>
    <title>Model Preservation Feed</title>
    <item>
      <title>Llama-3.1-70B-Instruct [GGUF] https://example.org/mirror</title>
      <link>https://feeds.example.org/view/91001</link>
      <description>Quantized instruct language model weights</description>
      <pubDate>Mon, 15 Jul 2024 10:30:00 +0000</pubDate>
      <guid>https://feeds.example.org/view/91001</guid>
      <archive:seeders>340</archive:seeders>
    </item>
    <item>
      <title>SDXL anime checkpoint pack</title>
      <link>https://feeds.example.org/view/91002</link>
      <description>Collection of anime style checkpoints</description>
      <pubDate>not a date</pubDate>
      <guid>https://feeds.example.org/view/91002</guid>
      <archive:seeders>3</archive:seeders>
    </item>
    <item>
      <title>Item with no link</title>
      <description>should be dropped</description>
    </item>
  </channel>
</rss>`

func TestArchiveFeedFetchPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, feedPageOne)
			return
		}
		fmt.Fprint(w, `<rss version="2.0"><channel></channel></rss>`)
	}))
	defer ts.Close()

	f := NewArchiveFeed(ts.URL+"/feed.rss", nil, nil)
	records, err := f.FetchPage(context.Background(), 1)
	require.NoError(t, err)

	// The linkless item is dropped.
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "archive-feed:91001", first.ID)
	assert.Equal(t, "Llama-3.1-70B-Instruct [GGUF]", first.Name)
	assert.Equal(t, catalog.DomainLLM, first.Domain)
	assert.Equal(t, catalog.SourceArchiveFeed, first.Source)
	assert.True(t, first.Hosting.WeightsAvailable)
	require.NotNil(t, first.Downloads)
	assert.Equal(t, 340, *first.Downloads)
	assert.True(t, first.HasTag("popular"))
	assert.True(t, first.HasTag("base:llama"))
	require.NotNil(t, first.ReleaseDate)
	assert.Equal(t, 2024, first.ReleaseDate.Year())

	second := records[1]
	assert.Equal(t, catalog.DomainImageGen, second.Domain)
	assert.True(t, second.HasTag("style:anime"))
	assert.True(t, second.HasTag("type:checkpoint"))
	assert.False(t, second.HasTag("popular"))
	assert.Nil(t, second.ReleaseDate)
}

func TestArchiveFeedFullRun(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, feedPageOne)
			return
		}
		fmt.Fprint(w, `<rss version="2.0"><channel></channel></rss>`)
	}))
	defer ts.Close()

	f := NewArchiveFeed(ts.URL+"/feed.rss", nil, nil)
	records, err := f.Fetcher(WithBatchDelay(0)).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestArchiveFeedProxyFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedPageOne)
	}))
	defer ts.Close()

	// The proxy rewrites to a dead address; the direct fallback must serve.
	proxy := func(rawURL string) string { return "http://127.0.0.1:1/unreachable" }

	f := NewArchiveFeed(ts.URL+"/feed.rss", proxy, nil)
	records, err := f.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFeedPageURL(t *testing.T) {
	f := &ArchiveFeed{feedURL: "https://feeds.example.org/rss?cat=models"}
	assert.Equal(t, "https://feeds.example.org/rss?cat=models&page=2", f.pageURL(2))

	f = &ArchiveFeed{feedURL: "https://feeds.example.org/rss"}
	assert.Equal(t, "https://feeds.example.org/rss?page=1", f.pageURL(1))
}
