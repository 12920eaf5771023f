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

const civitaiPageOne = `{
  "items": [
    {
      "id": 4201,
      "name": "DreamShaper XL",
      "description": "A versatile SDXL checkpoint for realistic renders",
      "type": "Checkpoint",
      "nsfw": false,
      "tags": ["base model", "photorealistic"],
      "allowCommercialUse": ["Image", "Rent"],
      "allowNoCredit": true,
      "stats": {"downloadCount": 250000},
      "creator": {"username": "lykon"},
      "modelVersions": [{"baseModel": "SDXL 1.0", "createdAt": "2024-03-10T12:00:00Z"}]
    },
    {
      "id": 4202,
      "name": "",
      "type": "Checkpoint"
    },
    {
      "id": 4203,
      "name": "Detail Tweaker",
      "description": "lora for adding fine detail",
      "type": "LORA",
      "nsfw": true,
      "allowCommercialUse": [],
      "allowNoCredit": false,
      "stats": {"downloadCount": 12},
      "creator": {"username": "someone"}
    }
  ]
}`

func TestCivitaiFetchPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, civitaiPageOne)
			return
		}
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer ts.Close()

	c := NewCivitai(ts.URL, nil, nil)
	records, err := c.FetchPage(context.Background(), 1)
	require.NoError(t, err)

	// The nameless item is dropped.
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "civitai:4201", first.ID)
	assert.Equal(t, "DreamShaper XL", first.Name)
	assert.Equal(t, "lykon", first.Provider)
	assert.Equal(t, catalog.DomainImageGen, first.Domain)
	assert.Equal(t, catalog.SourceCivitai, first.Source)
	assert.True(t, first.License.CommercialUse)
	assert.False(t, first.License.AttributionRequired)
	assert.True(t, first.Hosting.WeightsAvailable)
	require.NotNil(t, first.Downloads)
	assert.Equal(t, 250000, *first.Downloads)
	assert.True(t, first.HasTag("base:sdxl-1.0"))
	assert.True(t, first.HasTag("popular"))
	require.NotNil(t, first.ReleaseDate)

	second := records[1]
	assert.Equal(t, catalog.DomainLoRA, second.Domain)
	assert.True(t, second.HasTag("nsfw"))
	assert.False(t, second.License.CommercialUse)
	assert.True(t, second.License.AttributionRequired)
	assert.Contains(t, second.UsageRestrictions, "no-commercial-use")
	assert.False(t, second.HasTag("popular"))
}

func TestCivitaiEmptyPageEndsFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer ts.Close()

	c := NewCivitai(ts.URL, nil, nil)
	records, err := c.Fetcher(WithBatchDelay(0)).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCivitaiDomainMapping(t *testing.T) {
	cases := map[string]catalog.Domain{
		"Checkpoint":       catalog.DomainImageGen,
		"LORA":             catalog.DomainLoRA,
		"TextualInversion": catalog.DomainFineTune,
		"Upscaler":         catalog.DomainUpscaler,
		"MotionModule":     catalog.DomainVideoGen,
		"Poses":            catalog.DomainOther,
	}
	for modelType, want := range cases {
		if got := civitaiDomain(modelType); got != want {
			t.Errorf("civitaiDomain(%q) = %q, want %q", modelType, got, want)
		}
	}
}
