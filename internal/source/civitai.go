package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/ratelimit"
	"github.com/modelscout/modelscout/internal/utils/httpclients"
)

const civitaiPageSize = 20

// CivitaiCatalog ingests a Civitai-style paginated JSON model catalog.
type CivitaiCatalog struct {
	baseURL   string
	transport *transport
}

// NewCivitai builds a catalog client for the given API base URL.
func NewCivitai(baseURL string, proxy httpclients.ProxyFunc, limiter *ratelimit.Limiter) *CivitaiCatalog {
	return &CivitaiCatalog{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: newTransport("civitai", proxy, limiter),
	}
}

// Name returns the catalog identifier.
func (c *CivitaiCatalog) Name() string { return string(catalog.SourceCivitai) }

// Fetcher returns a pagination driver over this catalog.
func (c *CivitaiCatalog) Fetcher(opts ...FetcherOption) *Fetcher {
	return NewFetcher(c.Name(), c.FetchPage, opts...)
}

type civitaiListing struct {
	Items []civitaiItem `json:"items"`
}

type civitaiItem struct {
	ID                 int      `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Type               string   `json:"type"`
	NSFW               bool     `json:"nsfw"`
	Tags               []string `json:"tags"`
	AllowCommercialUse []string `json:"allowCommercialUse"`
	AllowNoCredit      bool     `json:"allowNoCredit"`
	Stats              struct {
		DownloadCount int `json:"downloadCount"`
	} `json:"stats"`
	Creator struct {
		Username string `json:"username"`
	} `json:"creator"`
	ModelVersions []struct {
		BaseModel string `json:"baseModel"`
		CreatedAt string `json:"createdAt"`
	} `json:"modelVersions"`
}

// FetchPage retrieves one page of the catalog and normalizes its items.
// Items without a name are dropped.
func (c *CivitaiCatalog) FetchPage(ctx context.Context, page int) ([]catalog.ModelRecord, error) {
	url := fmt.Sprintf("%s/api/v1/models?page=%d&limit=%d", c.baseURL, page, civitaiPageSize)
	body, err := c.transport.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var listing civitaiListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse civitai page %d: %w", page, err)
	}

	records := make([]catalog.ModelRecord, 0, len(listing.Items))
	for _, item := range listing.Items {
		if item.Name == "" {
			continue
		}
		records = append(records, c.toRecord(item))
	}
	return records, nil
}

func (c *CivitaiCatalog) toRecord(item civitaiItem) catalog.ModelRecord {
	downloads := item.Stats.DownloadCount
	r := catalog.ModelRecord{
		ID:          "civitai:" + strconv.Itoa(item.ID),
		Name:        item.Name,
		Provider:    item.Creator.Username,
		Domain:      civitaiDomain(item.Type),
		Source:      catalog.SourceCivitai,
		URL:         fmt.Sprintf("%s/models/%d", c.baseURL, item.ID),
		Description: item.Description,
		License: catalog.License{
			Name:                "civitai-terms",
			Type:                "restricted",
			CommercialUse:       len(item.AllowCommercialUse) > 0,
			AttributionRequired: !item.AllowNoCredit,
		},
		Hosting: catalog.Hosting{
			WeightsAvailable:  true,
			OnPremiseFriendly: true,
		},
		UpdatedAt:  time.Now().UTC(),
		Downloads:  &downloads,
		Provenance: "listed on civitai",
	}
	if len(item.AllowCommercialUse) == 0 {
		r.UsageRestrictions = append(r.UsageRestrictions, "no-commercial-use")
	}

	for _, tag := range item.Tags {
		r.AddTag(tag)
	}
	if item.NSFW {
		r.AddTag("nsfw")
	}
	if len(item.ModelVersions) > 0 {
		v := item.ModelVersions[0]
		if v.BaseModel != "" {
			r.AddTag("base:" + strings.ToLower(strings.ReplaceAll(v.BaseModel, " ", "-")))
		}
		if ts, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
			r.ReleaseDate = &ts
		}
	}
	EnrichTags(&r)
	return r
}

// civitaiDomain maps the catalog's model-type labels onto domains.
func civitaiDomain(modelType string) catalog.Domain {
	switch strings.ToLower(modelType) {
	case "checkpoint", "controlnet", "vae":
		return catalog.DomainImageGen
	case "lora", "locon", "dora", "lycoris":
		return catalog.DomainLoRA
	case "textualinversion", "hypernetwork":
		return catalog.DomainFineTune
	case "upscaler":
		return catalog.DomainUpscaler
	case "motionmodule":
		return catalog.DomainVideoGen
	case "llm":
		return catalog.DomainLLM
	default:
		return catalog.DomainOther
	}
}
