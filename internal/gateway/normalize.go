package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	decimal "github.com/shopspring/decimal"

	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
)

// openAIListItem is the lenient shape of one /models entry. OpenRouter-style
// listings add name/description/context_length/pricing on top of the bare
// OpenAI fields.
type openAIListItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	OwnedBy       string `json:"owned_by"`
	Created       int64  `json:"created"`
	Description   string `json:"description"`
	ContextLength int    `json:"context_length"`
	Pricing       struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
}

func normalizeOpenAIListing(key, vendor string, body []byte) []catalog.ModelRecord {
	items, ok := listingItems(key, body, "data")
	if !ok {
		return nil
	}

	log := logger.GetLogger()
	records := make([]catalog.ModelRecord, 0, len(items))
	for i, raw := range items {
		var item openAIListItem
		if err := json.Unmarshal(raw, &item); err != nil || item.ID == "" {
			log.Warn().Str("provider", key).Int("index", i).Msg("dropping malformed listing item")
			continue
		}

		rec := baseRecord(key, vendor, item.ID)
		if item.Name != "" {
			rec.Name = item.Name
		}
		rec.Description = item.Description
		rec.ContextWindow = item.ContextLength
		if item.OwnedBy != "" {
			rec.Provider = item.OwnedBy
		}
		if item.Created > 0 {
			created := time.Unix(item.Created, 0).UTC()
			rec.ReleaseDate = &created
			rec.UpdatedAt = created
		}
		rec.Pricing = pricingFromStrings(item.Pricing.Prompt, item.Pricing.Completion)
		records = append(records, rec)
	}
	return records
}

type anthropicListItem struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func normalizeAnthropicListing(key, vendor string, body []byte) []catalog.ModelRecord {
	items, ok := listingItems(key, body, "data")
	if !ok {
		return nil
	}

	log := logger.GetLogger()
	records := make([]catalog.ModelRecord, 0, len(items))
	for i, raw := range items {
		var item anthropicListItem
		if err := json.Unmarshal(raw, &item); err != nil || item.ID == "" {
			log.Warn().Str("provider", key).Int("index", i).Msg("dropping malformed listing item")
			continue
		}

		rec := baseRecord(key, vendor, item.ID)
		if item.DisplayName != "" {
			rec.Name = item.DisplayName
		}
		if !item.CreatedAt.IsZero() {
			created := item.CreatedAt.UTC()
			rec.ReleaseDate = &created
			rec.UpdatedAt = created
		}
		records = append(records, rec)
	}
	return records
}

type localListItem struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Details    struct {
		ParameterSize string `json:"parameter_size"`
		Family        string `json:"family"`
	} `json:"details"`
}

func normalizeLocalListing(key, vendor string, body []byte) []catalog.ModelRecord {
	items, ok := listingItems(key, body, "models")
	if !ok {
		return nil
	}

	log := logger.GetLogger()
	records := make([]catalog.ModelRecord, 0, len(items))
	for i, raw := range items {
		var item localListItem
		if err := json.Unmarshal(raw, &item); err != nil || item.Name == "" {
			log.Warn().Str("provider", key).Int("index", i).Msg("dropping malformed listing item")
			continue
		}

		rec := baseRecord(key, vendor, item.Name)
		rec.Parameters = item.Details.ParameterSize
		rec.Hosting.WeightsAvailable = true
		rec.Hosting.OnPremiseFriendly = true
		if item.Details.Family != "" {
			rec.AddTag("base:" + item.Details.Family)
		}
		if !item.ModifiedAt.IsZero() {
			rec.UpdatedAt = item.ModifiedAt.UTC()
		}
		records = append(records, rec)
	}
	return records
}

// listingItems pulls the item array out of a listing payload. A payload whose
// item field is missing or not an array yields (nil, false) with a logged
// warning, never an error.
func listingItems(key string, body []byte, field string) ([]json.RawMessage, bool) {
	log := logger.GetLogger()

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Str("provider", key).Err(err).Msg("listing payload is not a JSON object; treating as empty")
		return nil, false
	}

	raw, ok := payload[field]
	if !ok {
		log.Warn().Str("provider", key).Str("field", field).Msg("listing payload has no item array; treating as empty")
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn().Str("provider", key).Str("field", field).Msg("listing item field is not an array; treating as empty")
		return nil, false
	}
	return items, true
}

func baseRecord(key, vendor, modelID string) catalog.ModelRecord {
	return catalog.ModelRecord{
		ID:         fmt.Sprintf("%s:%s", key, modelID),
		Name:       modelID,
		Provider:   vendor,
		Domain:     catalog.DomainLLM,
		Source:     catalog.SourceProvider,
		Hosting:    catalog.Hosting{APIAvailable: true},
		UpdatedAt:  time.Now().UTC(),
		Provenance: fmt.Sprintf("listed by provider %s", key),
	}
}

func pricingFromStrings(prompt, completion string) []catalog.Price {
	var pricing []catalog.Price
	if p, err := decimal.NewFromString(prompt); err == nil && !p.IsZero() {
		pricing = append(pricing, catalog.Price{Unit: "prompt_token", USD: p})
	}
	if c, err := decimal.NewFromString(completion); err == nil && !c.IsZero() {
		pricing = append(pricing, catalog.Price{Unit: "completion_token", USD: c})
	}
	return pricing
}
