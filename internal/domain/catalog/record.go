package catalog

import (
	"strings"
	"time"

	decimal "github.com/shopspring/decimal"
)

// Domain classifies what kind of model a record describes.
type Domain string

const (
	DomainLLM               Domain = "llm"
	DomainVLM               Domain = "vlm"
	DomainVision            Domain = "vision"
	DomainImageGen          Domain = "image-gen"
	DomainVideoGen          Domain = "video-gen"
	DomainAudio             Domain = "audio"
	DomainASR               Domain = "asr"
	DomainTTS               Domain = "tts"
	Domain3D                Domain = "3d"
	DomainWorldSim          Domain = "world-sim"
	DomainLoRA              Domain = "lora"
	DomainFineTune          Domain = "finetune"
	DomainBackgroundRemoval Domain = "background-removal"
	DomainUpscaler          Domain = "upscaler"
	DomainOther             Domain = "other"
)

// Source identifies the catalog a record was discovered in.
type Source string

const (
	SourceCivitai     Source = "civitai"
	SourceArchiveFeed Source = "archive-feed"
	SourceProvider    Source = "provider"
)

// License captures the usage terms attached to a model.
type License struct {
	Name                string `json:"name"`
	Type                string `json:"type"` // "open", "restricted", "proprietary"
	CommercialUse       bool   `json:"commercial_use"`
	AttributionRequired bool   `json:"attribution_required"`
	ShareAlike          bool   `json:"share_alike"`
	Copyleft            bool   `json:"copyleft"`
}

// Hosting describes how a model can be consumed.
type Hosting struct {
	WeightsAvailable  bool `json:"weights_available"`
	APIAvailable      bool `json:"api_available"`
	OnPremiseFriendly bool `json:"on_premise_friendly"`
}

// Price is one entry in a record's ordered pricing list.
type Price struct {
	Unit string          `json:"unit"` // e.g. "prompt_token", "completion_token", "image"
	USD  decimal.Decimal `json:"usd"`
}

// ModelRecord is the canonical shape every source is normalized into.
// ID is source-namespaced and unique within a merged collection.
type ModelRecord struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Provider          string     `json:"provider"`
	Domain            Domain     `json:"domain"`
	Source            Source     `json:"source"`
	URL               string     `json:"url"`
	Repo              *string    `json:"repo,omitempty"`
	Description       string     `json:"description"`
	License           License    `json:"license"`
	Tags              []string   `json:"tags,omitempty"`
	Hosting           Hosting    `json:"hosting"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ReleaseDate       *time.Time `json:"release_date,omitempty"`
	Parameters        string     `json:"parameters,omitempty"`     // e.g. "70B"
	ContextWindow     int        `json:"context_window,omitempty"` // tokens
	Pricing           []Price    `json:"pricing,omitempty"`
	Downloads         *int       `json:"downloads,omitempty"`
	Provenance        string     `json:"provenance,omitempty"`
	UsageRestrictions []string   `json:"usage_restrictions,omitempty"`
}

// HasTag reports whether the record carries the given tag (case-insensitive).
func (r *ModelRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag appends a tag unless it is already present. Tags behave as a set.
func (r *ModelRecord) AddTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" || r.HasTag(tag) {
		return
	}
	r.Tags = append(r.Tags, tag)
}

// FetchResult partitions one source's records. A record appears in exactly one
// of the two lists.
type FetchResult struct {
	Complete []ModelRecord `json:"complete"`
	Flagged  []ModelRecord `json:"flagged"`
}

// SyncSummary holds the derived counts of one merge pass.
type SyncSummary struct {
	Found      int `json:"found"`
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Flagged    int `json:"flagged"`
	Duplicates int `json:"duplicates"`
}
