package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelscout/modelscout/internal/config"
	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/gateway"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
	"github.com/modelscout/modelscout/internal/utils/functional"
)

const (
	translationBatchSize = 25
	minMeaningfulLen     = 3
)

const translationSystemPrompt = `You translate AI model catalog metadata into English.
Given a JSON array of records with "id", "name" and "description", translate the
name and description of each into natural English. Respond with a single JSON
object mapping each id to {"name": "<translated>", "description": "<translated>"}.
Keep model version numbers and technical identifiers unchanged.`

// Completer is the completion surface the translator needs from the provider
// gateway.
type Completer interface {
	CompleteJSON(ctx context.Context, key string, cfg config.Provider, systemPrompt, userPrompt string) (map[string]any, error)
}

// Translator rewrites CJK names and descriptions into English, batching
// requests through a single text-completion provider. Without a provider it
// degrades to the deterministic local fallback.
type Translator struct {
	completer Completer
	key       string
	cfg       config.Provider
	hasTarget bool
}

// New builds a Translator bound to the first enabled provider in the
// directory, preferring one speaking the local protocol.
func New(completer Completer, directory *config.ProviderDirectory) *Translator {
	t := &Translator{completer: completer}
	if directory == nil {
		return t
	}

	enabled := directory.Enabled()
	if p, ok := functional.Find(enabled, func(p config.Provider) bool {
		return gateway.ResolveProtocol(p) == gateway.ProtocolLocal
	}); ok {
		t.key, t.cfg, t.hasTarget = p.Key, p, true
		return t
	}
	if len(enabled) > 0 {
		p := enabled[0]
		t.key, t.cfg, t.hasTarget = p.Key, p, true
	}
	return t
}

type translationItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Translate returns the records with CJK text rewritten. Records without CJK
// text, or already carrying the translated tag, pass through untouched.
func (t *Translator) Translate(ctx context.Context, records []catalog.ModelRecord) []catalog.ModelRecord {
	out := make([]catalog.ModelRecord, len(records))
	copy(out, records)

	var pending []int
	for i := range out {
		r := &out[i]
		if r.HasTag("translated") {
			continue
		}
		if ContainsCJK(r.Name) || ContainsCJK(r.Description) {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += translationBatchSize {
		if ctx.Err() != nil {
			return out
		}
		end := start + translationBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		t.translateBatch(ctx, out, pending[start:end])
	}
	return out
}

func (t *Translator) translateBatch(ctx context.Context, records []catalog.ModelRecord, indices []int) {
	log := logger.GetLogger()

	translations, err := t.requestBatch(ctx, records, indices)
	if err != nil {
		// Cancellation is not a translation failure: leave the batch
		// untouched so a later run can still attempt it.
		if ctx.Err() != nil || gateway.IsCancelled(err) {
			return
		}
		log.Warn().
			Int("batch_size", len(indices)).
			Err(err).
			Msg("translation batch failed, applying local fallback")
		for _, i := range indices {
			Fallback(&records[i])
		}
		return
	}

	for _, i := range indices {
		r := &records[i]
		tr, ok := translations[r.ID]
		if !ok {
			Fallback(r)
			continue
		}
		if tr.Name != "" {
			r.Name = tr.Name
		}
		if tr.Description != "" {
			r.Description = tr.Description
		}
		r.AddTag("translated")
	}
}

type translatedFields struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (t *Translator) requestBatch(ctx context.Context, records []catalog.ModelRecord, indices []int) (map[string]translatedFields, error) {
	if !t.hasTarget {
		return nil, fmt.Errorf("no translation provider configured")
	}

	items := make([]translationItem, len(indices))
	for n, i := range indices {
		r := records[i]
		items[n] = translationItem{ID: r.ID, Name: r.Name, Description: r.Description}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode translation batch: %w", err)
	}

	parsed, err := t.completer.CompleteJSON(ctx, t.key, t.cfg, translationSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	translations := make(map[string]translatedFields, len(parsed))
	for id, raw := range parsed {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var tr translatedFields
		tr.Name, _ = entry["name"].(string)
		tr.Description, _ = entry["description"].(string)
		translations[id] = tr
	}
	if len(translations) == 0 {
		return nil, fmt.Errorf("translation response carried no usable entries")
	}
	return translations, nil
}

// Fallback deterministically strips non-ASCII characters from the record's
// name and description. A name left too short to mean anything is replaced
// with a label derived from the record's domain. The record is tagged both
// translated and translation-fallback so downstream policy can tell a real
// translation from a degraded one.
func Fallback(r *catalog.ModelRecord) {
	name := stripNonASCII(r.Name)
	if len(name) < minMeaningfulLen {
		name = domainLabel(r.Domain)
	}
	r.Name = name

	r.Description = stripNonASCII(r.Description)

	r.AddTag("translated")
	r.AddTag("translation-fallback")
}

func stripNonASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func domainLabel(d catalog.Domain) string {
	switch d {
	case catalog.DomainLLM:
		return "Chinese Language Model"
	case catalog.DomainVLM:
		return "Chinese Vision-Language Model"
	case catalog.DomainVision:
		return "Chinese Vision Model"
	case catalog.DomainImageGen:
		return "Chinese Image Generation Model"
	case catalog.DomainVideoGen:
		return "Chinese Video Generation Model"
	case catalog.DomainAudio, catalog.DomainASR, catalog.DomainTTS:
		return "Chinese Audio Model"
	case catalog.DomainLoRA:
		return "Chinese LoRA"
	default:
		return "Chinese AI Model"
	}
}
