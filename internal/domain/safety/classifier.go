package safety

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelscout/modelscout/internal/config"
	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
	"github.com/modelscout/modelscout/internal/utils/functional"
)

const classifierBatchSize = 20

const classifierSystemPrompt = `You are a content-safety classifier for an AI model catalog.
Given a JSON array of records with "id", "name" and "description", decide for each
whether it advertises sexually explicit or otherwise unsafe content.
Respond with a single JSON object: {"flagged": ["<id>", ...]} listing only the
ids of unsafe records. Respond with {"flagged": []} when none are unsafe.`

// Completer is the completion surface the classifier needs from the provider
// gateway.
type Completer interface {
	CompleteJSON(ctx context.Context, key string, cfg config.Provider, systemPrompt, userPrompt string) (map[string]any, error)
}

// Classifier is the optional assisted stage. It re-examines records the
// lexical stage passed and moves LLM-flagged ones into the flagged list.
// Any batch-level failure leaves that batch's records untouched.
type Classifier struct {
	completer Completer
	key       string
	cfg       config.Provider
}

// NewClassifier builds an assisted classifier bound to one provider.
func NewClassifier(completer Completer, key string, cfg config.Provider) *Classifier {
	return &Classifier{completer: completer, key: key, cfg: cfg}
}

type classifierItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Refine re-partitions result.Complete through the LLM classifier, keeping
// already-flagged records as they are.
func (c *Classifier) Refine(ctx context.Context, result catalog.FetchResult) catalog.FetchResult {
	log := logger.GetLogger()
	refined := catalog.FetchResult{
		Complete: make([]catalog.ModelRecord, 0, len(result.Complete)),
		Flagged:  result.Flagged,
	}

	for start := 0; start < len(result.Complete); start += classifierBatchSize {
		end := start + classifierBatchSize
		if end > len(result.Complete) {
			end = len(result.Complete)
		}
		batch := result.Complete[start:end]

		flaggedIDs, err := c.classify(ctx, batch)
		if err != nil {
			// Classifier failure is not a reason to block records the
			// lexical stage already passed.
			log.Warn().
				Str("provider", c.key).
				Int("batch_size", len(batch)).
				Err(err).
				Msg("assisted classification failed, keeping batch as complete")
			refined.Complete = append(refined.Complete, batch...)
			continue
		}

		for _, r := range batch {
			if _, hit := flaggedIDs[r.ID]; hit {
				appendProvenance(&r, "blocked-by: classifier")
				refined.Flagged = append(refined.Flagged, r)
				continue
			}
			refined.Complete = append(refined.Complete, r)
		}
	}
	return refined
}

func (c *Classifier) classify(ctx context.Context, batch []catalog.ModelRecord) (map[string]struct{}, error) {
	items := functional.Map(batch, func(r catalog.ModelRecord) classifierItem {
		return classifierItem{ID: r.ID, Name: r.Name, Description: r.Description}
	})
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifier batch: %w", err)
	}

	parsed, err := c.completer.CompleteJSON(ctx, c.key, c.cfg, classifierSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	raw, ok := parsed["flagged"].([]any)
	if !ok {
		return nil, fmt.Errorf("classifier response missing flagged list")
	}
	flagged := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			flagged[id] = struct{}{}
		}
	}
	return flagged, nil
}
