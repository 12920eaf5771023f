package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, name, provider string, updated time.Time) ModelRecord {
	return ModelRecord{
		ID:        id,
		Name:      name,
		Provider:  provider,
		Domain:    DomainImageGen,
		Source:    SourceCivitai,
		UpdatedAt: updated,
	}
}

func TestMergeAddsNewRecords(t *testing.T) {
	m := NewMerger()
	now := time.Now()

	merged, summary := m.Merge(nil, []ModelRecord{
		record("civitai:1", "FLUX.1 Pro", "black-forest-labs", now),
		record("civitai:2", "SDXL Turbo", "stability", now),
	})

	require.Len(t, merged, 2)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Duplicates)
}

func TestMergeIdempotence(t *testing.T) {
	m := NewMerger()
	now := time.Now()
	batch := []ModelRecord{
		record("civitai:1", "FLUX.1 Pro", "black-forest-labs", now),
		record("civitai:2", "SDXL Turbo", "stability", now),
	}

	first, _ := m.Merge(nil, batch)
	second, summary := m.Merge(first, batch)

	assert.Equal(t, 0, summary.Added)
	assert.Equal(t, len(first), len(second))
	assert.Equal(t, first, second)
}

func TestMergeFuzzyNameVariantsCollapse(t *testing.T) {
	m := NewMerger()
	now := time.Now()

	// Same provider, naming variants of the same model, different ids.
	merged, summary := m.Merge(nil, []ModelRecord{
		record("civitai:10", "FLUX.1 Pro", "black-forest-labs", now),
		record("archive:77", "FLUX.1 [pro]", "black-forest-labs", now),
	})

	require.Len(t, merged, 1)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, "civitai:10", merged[0].ID)
}

func TestMergeFuzzyAcrossBatches(t *testing.T) {
	m := NewMerger()
	now := time.Now()

	existing, _ := m.Merge(nil, []ModelRecord{
		record("civitai:10", "FLUX.1 Pro", "black-forest-labs", now),
	})
	merged, summary := m.Merge(existing, []ModelRecord{
		record("archive:77", "FLUX.1 [pro]", "black-forest-labs", now.Add(time.Hour)),
	})

	require.Len(t, merged, 1)
	assert.Equal(t, 0, summary.Added)
	assert.Equal(t, 1, summary.Updated)
}

func TestMergeDifferentProvidersDoNotCollapse(t *testing.T) {
	m := NewMerger()
	now := time.Now()

	merged, _ := m.Merge(nil, []ModelRecord{
		record("a:1", "FLUX.1 Pro", "black-forest-labs", now),
		record("b:1", "FLUX.1 Pro", "someone-else", now),
	})

	assert.Len(t, merged, 2)
}

func TestMergeScalarPreference(t *testing.T) {
	m := NewMerger()
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	base := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", older)
	base.Description = "original description"

	update := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", newer)
	update.Description = "refreshed description"
	update.Parameters = "12B"

	existing, _ := m.Merge(nil, []ModelRecord{base})
	merged, _ := m.Merge(existing, []ModelRecord{update})

	require.Len(t, merged, 1)
	assert.Equal(t, "refreshed description", merged[0].Description)
	assert.Equal(t, "12B", merged[0].Parameters)
	assert.Equal(t, newer, merged[0].UpdatedAt)
}

func TestMergeStaleBatchDoesNotOverwrite(t *testing.T) {
	m := NewMerger()
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	base := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", newer)
	base.Description = "current description"

	stale := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", older)
	stale.Description = "stale description"

	existing, _ := m.Merge(nil, []ModelRecord{base})
	merged, _ := m.Merge(existing, []ModelRecord{stale})

	assert.Equal(t, "current description", merged[0].Description)
	assert.Equal(t, newer, merged[0].UpdatedAt)
}

func TestMergeUnionsListFields(t *testing.T) {
	m := NewMerger()
	now := time.Now()

	a := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", now)
	a.Tags = []string{"style:realistic", "content:checkpoint"}
	a.UsageRestrictions = []string{"no-resale"}

	b := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", now)
	b.Tags = []string{"content:checkpoint", "base:flux"}
	b.UsageRestrictions = []string{"no-resale", "research-only"}

	existing, _ := m.Merge(nil, []ModelRecord{a})
	merged, _ := m.Merge(existing, []ModelRecord{b})

	require.Len(t, merged, 1)
	assert.ElementsMatch(t, []string{"style:realistic", "content:checkpoint", "base:flux"}, merged[0].Tags)
	assert.ElementsMatch(t, []string{"no-resale", "research-only"}, merged[0].UsageRestrictions)
}

func TestMergeFillsEmptyScalarsRegardlessOfAge(t *testing.T) {
	m := NewMerger()
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	base := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", newer)

	stale := record("civitai:1", "FLUX.1 Pro", "black-forest-labs", older)
	stale.Parameters = "12B"
	downloads := 4200
	stale.Downloads = &downloads

	existing, _ := m.Merge(nil, []ModelRecord{base})
	merged, _ := m.Merge(existing, []ModelRecord{stale})

	assert.Equal(t, "12B", merged[0].Parameters)
	require.NotNil(t, merged[0].Downloads)
	assert.Equal(t, 4200, *merged[0].Downloads)
}
