package catalog

// Merger folds incoming batches into a running collection, collapsing exact-id
// and fuzzy-name duplicates into a single record per real-world model.
type Merger struct {
	similar SimilarityFunc
}

// MergerOption customizes a Merger.
type MergerOption func(*Merger)

// WithSimilarity replaces the fuzzy name-matching policy.
func WithSimilarity(fn SimilarityFunc) MergerOption {
	return func(m *Merger) {
		if fn != nil {
			m.similar = fn
		}
	}
}

func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{similar: DefaultSimilarity}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge applies one incoming batch to the existing collection and returns the
// merged collection plus the derived counts. Records collapsed against an
// entry that arrived in the same batch count as duplicates; records collapsed
// against a pre-existing entry count as updated. Merging the same batch twice
// yields the same collection and zero added on the repeat pass.
func (m *Merger) Merge(existing []ModelRecord, incoming []ModelRecord) ([]ModelRecord, SyncSummary) {
	summary := SyncSummary{Found: len(incoming)}

	merged := make([]ModelRecord, len(existing))
	copy(merged, existing)

	byID := make(map[string]int, len(merged))
	for i := range merged {
		byID[merged[i].ID] = i
	}
	fromBatch := make(map[int]bool)

	for _, rec := range incoming {
		idx, ok := byID[rec.ID]
		if !ok {
			idx, ok = m.findFuzzy(merged, rec)
		}

		if ok {
			mergeInto(&merged[idx], rec)
			if fromBatch[idx] {
				summary.Duplicates++
			} else {
				summary.Updated++
			}
			continue
		}

		merged = append(merged, rec)
		i := len(merged) - 1
		byID[rec.ID] = i
		fromBatch[i] = true
		summary.Added++
	}

	return merged, summary
}

// findFuzzy scans for an existing record with the same normalized provider and
// a similar normalized name.
func (m *Merger) findFuzzy(collection []ModelRecord, rec ModelRecord) (int, bool) {
	name := NormalizeName(rec.Name)
	provider := NormalizeName(rec.Provider)
	if name == "" {
		return 0, false
	}
	for i := range collection {
		if NormalizeName(collection[i].Provider) != provider {
			continue
		}
		if m.similar(NormalizeName(collection[i].Name), name) {
			return i, true
		}
	}
	return 0, false
}

// mergeInto folds src into dst. Scalars keep whichever value is non-empty or,
// when both are set, the more recently updated one. List fields are unioned.
func mergeInto(dst *ModelRecord, src ModelRecord) {
	srcNewer := src.UpdatedAt.After(dst.UpdatedAt)

	dst.Name = pickString(dst.Name, src.Name, srcNewer)
	dst.Provider = pickString(dst.Provider, src.Provider, srcNewer)
	dst.URL = pickString(dst.URL, src.URL, srcNewer)
	dst.Description = pickString(dst.Description, src.Description, srcNewer)
	dst.Parameters = pickString(dst.Parameters, src.Parameters, srcNewer)
	dst.Provenance = pickString(dst.Provenance, src.Provenance, srcNewer)
	dst.Domain = Domain(pickString(string(dst.Domain), string(src.Domain), srcNewer))
	dst.Source = Source(pickString(string(dst.Source), string(src.Source), srcNewer))

	if dst.ContextWindow == 0 || (srcNewer && src.ContextWindow > 0) {
		if src.ContextWindow > 0 {
			dst.ContextWindow = src.ContextWindow
		}
	}
	if dst.Repo == nil || (srcNewer && src.Repo != nil) {
		if src.Repo != nil {
			dst.Repo = src.Repo
		}
	}
	if dst.ReleaseDate == nil || (srcNewer && src.ReleaseDate != nil) {
		if src.ReleaseDate != nil {
			dst.ReleaseDate = src.ReleaseDate
		}
	}
	if dst.Downloads == nil || (srcNewer && src.Downloads != nil) {
		if src.Downloads != nil {
			dst.Downloads = src.Downloads
		}
	}
	if len(dst.Pricing) == 0 || (srcNewer && len(src.Pricing) > 0) {
		if len(src.Pricing) > 0 {
			dst.Pricing = src.Pricing
		}
	}
	if dst.License.Name == "" || (srcNewer && src.License.Name != "") {
		if src.License.Name != "" {
			dst.License = src.License
		}
	}

	// Hosting capabilities accumulate: any source observing a capability wins.
	dst.Hosting.WeightsAvailable = dst.Hosting.WeightsAvailable || src.Hosting.WeightsAvailable
	dst.Hosting.APIAvailable = dst.Hosting.APIAvailable || src.Hosting.APIAvailable
	dst.Hosting.OnPremiseFriendly = dst.Hosting.OnPremiseFriendly || src.Hosting.OnPremiseFriendly

	for _, tag := range src.Tags {
		dst.AddTag(tag)
	}
	dst.UsageRestrictions = unionStrings(dst.UsageRestrictions, src.UsageRestrictions)

	if srcNewer {
		dst.UpdatedAt = src.UpdatedAt
	}
}

func pickString(dst, src string, srcNewer bool) string {
	if dst == "" {
		return src
	}
	if srcNewer && src != "" {
		return src
	}
	return dst
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := a
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
