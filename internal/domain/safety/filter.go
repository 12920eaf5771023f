package safety

import (
	"fmt"
	"strings"

	"github.com/modelscout/modelscout/internal/domain/catalog"
)

// defaultBlocklist holds unambiguous explicit-content terms. Matching is
// case-insensitive substring over title and description; this stage is
// precision-first and makes no semantic judgment.
var defaultBlocklist = []string{
	"porn",
	"pornographic",
	"xxx",
	"hentai",
	"nsfw content",
	"explicit nudity",
	"sexually explicit",
	"erotica",
	"fetish",
	"loli",
	"shota",
	"gore",
	"bestiality",
}

// Filter is the lexical stage of content safety. When disabled, every record
// passes through as complete.
type Filter struct {
	enabled   bool
	blocklist []string
}

// FilterOption customizes a Filter.
type FilterOption func(*Filter)

// WithBlocklist replaces the default term list.
func WithBlocklist(terms []string) FilterOption {
	return func(f *Filter) { f.blocklist = terms }
}

// NewFilter builds the lexical filter.
func NewFilter(enabled bool, opts ...FilterOption) *Filter {
	f := &Filter{enabled: enabled, blocklist: defaultBlocklist}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Partition splits records into complete and flagged. A record lands in
// exactly one of the two lists.
func (f *Filter) Partition(records []catalog.ModelRecord) catalog.FetchResult {
	result := catalog.FetchResult{
		Complete: make([]catalog.ModelRecord, 0, len(records)),
		Flagged:  make([]catalog.ModelRecord, 0),
	}
	if !f.enabled {
		result.Complete = append(result.Complete, records...)
		return result
	}

	for _, r := range records {
		if term, hit := f.match(&r); hit {
			appendProvenance(&r, fmt.Sprintf("blocked-by: lexical term=%s", term))
			result.Flagged = append(result.Flagged, r)
			continue
		}
		result.Complete = append(result.Complete, r)
	}
	return result
}

// match reports the first blocklisted term found in the record's name or
// description.
func (f *Filter) match(r *catalog.ModelRecord) (string, bool) {
	haystack := strings.ToLower(r.Name + " " + r.Description)
	for _, term := range f.blocklist {
		if strings.Contains(haystack, term) {
			return term, true
		}
	}
	return "", false
}

func appendProvenance(r *catalog.ModelRecord, note string) {
	if r.Provenance == "" {
		r.Provenance = note
		return
	}
	r.Provenance = r.Provenance + "; " + note
}
