// Package payload turns raw item text rows into the display payload stored with each point.
package payload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

var (
	// leadingMarker matches a single word character followed by whitespace at the
	// start of a field, the bullet-like prefix some exports put before the text
	leadingMarker = regexp.MustCompile(`^\w\s`)

	// htmlTag matches any tag, non-greedy
	htmlTag = regexp.MustCompile(`<.*?>`)
)

// CleanTitle trims surrounding whitespace and drops a leading marker
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	return leadingMarker.ReplaceAllString(s, "")
}

// CleanDescription strips HTML tags, a leading marker and literal &nbsp; entities
func CleanDescription(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	s = leadingMarker.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "&nbsp;", "")
}

// EmbeddingText is the text fed to the text encoder for one record
func EmbeddingText(r models.ItemRecord) string {
	return CleanTitle(r.Title) + " | " + CleanDescription(r.Description)
}

// Build returns the cleaned payload of the first record whose id equals id.
// A missing record is a not-found error: the interaction and text files disagree.
func Build(id models.ItemID, records []models.ItemRecord) (models.Payload, error) {
	for _, r := range records {
		if r.ID == id {
			return models.Payload{
				Title:       CleanTitle(r.Title),
				Description: CleanDescription(r.Description),
			}, nil
		}
	}
	return models.Payload{}, core.NotFound("build payload", "", string(id),
		fmt.Errorf("no text record for item %s", id))
}

// Index builds an id lookup over records, keeping the first occurrence of each id.
// Ingestion uses it to avoid a linear scan per point.
type Index map[models.ItemID]models.ItemRecord

// NewIndex indexes records by id
func NewIndex(records []models.ItemRecord) Index {
	idx := make(Index, len(records))
	for _, r := range records {
		if _, ok := idx[r.ID]; !ok {
			idx[r.ID] = r
		}
	}
	return idx
}

// Build is the indexed equivalent of the package-level Build
func (idx Index) Build(id models.ItemID) (models.Payload, error) {
	r, ok := idx[id]
	if !ok {
		return models.Payload{}, core.NotFound("build payload", "", string(id),
			fmt.Errorf("no text record for item %s", id))
	}
	return Build(id, []models.ItemRecord{r})
}
