package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Engineer", CleanTitle("  a Engineer  "))
	assert.Equal(t, "Senior Engineer", CleanTitle("Senior Engineer"))
	assert.Equal(t, "", CleanTitle("   "))
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "Builds things", CleanDescription("<p>Builds things</p>"))
	assert.Equal(t, "Builds things", CleanDescription("x Builds&nbsp; things"))
	assert.Equal(t, "bold and plain", CleanDescription("<b>bold</b> and <i>plain</i>"))
}

func TestEmbeddingText(t *testing.T) {
	r := models.ItemRecord{ID: "1", Title: " Engineer ", Description: "<p>Go</p>"}
	assert.Equal(t, "Engineer | Go", EmbeddingText(r))
}

func TestBuild(t *testing.T) {
	records := []models.ItemRecord{
		{ID: "1", Title: "First", Description: "<p>one</p>"},
		{ID: "2", Title: "Second", Description: "two"},
		{ID: "1", Title: "Duplicate", Description: "ignored"},
	}

	p, err := Build("1", records)
	require.NoError(t, err)
	assert.Equal(t, models.Payload{Title: "First", Description: "one"}, p)

	p, err = Build("2", records)
	require.NoError(t, err)
	assert.Equal(t, "Second", p.Title)
}

func TestBuild_MissingRecord(t *testing.T) {
	_, err := Build("9", []models.ItemRecord{{ID: "1", Title: "t", Description: "d"}})
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
	assert.Contains(t, err.Error(), "9")
}

func TestIndex_FirstOccurrenceWins(t *testing.T) {
	idx := NewIndex([]models.ItemRecord{
		{ID: "1", Title: "First", Description: "a"},
		{ID: "1", Title: "Second", Description: "b"},
	})

	p, err := idx.Build("1")
	require.NoError(t, err)
	assert.Equal(t, "First", p.Title)

	_, err = idx.Build("2")
	assert.True(t, core.IsNotFound(err))
}
