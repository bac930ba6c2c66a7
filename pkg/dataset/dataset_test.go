package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

func TestCollectionName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"jobs.csv", "jobs"},
		{"jobs.v2.csv", "jobs.v2"},
		{"data/jobs.csv", "jobs"},
		{`C:\uploads\movies.txt`, "movies"},
		{"noext", "noext"},
		{".hidden", ".hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := CollectionName(tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectionName_Empty(t *testing.T) {
	for _, name := range []string{"", "   ", "/"} {
		_, err := CollectionName(name)
		require.Error(t, err, "filename %q", name)
		assert.True(t, core.IsValidation(err))
	}
}

func TestReadInteractions(t *testing.T) {
	in := "user,item,weight\n1,10,3\n2,11\n\n3, 12 ,0.5\n"

	got, err := ReadInteractions(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []models.Interaction{
		{UserID: 1, ItemID: "10", Weight: 3},
		{UserID: 2, ItemID: "11", Weight: 1},
		{UserID: 3, ItemID: "12", Weight: 0.5},
	}, got)
}

func TestReadInteractions_HeaderOnly(t *testing.T) {
	got, err := ReadInteractions(strings.NewReader("user,item,weight\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadInteractions_Malformed(t *testing.T) {
	tests := map[string]string{
		"too few columns": "user,item\n1\n",
		"bad user":        "user,item\nx,10\n",
		"bad item":        "user,item\n1,abc\n",
		"bad weight":      "user,item,weight\n1,10,heavy\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadInteractions(strings.NewReader(in))
			require.Error(t, err)
			assert.True(t, core.IsValidation(err))
		})
	}
}

func TestReadItems(t *testing.T) {
	in := "id,title,description\n" +
		"1,Engineer,<p>Writes Go</p>\n" +
		"2,\"Analyst, Senior\",\"Reads, then writes\"\n" +
		"3,Chef,cooks,bakes\n"

	got, err := ReadItems(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, models.ItemRecord{ID: "1", Title: "Engineer", Description: "<p>Writes Go</p>"}, got[0])
	assert.Equal(t, "Analyst, Senior", got[1].Title)
	assert.Equal(t, "Reads, then writes", got[1].Description)
	assert.Equal(t, "cooks,bakes", got[2].Description)
}

func TestReadItems_Malformed(t *testing.T) {
	_, err := ReadItems(strings.NewReader("id,title,description\n1,only-title\n"))
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	_, err = ReadItems(strings.NewReader("id,title,description\nx,t,d\n"))
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}
