package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemID_PointID(t *testing.T) {
	tests := []struct {
		id      ItemID
		want    uint64
		wantErr bool
	}{
		{"1", 1, false},
		{"0", 0, false},
		{" 42 ", 42, false},
		{"18446744073709551615", 18446744073709551615, false},
		{"", 0, true},
		{"   ", 0, true},
		{"abc", 0, true},
		{"-3", 0, true},
		{"1.5", 0, true},
		{"18446744073709551616", 0, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			got, err := tt.id.PointID()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemIDFromPoint(t *testing.T) {
	assert.Equal(t, ItemID("7"), ItemIDFromPoint(7))

	id, err := ItemIDFromPoint(123456).PointID()
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), id)
}
