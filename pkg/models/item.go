package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemID is the external identifier of an item. It must always be convertible
// to a non-negative integer, which is used as the point id in the index.
type ItemID string

// PointID converts the identifier to the integer point id used by the vector index
func (id ItemID) PointID() (uint64, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return 0, fmt.Errorf("empty item id")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("item id %q is not a non-negative integer", string(id))
	}
	return n, nil
}

// ItemIDFromPoint converts a point id back to its canonical item identifier
func ItemIDFromPoint(id uint64) ItemID {
	return ItemID(strconv.FormatUint(id, 10))
}

// EmbeddingMap maps an item to one fixed-length vector produced by a single source
type EmbeddingMap map[ItemID][]float32

// FusedVectorMap maps an item to its text||graph vector
type FusedVectorMap map[ItemID][]float32

// ItemRecord is one row of an uploaded item text file
type ItemRecord struct {
	ID          ItemID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Interaction is one weighted user-item edge of an uploaded interaction file
type Interaction struct {
	UserID int64   `json:"user_id"`
	ItemID ItemID  `json:"item_id"`
	Weight float64 `json:"weight"`
}

// Payload is the display record stored alongside each point.
// Every point carries both fields, empty when no text data was ingested.
type Payload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Point is a single stored (id, vector, payload) record
type Point struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload Payload   `json:"payload"`
}
