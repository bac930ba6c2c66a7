package models

// Distance is the similarity metric of a collection
type Distance string

const (
	// DistanceCosine is the only metric collections are created with
	DistanceCosine Distance = "cosine"
)

// Collection describes a named, schema-bound set of points
type Collection struct {
	Name       string   `json:"name"`
	VectorSize uint64   `json:"vector_size"`
	Distance   Distance `json:"distance"`
	PointCount uint64   `json:"point_count"`
}

// ScoredPoint is a nearest-neighbour hit returned by the index
type ScoredPoint struct {
	ID      uint64
	Score   float32
	Payload map[string]string
}

// StoredPoint is a point read back from the index. Payload keys are raw so that
// callers can detect missing fields.
type StoredPoint struct {
	ID      uint64
	Vector  []float32
	Payload map[string]string
}

// SimilarItem is one entry of a similarity search response
type SimilarItem struct {
	ID          ItemID  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Score       float32 `json:"score"`
}

// SampledItem is one entry of a random sample response
type SampledItem struct {
	ID          ItemID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
