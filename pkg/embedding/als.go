package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

// ALSConfig contains configuration for the ALS graph embedder.
type ALSConfig struct {
	// Dimensions is the size of the item factor vectors.
	Dimensions int

	// Iterations is the number of alternating passes.
	Iterations int

	// Regularization is the L2 penalty on both factor matrices.
	Regularization float64

	// Alpha scales edge weights into confidences: c = 1 + alpha * w.
	Alpha float64

	// Workers is the number of goroutines solving factor rows.
	Workers int
}

// DefaultALSConfig returns default ALS configuration.
func DefaultALSConfig() ALSConfig {
	return ALSConfig{
		Dimensions:     64,
		Iterations:     15,
		Regularization: 0.01,
		Alpha:          40.0,
		Workers:        4,
	}
}

// ALSEmbedder embeds items of the weighted bipartite user-item graph with
// implicit-feedback alternating least squares (Hu, Koren, Volinsky 2008).
// Item factor rows are the item vectors. Items whose edges all carry a
// non-positive weight are not placed by the model and get a zero vector.
//
// Initialisation is deterministic, so the same interactions always produce
// the same vectors.
type ALSEmbedder struct {
	config ALSConfig
	log    zerolog.Logger
}

var _ GraphEmbedder = (*ALSEmbedder)(nil)

// NewALSEmbedder creates an ALS embedder, filling zero fields from DefaultALSConfig.
func NewALSEmbedder(cfg ALSConfig) *ALSEmbedder {
	def := DefaultALSConfig()
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = def.Regularization
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = def.Alpha
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &ALSEmbedder{config: cfg, log: logging.Component("embedding")}
}

// Dimensions returns the factor size.
func (a *ALSEmbedder) Dimensions() int {
	return a.config.Dimensions
}

// EmbedGraph trains on the interactions and returns one vector per item.
func (a *ALSEmbedder) EmbedGraph(ctx context.Context, interactions []models.Interaction) (models.EmbeddingMap, error) {
	g := buildGraph(interactions)
	out := make(models.EmbeddingMap, len(g.items))
	if len(g.items) == 0 {
		return out, nil
	}

	k := a.config.Dimensions
	if g.edges == 0 {
		for _, id := range g.items {
			out[id] = make([]float32, k)
		}
		return out, nil
	}

	X := initFactors(len(g.users), k)
	Y := initFactors(len(g.items), k)
	lambda := a.config.Regularization

	for iter := 0; iter < a.config.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("graph embedding cancelled: %w", err)
		}
		a.solve(X, Y, g.userItems, lambda)
		a.solve(Y, X, g.itemUsers, lambda)
	}

	for i, id := range g.items {
		vec := make([]float32, k)
		if len(g.itemUsers[i]) > 0 {
			for f := 0; f < k; f++ {
				vec[f] = float32(Y[i][f])
			}
		}
		out[id] = vec
	}

	a.log.Debug().
		Int("users", len(g.users)).
		Int("items", len(g.items)).
		Int("dimensions", k).
		Msg("Trained graph embeddings")
	return out, nil
}

// edge is one non-zero entry of a row of the confidence matrix
type edge struct {
	col    int
	weight float64
}

// graph is the sparse confidence matrix in both orientations. Rows are sorted
// by column so that floating point sums run in a fixed order.
type graph struct {
	users     []int64
	items     []models.ItemID
	userItems [][]edge // user row -> item edges
	itemUsers [][]edge // item row -> user edges
	edges     int
}

// buildGraph indexes users and items in sorted order so row assignment does not
// depend on input order. Duplicate edges keep the largest weight.
func buildGraph(interactions []models.Interaction) graph {
	userSet := make(map[int64]bool)
	itemSet := make(map[models.ItemID]bool)
	for _, in := range interactions {
		userSet[in.UserID] = true
		itemSet[in.ItemID] = true
	}

	var g graph
	for u := range userSet {
		g.users = append(g.users, u)
	}
	for i := range itemSet {
		g.items = append(g.items, i)
	}
	sort.Slice(g.users, func(i, j int) bool { return g.users[i] < g.users[j] })
	sort.Slice(g.items, func(i, j int) bool { return g.items[i] < g.items[j] })

	userRow := make(map[int64]int, len(g.users))
	for i, u := range g.users {
		userRow[u] = i
	}
	itemRow := make(map[models.ItemID]int, len(g.items))
	for i, id := range g.items {
		itemRow[id] = i
	}

	weights := make(map[[2]int]float64)
	for _, in := range interactions {
		if in.Weight <= 0 {
			continue
		}
		key := [2]int{userRow[in.UserID], itemRow[in.ItemID]}
		if in.Weight > weights[key] {
			weights[key] = in.Weight
		}
	}

	g.userItems = make([][]edge, len(g.users))
	g.itemUsers = make([][]edge, len(g.items))
	for key, w := range weights {
		u, i := key[0], key[1]
		g.userItems[u] = append(g.userItems[u], edge{col: i, weight: w})
		g.itemUsers[i] = append(g.itemUsers[i], edge{col: u, weight: w})
	}
	for _, row := range g.userItems {
		sort.Slice(row, func(a, b int) bool { return row[a].col < row[b].col })
	}
	for _, row := range g.itemUsers {
		sort.Slice(row, func(a, b int) bool { return row[a].col < row[b].col })
	}
	g.edges = len(weights)
	return g
}

func initFactors(rows, k int) [][]float64 {
	m := make([][]float64, rows)
	for r := range m {
		m[r] = make([]float64, k)
		for f := 0; f < k; f++ {
			m[r][f] = 0.1 * (float64((r*k+f*7+1)%1000)/1000.0 - 0.5)
		}
	}
	return m
}

// solve recomputes every row of target holding other fixed:
// target_r = (O'O + O' (C_r - I) O + lambda I)^-1 O' C_r p_r
func (a *ALSEmbedder) solve(target, other [][]float64, edges [][]edge, lambda float64) {
	k := a.config.Dimensions

	OtO := make([][]float64, k)
	for f := range OtO {
		OtO[f] = make([]float64, k)
	}
	for _, row := range other {
		for f1 := 0; f1 < k; f1++ {
			for f2 := f1; f2 < k; f2++ {
				OtO[f1][f2] += row[f1] * row[f2]
			}
		}
	}
	for f1 := 0; f1 < k; f1++ {
		for f2 := 0; f2 < f1; f2++ {
			OtO[f1][f2] = OtO[f2][f1]
		}
	}

	var wg sync.WaitGroup
	chunk := (len(target) + a.config.Workers - 1) / a.config.Workers
	for start := 0; start < len(target); start += chunk {
		end := min(start+chunk, len(target))
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			for r := from; r < to; r++ {
				target[r] = a.solveRow(edges[r], other, OtO, lambda)
			}
		}(start, end)
	}
	wg.Wait()
}

func (a *ALSEmbedder) solveRow(edges []edge, other, OtO [][]float64, lambda float64) []float64 {
	k := a.config.Dimensions

	A := make([][]float64, k)
	for f := range A {
		A[f] = make([]float64, k)
		copy(A[f], OtO[f])
		A[f][f] += lambda
	}

	b := make([]float64, k)
	for _, e := range edges {
		conf := 1.0 + a.config.Alpha*e.weight
		o := other[e.col]
		for f1 := 0; f1 < k; f1++ {
			for f2 := 0; f2 < k; f2++ {
				A[f1][f2] += (conf - 1.0) * o[f1] * o[f2]
			}
			b[f1] += conf * o[f1]
		}
	}

	return choleskySolve(A, b)
}

// choleskySolve solves A x = b for symmetric positive definite A.
func choleskySolve(A [][]float64, b []float64) []float64 {
	n := len(b)
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for p := 0; p < j; p++ {
				sum -= L[i][p] * L[j][p]
			}
			if i == j {
				if sum <= 0 {
					sum = 1e-10
				}
				L[i][i] = math.Sqrt(sum)
			} else {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	// L y = b
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for p := 0; p < i; p++ {
			sum -= L[i][p] * y[p]
		}
		y[i] = sum / L[i][i]
	}

	// L' x = y
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for p := i + 1; p < n; p++ {
			sum -= L[p][i] * x[p]
		}
		x[i] = sum / L[i][i]
	}
	return x
}
