package processor

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"pdf-qa-be/pkg/embedding"
)

// ErrHandleReleased guards against use-after-release. The session store's
// lease discipline makes this unreachable in normal operation.
var ErrHandleReleased = errors.New("index handle has been released")

// Chunk is one retrievable slice of the document. Page is 1-indexed for
// citations, regardless of how the upstream extractor numbers pages.
type Chunk struct {
	Text string
	Page int
}

// IndexHandle is an immutable in-memory vector index over one document's
// chunks. Exactly one owner at a time; ownership transfers to the session
// store on install, and the store releases it exactly once.
type IndexHandle struct {
	id        string
	pageCount int
	chunks    []Chunk
	vectors   [][]float32 // unit-normalized, parallel to chunks
	embedder  embedding.Provider
	released  atomic.Bool
}

func (h *IndexHandle) ID() string      { return h.id }
func (h *IndexHandle) PageCount() int  { return h.pageCount }
func (h *IndexHandle) ChunkCount() int { return len(h.chunks) }
func (h *IndexHandle) Released() bool  { return h.released.Load() }

// Release drops the index data. Idempotent; callable exactly once
// effectively, any further calls are no-ops.
func (h *IndexHandle) Release() {
	if h.released.Swap(true) {
		return
	}
	h.chunks = nil
	h.vectors = nil
}

type scoredChunk struct {
	chunk Chunk
	score float32
}

// Search embeds the query and returns the top k chunks by cosine similarity.
// Vectors are unit length so similarity is a plain dot product.
func (h *IndexHandle) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if h.released.Load() {
		return nil, ErrHandleReleased
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 4
	}

	res, err := h.embedder.Generate(query, embedding.TaskQuery)
	if err != nil {
		return nil, err
	}
	qv := res.Values

	scored := make([]scoredChunk, 0, len(h.chunks))
	for i, c := range h.chunks {
		scored = append(scored, scoredChunk{chunk: c, score: dot(qv, h.vectors[i])})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k > len(scored) {
		k = len(scored)
	}
	out := make([]Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = scored[i].chunk
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
