package vectorstore

import (
	"context"
	"fmt"
	"math"

	"docqa/internal/domain"
)

const DefaultTopK = 5

// Index persists chunk embeddings per namespace and answers similarity
// queries within one namespace. Implementations perform a single attempt per
// call; retries belong to the caller.
type Index interface {
	// Upsert writes one entry per (vector, metadata) pair. Entry ids derive
	// from metadata, so writing the same document twice overwrites.
	Upsert(ctx context.Context, namespace string, vectors [][]float32, metas []domain.RAGMetadata) error

	// Query returns the topK nearest entries in namespace, most similar
	// first, in the order the backend produced them.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.RAGMatch, error)

	// DeleteDocument removes every entry of docID in namespace.
	DeleteDocument(ctx context.Context, namespace, docID string) error
}

// EntrySeparator joins the document id and chunk part of an entry id.
const EntrySeparator = "::"

// EntryID is the durable identifier of a chunk's vector entry.
func EntryID(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s%schunk-%d", docID, EntrySeparator, chunkIndex)
}

// ValidateUpsert checks the shared Upsert preconditions.
func ValidateUpsert(namespace string, vectors [][]float32, metas []domain.RAGMetadata) error {
	if namespace == "" {
		return domain.InvalidParametersf("namespace is required")
	}
	if len(vectors) == 0 {
		return domain.InvalidParametersf("no vectors to upsert")
	}
	if len(vectors) != len(metas) {
		return domain.InvalidParametersf("vectors and metadata length mismatch: %d != %d", len(vectors), len(metas))
	}
	for i, m := range metas {
		if m.DocID == "" {
			return domain.InvalidParametersf("metadata %d has no docId", i)
		}
		if len(vectors[i]) == 0 {
			return domain.InvalidParametersf("vector %d is empty", i)
		}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
