// Package sqlite stores vectors in a local SQLite database and answers
// queries with brute-force cosine similarity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

const schema = `CREATE TABLE IF NOT EXISTS vectors (
    namespace TEXT NOT NULL,
    id TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    vector BLOB NOT NULL,
    metadata TEXT,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_vectors_doc ON vectors(namespace, doc_id);
`

// Storage is a vectorstore.Index backed by SQLite.
type Storage struct {
	conn *sql.DB
}

var _ vectorstore.Index = (*Storage)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Storage, error) {
	if path == "" {
		return nil, domain.Configurationf("sqlite vector store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers instead of surfacing SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Storage{conn: conn}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.conn.Close()
}

func (s *Storage) Upsert(ctx context.Context, namespace string, vectors [][]float32, metas []domain.RAGMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := vectorstore.ValidateUpsert(namespace, vectors, metas); err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (namespace, id, doc_id, vector, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, id) DO UPDATE SET
			doc_id = excluded.doc_id,
			vector = excluded.vector,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, m := range metas {
		meta, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		id := vectorstore.EntryID(m.DocID, m.ChunkIndex)
		if _, err := stmt.ExecContext(ctx, namespace, id, m.DocID, serializeVector(vectors[i]), string(meta)); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.RAGMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	rows, err := s.conn.QueryContext(ctx, `SELECT id, vector, metadata FROM vectors WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var results []domain.RAGMatch
	for rows.Next() {
		var (
			id          string
			vectorBytes []byte
			metaText    sql.NullString
		)
		if err := rows.Scan(&id, &vectorBytes, &metaText); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, domain.RAGMatch{
			ID:       id,
			Score:    vectorstore.Cosine(deserializeVector(vectorBytes), vector),
			Metadata: decodeMetadata(metaText),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) DeleteDocument(ctx context.Context, namespace, docID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ? AND doc_id = ?`, namespace, docID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	return nil
}

func decodeMetadata(text sql.NullString) *domain.RAGMetadata {
	if !text.Valid || text.String == "" {
		return nil
	}
	var m domain.RAGMetadata
	if err := json.Unmarshal([]byte(text.String), &m); err != nil {
		return nil
	}
	return &m
}

func serializeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
