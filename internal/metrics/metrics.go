package metrics

import (
	"expvar"
)

var (
	// SessionsCreated counts lexical sessions created
	SessionsCreated = expvar.NewInt("sessions_created_total")

	// SessionsEvicted counts sessions removed by TTL, capacity or explicit delete
	SessionsEvicted = expvar.NewInt("sessions_evicted_total")

	// SessionQueries counts lexical retrievals
	SessionQueries = expvar.NewInt("session_queries_total")

	// DocumentsPublished counts documents written to the vector index
	DocumentsPublished = expvar.NewInt("documents_published_total")

	// ChunksUpserted counts vector index entries written
	ChunksUpserted = expvar.NewInt("chunks_upserted_total")

	// NamespaceQueries counts vector index retrievals
	NamespaceQueries = expvar.NewInt("namespace_queries_total")

	// RemoteErrors counts failed calls to external services
	RemoteErrors = expvar.NewInt("remote_errors_total")

	// Retries counts retry attempts made by the orchestrator
	Retries = expvar.NewInt("retries_total")

	// ExtractionsTruncated counts extractions cut short by their time budget
	ExtractionsTruncated = expvar.NewInt("extractions_truncated_total")
)
