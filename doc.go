// Package clusterkit is an embedded vector search and clustering toolkit.
//
// The root package provides Index, a concurrency-safe approximate
// nearest-neighbor index with label and metadata bookkeeping, backed by an
// HNSW graph. Indexes persist to local files or to a blob store and can be
// reloaded without retraining.
//
// Subpackages:
//
//   - embedder: graph-based dimensionality reduction with out-of-sample
//     transforms and model persistence.
//   - clustering: K-means with K-means++ seeding, plus glue for external
//     density-based clusterers.
//   - metric, matrix: distance kernels and matrix validation shared by the
//     pipelines.
//   - blobstore, persist, codec: pluggable storage backends and the
//     self-describing compressed record format used for persistence.
package clusterkit
