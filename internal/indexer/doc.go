// Package indexer ingests PDF documents.
//
// Each document passes through parse -> split -> embed -> store. Embedding
// happens before the storage transaction opens; the document row, its chunks
// and their embeddings are then written atomically. Re-ingesting the same
// (document ID, version) replaces the earlier copy, and a per-document lock
// rejects concurrent ingestion of one document ID.
//
// IngestFiles and IngestDirectory process many files with a bounded worker
// pool. One failing file is reported in Statistics.Failed without stopping
// the others.
package indexer
