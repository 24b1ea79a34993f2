// Package docstore stores named JSON documents.
//
// A document is addressed by a Ref ("name:tag") and is always read and
// written whole. Both the session registry and image descriptors live here.
//
// Backends:
//   - FileStore: one file per ref, atomic rename on write
//   - ImageStore: the Comment field of an image, written by commit
//   - RedisStore: one string key per ref
//   - PostgresStore: one row per ref in desklab_documents
//   - MemoryStore: in-process map for tests
//
// Image descriptors go through ReadMetadata, which never fails and falls
// back to DefaultMetadata.
package docstore
