package match

import "errors"

var (
	// ErrInvalidQuery means the search request carried no usable signal:
	// no project description and no structured field. Client error, not
	// retryable.
	ErrInvalidQuery = errors.New("no usable search signal supplied")

	// ErrEmbeddingUnavailable means the embedding provider failed or timed
	// out. The whole match request is safe to retry; this layer does not
	// retry on its own.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrVectorStoreUnavailable means the similarity search or scroll call
	// failed. Same retry semantics as ErrEmbeddingUnavailable.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
)
