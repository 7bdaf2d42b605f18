// Package models defines request and response types for the Kotaeru API.
package models

// AskRequest is the input for answering a question against the indexed corpus.
// Provider selects the generation backend; APIKey and Model override the
// backend's environment credential and default model when set.
type AskRequest struct {
	Question string `json:"question"`
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

// AskResponse carries the generated answer.
type AskResponse struct {
	Answer string `json:"answer"`
}

// UploadResponse is returned after a successful document ingestion.
type UploadResponse struct {
	Message     string `json:"message"`
	DocumentID  string `json:"document_id"`
	ChunksAdded int    `json:"chunks_added"`
}

// StatusResponse reports index and configuration state.
type StatusResponse struct {
	Passages        int           `json:"passages"`
	VectorIndexSize int           `json:"vector_index_size"`
	Config          *StatusConfig `json:"config,omitempty"`
}

// StatusConfig echoes the effective retrieval configuration.
type StatusConfig struct {
	EmbeddingProvider   string  `json:"embedding_provider"`
	EmbeddingModel      string  `json:"embedding_model"`
	EmbeddingDimensions int     `json:"embedding_dimensions"`
	ChunkSize           int     `json:"chunk_size"`
	OverlapParagraphs   int     `json:"overlap_paragraphs"`
	TopK                int     `json:"top_k"`
	MinScore            float64 `json:"min_score"`
	DefaultProvider     string  `json:"default_provider"`
	VectorIndexPath     string  `json:"vector_index_path,omitempty"`
	PassageDBPath       string  `json:"passage_db_path,omitempty"`
}
