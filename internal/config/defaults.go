package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kotaeru/data/index/vectors.bin"
	}
	if cfg.Storage.PassageDBPath == "" {
		cfg.Storage.PassageDBPath = "/usr/local/var/kotaeru/data/index/passages.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "huggingface"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 500
	}
	// OverlapParagraphs defaults to 1 when unset (nil); zero means no overlap.
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.MinScore == 0 {
		cfg.RAG.MinScore = 0.3
	}
	if cfg.RAG.DefaultProvider == "" {
		cfg.RAG.DefaultProvider = "huggingface"
	}
}
