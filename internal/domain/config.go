package domain

// VectorConfig holds the default vectorization settings.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the default configuration tuned for BAAI/bge-large-en-v1.5.
// Documents are embedded without an instruction; queries get the BGE retrieval prefix.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:               "BAAI/bge-large-en-v1.5",
		Dimensions:          1024,
		DistanceMetric:      "cosine",
		Algorithm:           "hnsw",
		DocumentInstruction: "",
		QueryInstruction:    "Represent this sentence for searching relevant passages: ",
	}
}

// KeyPrefix is the default namespace for every key this service writes to Valkey.
const KeyPrefix = "kops:"
