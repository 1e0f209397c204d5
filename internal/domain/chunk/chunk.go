package chunk

import (
	"maps"
	"strconv"
)

// Metadata keys the splitter adds on top of caller metadata.
const (
	MetaDocumentID  = "document_id"
	MetaChunkIndex  = "chunk_index"
	MetaTokenCount  = "token_count"
	MetaTotalChunks = "total_chunks"
)

// Chunk is a contiguous slice of a source document's text.
// Chunks of one document have contiguous indices starting at 0.
type Chunk struct {
	DocumentID string
	Index      int
	Content    string
	TokenCount int
	Metadata   map[string]string
}

// EstimateTokens approximates the token count of s (4 characters per token, minimum 1).
func EstimateTokens(s string) int {
	return max(1, runeLen(s)/CharsPerToken)
}

// SplitDocument chunks text and enriches every passage with index, token estimate
// and a copy of metadata. The document id is taken from metadata["document_id"].
func (s *Splitter) SplitDocument(text string, metadata map[string]string) []Chunk {
	passages := s.Split(text)
	if len(passages) == 0 {
		return nil
	}

	out := make([]Chunk, len(passages))
	for i, content := range passages {
		tokens := EstimateTokens(content)

		meta := make(map[string]string, len(metadata)+3)
		maps.Copy(meta, metadata)
		meta[MetaChunkIndex] = strconv.Itoa(i)
		meta[MetaTokenCount] = strconv.Itoa(tokens)
		meta[MetaTotalChunks] = strconv.Itoa(len(passages))

		out[i] = Chunk{
			DocumentID: metadata[MetaDocumentID],
			Index:      i,
			Content:    content,
			TokenCount: tokens,
			Metadata:   meta,
		}
	}
	return out
}
