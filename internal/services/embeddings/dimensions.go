package embeddings

// knownDimension maps common model identifiers to their native vector
// widths. Unknown models return 0; callers treat the width as discovered
// from the first response.
func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		// Requested at 1536 via the dimensions parameter.
		return 1536
	case "text-embedding-004", "text-embedding-005":
		return 768
	case "gemini-embedding-001":
		return 1536
	case "text-multilingual-embedding-002":
		return 768
	case "amazon.titan-embed-text-v1":
		return 1536
	case "amazon.titan-embed-text-v2:0":
		return 1024
	case "cohere.embed-english-v3", "cohere.embed-multilingual-v3":
		return 1024
	}
	return 0
}
