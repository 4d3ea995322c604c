package domain

// Metadata is the citation information carried from a source document onto
// every chunk cut from it. Empty strings mean the field is absent.
type Metadata struct {
	Title  string `json:"title,omitempty"`
	Source string `json:"source,omitempty"`
	Image  string `json:"image,omitempty"`
}

type Document struct {
	Content  string
	Metadata Metadata
}

type Chunk struct {
	Text     string
	Metadata Metadata
}

// VectorRecord pairs a chunk with its embedding.
type VectorRecord struct {
	Embedding []float32
	Chunk     Chunk
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Outcome records which branch of the query pipeline produced a response.
type Outcome int

const (
	OutcomeAnswered Outcome = iota
	OutcomeEmptyRetrieval
	OutcomeLowConfidence
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeEmptyRetrieval:
		return "empty_retrieval"
	case OutcomeLowConfidence:
		return "low_confidence"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	NoDocumentsText   = "No relevant documents found."
	LowConfidenceText = "The system couldn't find a confident answer. Please try rephrasing."
	FailureText       = "The system could not answer the question right now. Please try again later."
)

// AnswerResponse is the payload returned for a single question.
type AnswerResponse struct {
	Response string   `json:"response"`
	Links    []string `json:"links"`
	Images   []string `json:"images"`
	Outcome  Outcome  `json:"-"`
}

// NewCannedResponse builds a response with the given text and empty citation lists.
func NewCannedResponse(text string, outcome Outcome) AnswerResponse {
	return AnswerResponse{
		Response: text,
		Links:    []string{},
		Images:   []string{},
		Outcome:  outcome,
	}
}

// IndexInfo describes a persisted vector index.
type IndexInfo struct {
	SchemaVersion  int    `json:"schema_version"`
	Collection     string `json:"collection"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
	ChunkSize      int    `json:"chunk_size"`
	Overlap        int    `json:"overlap"`
	RecordCount    int    `json:"record_count"`
	BuiltAt        string `json:"built_at"`
}
