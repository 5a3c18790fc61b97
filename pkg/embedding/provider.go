package embedding

// TaskType hints let providers that distinguish document vs query embeddings
// (e.g. nomic task prefixes) pick the right mode. Providers may ignore it.
const (
	TaskDocument = "search_document"
	TaskQuery    = "search_query"
)

// Result holds one embedding vector, unit-normalized for cosine similarity.
type Result struct {
	Values []float32
}

// Provider defines the interface for generating text embeddings.
type Provider interface {
	Generate(text string, taskType string) (*Result, error)
}
