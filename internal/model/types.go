package model

// Chunk — сохранённый фрагмент документа.
type Chunk struct {
	ID       int64   `json:"id"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// Record — пара (текст, embedding) перед вставкой в хранилище.
type Record struct {
	Content   string
	Embedding []float32
}

// IngestResult describes one completed upload.
type IngestResult struct {
	DocumentID string
	Filename   string
	IDs        []int64
}

type QueryRequest struct {
	Prompt string `json:"prompt"`
	TopK   *int   `json:"top_k,omitempty"`
}

type QueryResponse struct {
	Results []string `json:"results"`
}

type AskResponse struct {
	Answer  string   `json:"answer"`
	Results []string `json:"results"`
}

type UploadResponse struct {
	Message string  `json:"message"`
	ID      int64   `json:"id"`
	IDs     []int64 `json:"ids"`
	Chunks  int     `json:"chunks"`
}

type VectorCreate struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

type VectorRead struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Chunk   *int   `json:"chunk,omitempty"`
}

// Contents returns chunk texts in order.
func Contents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
