package services

import (
	"context"
	"fmt"

	defaultef "github.com/amikos-tech/chroma-go/pkg/embeddings/default_ef"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/itish2003/studyrag/config"
)

// Embedder turns text into vectors. ModelID is stamped into the index so that
// a subject can't be searched with a different model than it was built with.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// NewEmbedder builds the embedder selected by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = logger.Named("embedder")
	logger.Info("creating embedder", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))

	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model)
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model)
	case "minilm":
		return NewMiniLMEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// OllamaEmbedder embeds through a local Ollama server.
type OllamaEmbedder struct {
	llm   *ollama.LLM
	model string
}

func NewOllamaEmbedder(baseURL, model string) (*OllamaEmbedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaEmbedder{llm: llm, model: model}, nil
}

func (e *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return firstVector(e.EmbedDocuments(ctx, []string{text}))
}

func (e *OllamaEmbedder) ModelID() string { return "ollama/" + e.model }

// OpenAIEmbedder embeds through any OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(model),
	}
}

func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return firstVector(e.EmbedDocuments(ctx, []string{text}))
}

func (e *OpenAIEmbedder) ModelID() string { return "openai/" + string(e.model) }

// GeminiEmbedder embeds with the Gemini API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: taskType})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return firstVector(e.embed(ctx, []string{text}, "RETRIEVAL_QUERY"))
}

func (e *GeminiEmbedder) ModelID() string { return "gemini/" + e.model }

// MiniLMEmbedder runs all-MiniLM-L6-v2 in-process through chroma-go's default
// embedding function. The ONNX runtime and model are downloaded on first use.
type MiniLMEmbedder struct {
	ef      *defaultef.DefaultEmbeddingFunction
	closeFn func() error
}

func NewMiniLMEmbedder() (*MiniLMEmbedder, error) {
	ef, closeFn, err := defaultef.NewDefaultEmbeddingFunction()
	if err != nil {
		return nil, fmt.Errorf("failed to load default embedding function: %w", err)
	}
	return &MiniLMEmbedder{ef: ef, closeFn: closeFn}, nil
}

func (e *MiniLMEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embs, err := e.ef.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("minilm embedding: %w", err)
	}
	out := make([][]float32, len(embs))
	for i, emb := range embs {
		out[i] = emb.ContentAsFloat32()
	}
	return out, nil
}

func (e *MiniLMEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return firstVector(e.EmbedDocuments(ctx, []string{text}))
}

func (e *MiniLMEmbedder) ModelID() string { return "minilm/all-MiniLM-L6-v2" }

// Close releases the ONNX runtime.
func (e *MiniLMEmbedder) Close() error {
	if e.closeFn == nil {
		return nil
	}
	return e.closeFn()
}

func firstVector(vecs [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return vecs[0], nil
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client, make sure GEMINI_API_KEY is set: %w", err)
	}
	return client, nil
}
