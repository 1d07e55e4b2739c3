package ai

import "context"

// EmbeddingService binds a client to one embedding model endpoint.
type EmbeddingService struct {
	client *Client
	cfg    EmbeddingConfig
}

func NewEmbeddingService(client *Client, cfg EmbeddingConfig) *EmbeddingService {
	return &EmbeddingService{client: client, cfg: cfg}
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.client.Embed(ctx, s.cfg, text)
}

func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.client.EmbedBatch(ctx, s.cfg, texts)
}

// RerankService binds a client to one rerank model endpoint.
type RerankService struct {
	client *Client
	cfg    RerankConfig
}

func NewRerankService(client *Client, cfg RerankConfig) *RerankService {
	return &RerankService{client: client, cfg: cfg}
}

func (s *RerankService) Score(ctx context.Context, question, passage string) (float64, error) {
	return s.client.Score(ctx, s.cfg, question, passage)
}

// ChatService binds a client to one chat model endpoint.
type ChatService struct {
	client *Client
	cfg    ChatConfig
}

func NewChatService(client *Client, cfg ChatConfig) *ChatService {
	return &ChatService{client: client, cfg: cfg}
}

func (s *ChatService) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return s.client.Complete(ctx, s.cfg, messages)
}
