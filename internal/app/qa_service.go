package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ragbase/internal/ai"
	"ragbase/internal/config"
	"ragbase/internal/metrics"
	"ragbase/internal/model"
	"ragbase/internal/repository"
)

// NoAnswerText is returned verbatim when recall finds nothing. The generator
// is not called in that case.
const NoAnswerText = "未找到相关信息"

const systemPrompt = "你是企业知识库智能助手，请严格根据提供的资料内容回答用户问题。" +
	"如资料中未提及，请回复「未找到相关信息」，不要编造答案。" +
	"如有多条信息请分点展示，答案后请注明引用的资料出处（如文档名、页码、段落号）。"

// Citation points an answer back at a stored chunk.
type Citation struct {
	DocumentName string  `json:"document_name"`
	PageNum      *int    `json:"page_num,omitempty"`
	ParagraphNum *int    `json:"paragraph_num,omitempty"`
	Preview      string  `json:"preview"`
	Score        float64 `json:"score"`
	Distance     float64 `json:"distance"`
}

// HistoryTurn is one past question/answer pair, oldest first in the request.
type HistoryTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnswerResult is the grounded answer with its supporting citations.
type AnswerResult struct {
	Answer  string     `json:"answer"`
	Sources []Citation `json:"sources"`
}

// BatchAnswerItem is one question's outcome inside a batch. Error is set and
// Result nil when the question failed.
type BatchAnswerItem struct {
	Question string        `json:"question"`
	Result   *AnswerResult `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// SearchHit is one keyword-search match with a bounded preview.
type SearchHit struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	PageNum      *int   `json:"page_num,omitempty"`
	ParagraphNum *int   `json:"paragraph_num,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	Preview      string `json:"preview"`
}

// QAService answers questions over the ingested chunks: vector recall,
// cross-encoder rerank, then grounded generation.
type QAService struct {
	cfg      *config.Config
	embedder Embedder
	reranker Reranker
	gen      Generator
	repo     ChunkStore
	logger   *zap.Logger
}

func NewQAService(
	cfg *config.Config,
	embedder Embedder,
	reranker Reranker,
	gen Generator,
	repo ChunkStore,
	logger *zap.Logger,
) *QAService {
	return &QAService{
		cfg:      cfg,
		embedder: embedder,
		reranker: reranker,
		gen:      gen,
		repo:     repo,
		logger:   logger,
	}
}

// Answer runs the full pipeline for one question. When recall is empty it
// returns NoAnswerText with no sources and never calls the generator.
func (s *QAService) Answer(ctx context.Context, question string, history []HistoryTurn) (*AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if max := s.cfg.Retrieval.QuestionMaxLength; len([]rune(question)) > max {
		return nil, fmt.Errorf("%w: question exceeds %d characters", ErrInvalidInput, max)
	}

	result, err := s.answer(ctx, question, history)
	if err != nil {
		metrics.QAFailures.Inc()
		return nil, err
	}
	metrics.QuestionsAnswered.Inc()
	return result, nil
}

func (s *QAService) answer(ctx context.Context, question string, history []HistoryTurn) (*AnswerResult, error) {
	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question failed: %w", err)
	}

	recalled, err := s.repo.NearestByEmbedding(queryVec, s.cfg.Retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector recall failed: %w", err)
	}
	if len(recalled) == 0 {
		return &AnswerResult{Answer: NoAnswerText, Sources: []Citation{}}, nil
	}

	selected := s.rerank(ctx, question, recalled)

	messages := s.buildMessages(question, history, selected)
	raw, err := s.gen.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate answer failed: %w", err)
	}

	sources := make([]Citation, 0, len(selected))
	for _, cand := range selected {
		sources = append(sources, Citation{
			DocumentName: cand.chunk.DocumentName,
			PageNum:      cand.chunk.PageNum,
			ParagraphNum: cand.chunk.ParagraphNum,
			Preview:      truncateRunes(cand.chunk.Content, s.cfg.Retrieval.ContentPreviewLength),
			Score:        cand.score,
			Distance:     cand.distance,
		})
	}
	return &AnswerResult{Answer: strings.TrimSpace(raw), Sources: sources}, nil
}

// BatchAnswer answers up to MaxBatchQuestions questions independently. An
// oversized batch is rejected before any question is processed. One failed
// question does not stop the rest.
func (s *QAService) BatchAnswer(ctx context.Context, questions []string) ([]BatchAnswerItem, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidInput)
	}
	if max := s.cfg.Retrieval.MaxBatchQuestions; len(questions) > max {
		return nil, fmt.Errorf("%w: %d questions, limit %d", ErrBatchTooLarge, len(questions), max)
	}

	items := make([]BatchAnswerItem, 0, len(questions))
	for _, q := range questions {
		item := BatchAnswerItem{Question: q}
		result, err := s.Answer(ctx, q, nil)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Result = result
		}
		items = append(items, item)
	}
	return items, nil
}

// SearchContent finds chunks containing the query string, case-insensitive.
func (s *QAService) SearchContent(query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is empty", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = s.cfg.Retrieval.SearchDefaultLimit
	}

	chunks, err := s.repo.SearchContent(query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(chunks))
	for i := range chunks {
		hits = append(hits, SearchHit{
			DocumentID:   chunks[i].DocumentID,
			DocumentName: chunks[i].DocumentName,
			PageNum:      chunks[i].PageNum,
			ParagraphNum: chunks[i].ParagraphNum,
			ChunkIndex:   chunks[i].ChunkIndex,
			Preview:      truncateRunes(chunks[i].Content, s.cfg.Retrieval.SearchPreviewLength),
		})
	}
	return hits, nil
}

type rankedChunk struct {
	chunk    model.DocumentChunk
	score    float64
	distance float64
}

// rerank scores every recalled chunk with the cross-encoder and keeps the
// TopN best, descending. The sort is stable so equal scores preserve recall
// order. If any scoring call fails, the recall order is kept as-is.
func (s *QAService) rerank(ctx context.Context, question string, recalled []repository.ChunkWithDistance) []rankedChunk {
	ranked := make([]rankedChunk, 0, len(recalled))
	for _, cand := range recalled {
		score, err := s.reranker.Score(ctx, question, cand.Chunk.Content)
		if err != nil {
			s.logger.Warn("rerank scoring failed, keeping recall order", zap.Error(err))
			ranked = ranked[:0]
			for _, c := range recalled {
				ranked = append(ranked, rankedChunk{chunk: c.Chunk, distance: c.Distance})
			}
			return capRanked(ranked, s.cfg.Retrieval.TopN)
		}
		ranked = append(ranked, rankedChunk{chunk: cand.Chunk, score: score, distance: cand.Distance})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return capRanked(ranked, s.cfg.Retrieval.TopN)
}

func capRanked(ranked []rankedChunk, n int) []rankedChunk {
	if n > 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

// buildMessages assembles the grounded prompt: budgeted history, numbered
// context passages with their source attribution, then the question.
func (s *QAService) buildMessages(question string, history []HistoryTurn, selected []rankedChunk) []ai.ChatMessage {
	var sb strings.Builder
	if kept := s.budgetHistory(history); len(kept) > 0 {
		sb.WriteString("【历史对话】\n")
		for _, turn := range kept {
			sb.WriteString("用户：" + turn.Question + "\n")
			sb.WriteString("助手：" + turn.Answer + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("【参考资料】\n")
	for i, cand := range selected {
		fmt.Fprintf(&sb, "%d. %s\n   出处：%s，页码：%s，段落：%s\n",
			i+1,
			cand.chunk.Content,
			cand.chunk.DocumentName,
			fmtIntPtr(cand.chunk.PageNum),
			fmtIntPtr(cand.chunk.ParagraphNum))
	}

	sb.WriteString("\n【用户问题】\n" + question)
	return []ai.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

func fmtIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// budgetHistory keeps whole turns, scanning newest first until the round
// limit or token budget is hit, and returns them in chronological order.
// Token cost is estimated as characters divided by TokenEstimateRatio.
func (s *QAService) budgetHistory(history []HistoryTurn) []HistoryTurn {
	rounds := s.cfg.Retrieval.HistoryRounds
	budget := float64(s.cfg.Retrieval.MaxHistoryTokens)
	ratio := s.cfg.Retrieval.TokenEstimateRatio
	if ratio <= 0 {
		ratio = 2.0
	}

	var kept []HistoryTurn
	used := 0.0
	for i := len(history) - 1; i >= 0 && len(kept) < rounds; i-- {
		turn := history[i]
		cost := float64(len([]rune(turn.Question))+len([]rune(turn.Answer))) / ratio
		if used+cost > budget {
			break
		}
		used += cost
		kept = append(kept, turn)
	}
	// Reverse back to chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
