package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/ports"
)

// ChatUseCase runs one question/answer exchange per call and keeps a bounded
// per-session history. Resolution order: knowledge-graph lookup, substring
// fallback for configured technical terms, hybrid retrieval + generation.
type ChatUseCase struct {
	retrieval ports.RetrievalFacade
	generator ports.AnswerGenerator
	store     ports.CorpusStore
	kg        ports.KnowledgeGraph // nil when the capability is absent

	fallbackTerms []string
	maxExchanges  int
	logger        *slog.Logger

	mu       sync.Mutex
	sessions map[string][]domain.ChatMessage
}

func NewChatUseCase(
	retrieval ports.RetrievalFacade,
	generator ports.AnswerGenerator,
	store ports.CorpusStore,
	kg ports.KnowledgeGraph,
	fallbackTerms []string,
	maxExchanges int,
	logger *slog.Logger,
) *ChatUseCase {
	if maxExchanges <= 0 {
		maxExchanges = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		retrieval:     retrieval,
		generator:     generator,
		store:         store,
		kg:            kg,
		fallbackTerms: fallbackTerms,
		maxExchanges:  maxExchanges,
		logger:        logger,
		sessions:      make(map[string][]domain.ChatMessage),
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, sessionID, message string) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		return uc.history(sessionID), nil
	}

	reply := uc.resolve(ctx, message)

	uc.mu.Lock()
	history := append(uc.sessions[sessionID],
		domain.ChatMessage{Role: domain.RoleUser, Content: message, Timestamp: time.Now().UTC()},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: reply, Timestamp: time.Now().UTC()},
	)
	// keep the most recent exchanges only, two messages per exchange
	if maxMsgs := uc.maxExchanges * 2; len(history) > maxMsgs {
		history = append([]domain.ChatMessage(nil), history[len(history)-maxMsgs:]...)
	}
	uc.sessions[sessionID] = history
	uc.mu.Unlock()

	return uc.history(sessionID), nil
}

func (uc *ChatUseCase) resolve(ctx context.Context, message string) string {
	if uc.kg != nil {
		answer, err := uc.kg.Lookup(ctx, message)
		if err != nil {
			uc.logger.Warn("knowledge graph lookup failed", "error", err)
		} else if answer != "" {
			uc.logger.Info("knowledge graph hit", "query", message)
			return "Knowledge graph: " + answer
		}
	}

	chunks := uc.substringFallback(ctx, message)
	if chunks == nil {
		chunks = uc.retrieval.Retrieve(ctx, message)
	}

	answer, err := uc.generator.GenerateAnswer(ctx, message, chunks)
	if err != nil {
		uc.logger.Error("answer generation failed", "error", err, "query", message)
		return fmt.Sprintf("Error generating response: %v", err)
	}
	return answer
}

// substringFallback short-circuits retrieval for queries about formulas and
// similar technical literals that term-based ranking handles poorly: any
// chunk containing a configured term is returned verbatim. Returns nil when
// the query mentions no configured term.
func (uc *ChatUseCase) substringFallback(ctx context.Context, message string) []domain.RetrievedChunk {
	if len(uc.fallbackTerms) == 0 {
		return nil
	}

	lowered := strings.ToLower(message)
	triggered := false
	for _, term := range uc.fallbackTerms {
		if strings.Contains(lowered, strings.ToLower(term)) {
			triggered = true
			break
		}
	}
	if !triggered {
		return nil
	}

	matches := make([]domain.RetrievedChunk, 0, uc.maxExchanges)
	for i, chunk := range uc.store.AllText(ctx) {
		for _, term := range uc.fallbackTerms {
			if strings.Contains(chunk, term) {
				matches = append(matches, domain.RetrievedChunk{ChunkIndex: i, Text: chunk})
				break
			}
		}
		if len(matches) >= uc.maxExchanges {
			break
		}
	}
	uc.logger.Info("substring fallback triggered", "query", message, "matches", len(matches))
	return matches
}

// ClearSessions drops all chat history, used alongside corpus clearing.
func (uc *ChatUseCase) ClearSessions() {
	uc.mu.Lock()
	uc.sessions = make(map[string][]domain.ChatMessage)
	uc.mu.Unlock()
}

func (uc *ChatUseCase) history(sessionID string) []domain.ChatMessage {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return append([]domain.ChatMessage(nil), uc.sessions[sessionID]...)
}
