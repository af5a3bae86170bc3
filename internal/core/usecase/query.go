package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/ports"
)

// QueryUseCase answers a question over the ingested corpus: hybrid retrieval
// followed by grounded generation. Retrieval failure is not an error here;
// the generator is asked over zero references and answers accordingly.
type QueryUseCase struct {
	retrieval ports.RetrievalFacade
	generator ports.AnswerGenerator
}

func NewQueryUseCase(retrieval ports.RetrievalFacade, generator ports.AnswerGenerator) *QueryUseCase {
	return &QueryUseCase{retrieval: retrieval, generator: generator}
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	chunks := uc.retrieval.Retrieve(ctx, question)

	answerText, err := uc.generator.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: chunks,
	}, nil
}
