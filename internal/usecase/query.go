package usecase

import (
	"context"
	"io"
	"log/slog"

	"virtualta/internal/domain"
	"virtualta/internal/logging"
	"virtualta/internal/port"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 6

// Stage names a step of answering one question. A question passes through
// the stages in order, never revisits one, and may stop early after
// StageRetrieved (nothing found) or StageGated (answer rejected).
type Stage string

const (
	StageReceived  Stage = "received"
	StageRetrieved Stage = "retrieved"
	StageGenerated Stage = "generated"
	StageGated     Stage = "gated"
	StageResponded Stage = "responded"
)

const previewLen = 300

// QueryUseCase answers questions against a read-only index. It keeps no
// state between calls and is safe for concurrent use.
type QueryUseCase struct {
	retriever port.Retriever
	answerer  *Answerer
	gate      *ConfidenceGate
	topK      int
	logger    *slog.Logger
}

func NewQueryUseCase(retriever port.Retriever, answerer *Answerer, gate *ConfidenceGate, topK int, logger *slog.Logger) *QueryUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if gate == nil {
		gate = NewConfidenceGate()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &QueryUseCase{
		retriever: retriever,
		answerer:  answerer,
		gate:      gate,
		topK:      topK,
		logger:    logger,
	}
}

// Ask runs one question through retrieval, generation, and the confidence
// gate. Errors are returned only for failed upstream calls; the two "no good
// answer" cases produce canned responses.
func (u *QueryUseCase) Ask(ctx context.Context, question string) (domain.AnswerResponse, error) {
	log := logging.FromContext(ctx, u.logger)
	log.DebugContext(ctx, "query stage", "stage", StageReceived)

	chunks, err := u.retriever.Search(ctx, question, u.topK)
	if err != nil {
		log.ErrorContext(ctx, "retrieval failed", "error", err)
		return domain.AnswerResponse{}, err
	}
	log.DebugContext(ctx, "query stage", "stage", StageRetrieved, "chunks", len(chunks))

	if len(chunks) == 0 {
		return respond(ctx, log, domain.NewCannedResponse(domain.NoDocumentsText, domain.OutcomeEmptyRetrieval)), nil
	}
	if log.Enabled(ctx, slog.LevelDebug) {
		for i, c := range chunks {
			log.DebugContext(ctx, "retrieved chunk", "rank", i+1, "score", c.Score, "preview", preview(c.Chunk.Text))
		}
	}

	answer, err := u.answerer.Generate(ctx, question, chunks)
	if err != nil {
		log.ErrorContext(ctx, "generation failed", "error", err)
		return domain.AnswerResponse{}, err
	}
	log.DebugContext(ctx, "query stage", "stage", StageGenerated)

	verdict := u.gate.Evaluate(answer)
	log.DebugContext(ctx, "query stage", "stage", StageGated, "accepted", verdict.Accepted, "phrase", verdict.Phrase)
	if !verdict.Accepted {
		return respond(ctx, log, domain.NewCannedResponse(domain.LowConfidenceText, domain.OutcomeLowConfidence)), nil
	}

	links, images := CollectCitations(chunks)
	return respond(ctx, log, domain.AnswerResponse{
		Response: verdict.Text,
		Links:    links,
		Images:   images,
		Outcome:  domain.OutcomeAnswered,
	}), nil
}

func respond(ctx context.Context, log *slog.Logger, resp domain.AnswerResponse) domain.AnswerResponse {
	log.DebugContext(ctx, "query stage", "stage", StageResponded, "outcome", resp.Outcome.String())
	return resp
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen])
}
