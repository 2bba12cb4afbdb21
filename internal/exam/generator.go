package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ModelClient is the generative model dependency, injected rather than held
// as a process-wide singleton.
type ModelClient interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// StatusSink receives generation progress. Implementations must be safe for
// concurrent use; the generator calls SubjectDone from subject workers.
type StatusSink interface {
	Begin(ctx context.Context, examID uuid.UUID, plan Plan)
	SubjectDone(ctx context.Context, examID uuid.UUID, subject string, generated, placeholders int)
	Complete(ctx context.Context, examID uuid.UUID, total, placeholders int)
}

// GeneratorOptions tunes the generation pipeline. Zero values fall back to
// production defaults.
type GeneratorOptions struct {
	ChunkSize          int           // questions per model call, default 5
	MaxAttempts        int           // attempts per chunk, default 3
	CallTimeout        time.Duration // per model call, default 60s
	ChunkDelay         time.Duration // between chunks of one subject, default 2s
	SubjectConcurrency int           // parallel subject workers, default 3
}

func (o GeneratorOptions) withDefaults() GeneratorOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
	if o.ChunkDelay < 0 {
		o.ChunkDelay = 0
	} else if o.ChunkDelay == 0 {
		o.ChunkDelay = 2 * time.Second
	}
	if o.SubjectConcurrency <= 0 {
		o.SubjectConcurrency = 3
	}
	return o
}

// GenerationResult carries the finished question list plus how many of the
// questions are synthetic placeholders, so callers can apply their own
// quality policy instead of degradation being invisible.
type GenerationResult struct {
	Questions        []Question
	PlaceholderCount int
}

// Generator produces a complete question list for an exam configuration.
type Generator struct {
	model  ModelClient
	opts   GeneratorOptions
	status StatusSink
	logger zerolog.Logger
}

// NewGenerator creates a question generator. status may be nil.
func NewGenerator(model ModelClient, opts GeneratorOptions, status StatusSink, logger zerolog.Logger) *Generator {
	return &Generator{
		model:  model,
		opts:   opts.withDefaults(),
		status: status,
		logger: logger.With().Str("component", "question_generator").Logger(),
	}
}

// GenerateExamQuestions fans out one generation task per planned subject and
// reconciles the merged output to exactly cfg.QuestionCount questions.
// Transient model failures never surface as errors here; the only error
// returned is context cancellation.
func (g *Generator) GenerateExamQuestions(ctx context.Context, examID uuid.UUID, cfg Config) (GenerationResult, error) {
	start := time.Now()
	plan := PlanSubjects(cfg)

	g.logger.Info().
		Str("exam_id", examID.String()).
		Str("exam_type", cfg.ExamType).
		Int("requested", cfg.QuestionCount).
		Interface("distribution", plan.Counts()).
		Msg("starting question generation")

	if g.status != nil {
		g.status.Begin(ctx, examID, plan)
	}

	// Bounded fan-out: one worker per subject, at most SubjectConcurrency
	// in flight. Subject failures are isolated; only cancellation of the
	// request context tears the group down.
	type subjectOutput struct {
		questions    []Question
		placeholders int
	}
	outputs := make([]subjectOutput, len(plan))
	sem := make(chan struct{}, g.opts.SubjectConcurrency)
	var wg sync.WaitGroup

	for i, quota := range plan {
		wg.Add(1)
		go func(i int, quota SubjectQuota) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			qs, ph := g.generateSubject(ctx, examID, quota.Subject, quota.Count, cfg)
			outputs[i] = subjectOutput{questions: qs, placeholders: ph}

			if g.status != nil {
				g.status.SubjectDone(ctx, examID, quota.Subject, len(qs), ph)
			}
		}(i, quota)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return GenerationResult{}, err
	}

	var all []Question
	placeholders := 0
	for _, out := range outputs {
		all = append(all, out.questions...)
		placeholders += out.placeholders
	}

	// Quantity reconciliation: the length invariant holds unconditionally.
	if missing := cfg.QuestionCount - len(all); missing > 0 {
		g.logger.Warn().
			Str("exam_id", examID.String()).
			Int("missing", missing).
			Msg("topping up shortfall with placeholder questions")
		for i := 0; i < missing; i++ {
			all = append(all, topUpPlaceholder(len(all)+1, cfg))
			placeholders++
			placeholderQuestionsTotal.Inc()
		}
	} else if len(all) > cfg.QuestionCount {
		all = all[:cfg.QuestionCount]
	}

	generationDuration.Observe(time.Since(start).Seconds())
	if g.status != nil {
		g.status.Complete(ctx, examID, len(all), placeholders)
	}

	g.logger.Info().
		Str("exam_id", examID.String()).
		Int("total", len(all)).
		Int("placeholders", placeholders).
		Dur("elapsed", time.Since(start)).
		Msg("question generation finished")

	return GenerationResult{Questions: all, PlaceholderCount: placeholders}, nil
}

// generateSubject produces count questions for one subject, in sequential
// chunks of at most ChunkSize with the inter-chunk delay between them.
func (g *Generator) generateSubject(ctx context.Context, examID uuid.UUID, subject string, count int, cfg Config) ([]Question, int) {
	logger := g.logger.With().
		Str("exam_id", examID.String()).
		Str("subject", subject).
		Logger()

	var chunks []int
	for remaining := count; remaining > 0; remaining -= g.opts.ChunkSize {
		size := g.opts.ChunkSize
		if remaining < size {
			size = remaining
		}
		chunks = append(chunks, size)
	}
	logger.Info().Int("count", count).Int("chunks", len(chunks)).Msg("generating subject questions")

	var questions []Question
	placeholders := 0
	for i, chunkCount := range chunks {
		qs, ph := g.generateChunk(ctx, logger, subject, chunkCount, len(questions), cfg)
		questions = append(questions, qs...)
		placeholders += ph

		// Fixed delay between chunks of the same subject keeps us under the
		// upstream rate limit. Not applied after the last chunk.
		if i < len(chunks)-1 {
			select {
			case <-time.After(g.opts.ChunkDelay):
			case <-ctx.Done():
				return questions, placeholders
			}
		}
	}

	logger.Info().Int("generated", len(questions)).Int("placeholders", placeholders).Msg("subject generation done")
	return questions, placeholders
}

// generateChunk runs the retry-then-placeholder loop for a single chunk.
// It never fails: after MaxAttempts the chunk degrades to exactly count
// placeholder questions.
func (g *Generator) generateChunk(ctx context.Context, logger zerolog.Logger, subject string, count, generatedSoFar int, cfg Config) ([]Question, int) {
	prompt := BuildPrompt(subject, count, cfg)

	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		raw, err := g.model.GenerateContent(callCtx, prompt)
		cancel()

		if err != nil {
			chunkAttemptsTotal.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Int("attempt", attempt).Msg("model call failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		questions, err := parseChunk(raw, logger)
		if err != nil {
			chunkAttemptsTotal.WithLabelValues("parse_error").Inc()
			logger.Warn().Err(err).Int("attempt", attempt).Msg("model response unparseable")
			continue
		}

		chunkAttemptsTotal.WithLabelValues("success").Inc()
		if len(questions) != count {
			logger.Warn().
				Int("expected", count).
				Int("got", len(questions)).
				Msg("chunk returned unexpected question count")
		}
		return questions, 0
	}

	logger.Warn().Int("count", count).Msg("all attempts exhausted, substituting placeholder questions")
	fallback := make([]Question, 0, count)
	for j := 0; j < count; j++ {
		fallback = append(fallback, subjectPlaceholder(generatedSoFar+j+1, subject, cfg))
		placeholderQuestionsTotal.Inc()
	}
	return fallback, count
}

// parseChunk isolates and decodes the JSON body of a model response. Items
// that fail validation are dropped individually; only a missing or
// undecodable body fails the whole chunk.
func parseChunk(raw string, logger zerolog.Logger) ([]Question, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("decode questions payload: %w", err)
	}

	questions := make([]Question, 0, len(payload.Questions))
	for _, item := range payload.Questions {
		q, err := item.toQuestion()
		if err != nil {
			logger.Warn().Err(err).Msg("dropping malformed question item")
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// extractJSONObject strips markdown fencing and surrounding prose, returning
// the substring from the first '{' to the last '}'.
func extractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model response")
	}
	return text[start : end+1], nil
}

// rawQuestion is the untrusted wire shape. correct_index tolerates both
// numeric and string encodings.
type rawQuestion struct {
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	CorrectIndex  json.RawMessage `json:"correct_index"`
	CorrectAnswer string          `json:"correct_answer"`
	Solution      string          `json:"solution"`
	Difficulty    string          `json:"difficulty"`
	Subject       string          `json:"subject"`
	Topic         string          `json:"topic"`
	ExamType      string          `json:"exam_type"`
}

func (r rawQuestion) toQuestion() (Question, error) {
	if strings.TrimSpace(r.Question) == "" {
		return Question{}, fmt.Errorf("empty question text")
	}
	if len(r.Options) != 4 {
		return Question{}, fmt.Errorf("expected 4 options, got %d", len(r.Options))
	}
	idx, err := coerceIndex(r.CorrectIndex)
	if err != nil {
		return Question{}, err
	}
	if idx < 0 || idx > 3 {
		return Question{}, fmt.Errorf("correct_index %d out of range", idx)
	}

	topic := r.Topic
	if topic == "" {
		topic = "General"
	}

	return Question{
		ID:            uuid.NewString(),
		Question:      r.Question,
		Options:       r.Options,
		CorrectIndex:  idx,
		CorrectAnswer: r.CorrectAnswer,
		Solution:      r.Solution,
		Difficulty:    r.Difficulty,
		Subject:       r.Subject,
		Topic:         topic,
		ExamType:      r.ExamType,
	}, nil
}

func coerceIndex(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing correct_index")
	}
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	idx, err := strconv.Atoi(text)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return 0, fmt.Errorf("coerce correct_index %q: %w", text, err)
		}
		idx = int(f)
	}
	return idx, nil
}

// subjectPlaceholder builds the deterministic fallback question a failed
// chunk degrades to. The stem is lexically marked ("Sample ...") so degraded
// content stays detectable downstream.
func subjectPlaceholder(n int, subject string, cfg Config) Question {
	return Question{
		ID:       uuid.NewString(),
		Question: fmt.Sprintf("Sample %s question %d for %s", subject, n, cfg.ExamType),
		Options: []string{
			fmt.Sprintf("Option A for question %d", n),
			fmt.Sprintf("Option B for question %d", n),
			fmt.Sprintf("Option C for question %d", n),
			fmt.Sprintf("Option D for question %d", n),
		},
		CorrectIndex:  0,
		CorrectAnswer: "A",
		Solution:      fmt.Sprintf("This is a fallback question for %s.", subject),
		Difficulty:    cfg.Difficulty,
		Subject:       subject,
		Topic:         "General",
		ExamType:      cfg.ExamType,
	}
}

// topUpPlaceholder covers an orchestrator-level shortfall; the subject is
// the first configured one.
func topUpPlaceholder(n int, cfg Config) Question {
	return Question{
		ID:       uuid.NewString(),
		Question: fmt.Sprintf("Sample question %d for %s", n, cfg.ExamType),
		Options: []string{
			fmt.Sprintf("Option A for question %d", n),
			fmt.Sprintf("Option B for question %d", n),
			fmt.Sprintf("Option C for question %d", n),
			fmt.Sprintf("Option D for question %d", n),
		},
		CorrectIndex:  0,
		CorrectAnswer: "A",
		Solution:      "This is a fallback question.",
		Difficulty:    cfg.Difficulty,
		Subject:       cfg.Subjects[0],
		Topic:         "General",
		ExamType:      cfg.ExamType,
	}
}
