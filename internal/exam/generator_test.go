package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubModel struct {
	mu       sync.Mutex
	calls    int
	generate func(call int, prompt string) (string, error)
}

func (s *stubModel) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.generate(call, prompt)
}

func (s *stubModel) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// chunkResponse fabricates a well-formed model reply with n questions.
func chunkResponse(subject string, n int) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{
			"question": "What is the value of constant %d in %s?",
			"options": ["1", "2", "3", "4"],
			"correct_index": %d,
			"correct_answer": "B",
			"solution": "Worked solution %d.",
			"difficulty": "Medium",
			"subject": %q,
			"topic": "Kinematics",
			"exam_type": "JEE Main"
		}`, i, subject, i%4, i, subject))
	}
	return fmt.Sprintf(`{"questions": [%s]}`, strings.Join(items, ","))
}

func testOptions() GeneratorOptions {
	return GeneratorOptions{
		ChunkSize:          5,
		MaxAttempts:        3,
		CallTimeout:        time.Second,
		ChunkDelay:         -1, // no inter-chunk sleep in tests
		SubjectConcurrency: 3,
	}
}

func testConfig() Config {
	return Config{
		ExamType:      "JEE Main",
		Subjects:      []string{"Physics", "Chemistry", "Mathematics"},
		QuestionCount: 30,
		Duration:      60,
		Difficulty:    DifficultyMedium,
	}
}

func TestGenerateExamQuestionsHappyPath(t *testing.T) {
	model := &stubModel{generate: func(_ int, prompt string) (string, error) {
		for _, subject := range []string{"Physics", "Chemistry", "Mathematics"} {
			if strings.Contains(prompt, subject) {
				return chunkResponse(subject, 5), nil
			}
		}
		return "", errors.New("unexpected prompt")
	}}
	gen := NewGenerator(model, testOptions(), nil, zerolog.Nop())

	result, err := gen.GenerateExamQuestions(context.Background(), uuid.New(), testConfig())

	assert.NoError(t, err)
	assert.Len(t, result.Questions, 30)
	assert.Equal(t, 0, result.PlaceholderCount)
	// 30 questions over 3 subjects in chunks of 5.
	assert.Equal(t, 6, model.Calls())

	bySubject := map[string]int{}
	for _, q := range result.Questions {
		bySubject[q.Subject]++
		assert.Len(t, q.Options, 4)
		assert.NotEmpty(t, q.ID)
	}
	assert.Equal(t, map[string]int{"Physics": 10, "Chemistry": 10, "Mathematics": 10}, bySubject)
}

func TestGenerateExamQuestionsFallsBackAfterExhaustedRetries(t *testing.T) {
	model := &stubModel{generate: func(_ int, _ string) (string, error) {
		return "", errors.New("upstream unavailable")
	}}
	cfg := testConfig()
	cfg.QuestionCount = 6
	gen := NewGenerator(model, testOptions(), nil, zerolog.Nop())

	result, err := gen.GenerateExamQuestions(context.Background(), uuid.New(), cfg)

	assert.NoError(t, err)
	assert.Len(t, result.Questions, 6)
	assert.Equal(t, 6, result.PlaceholderCount)
	// Every chunk exhausted all three attempts.
	assert.Equal(t, 3*3, model.Calls())

	for _, q := range result.Questions {
		assert.Contains(t, q.Question, "Sample")
		assert.Contains(t, q.Question, cfg.ExamType)
		assert.Contains(t, cfg.Subjects, q.Subject)
		assert.Equal(t, 0, q.CorrectIndex)
		assert.Equal(t, "A", q.CorrectAnswer)
		assert.Equal(t, cfg.Difficulty, q.Difficulty)
		assert.Equal(t, "General", q.Topic)
	}
}

func TestGenerateExamQuestionsTopsUpShortfall(t *testing.T) {
	// Model persistently under-delivers: 3 questions per chunk instead of 5.
	model := &stubModel{generate: func(_ int, prompt string) (string, error) {
		for _, subject := range []string{"Physics", "Chemistry", "Mathematics"} {
			if strings.Contains(prompt, subject) {
				return chunkResponse(subject, 3), nil
			}
		}
		return "", errors.New("unexpected prompt")
	}}
	cfg := testConfig()
	cfg.QuestionCount = 15
	gen := NewGenerator(model, testOptions(), nil, zerolog.Nop())

	result, err := gen.GenerateExamQuestions(context.Background(), uuid.New(), cfg)

	assert.NoError(t, err)
	assert.Len(t, result.Questions, 15)
	assert.Equal(t, 6, result.PlaceholderCount)

	topUps := 0
	for _, q := range result.Questions {
		if strings.Contains(q.Question, "Sample") {
			topUps++
			assert.Equal(t, cfg.Subjects[0], q.Subject)
		}
	}
	assert.Equal(t, 6, topUps)
}

func TestGenerateExamQuestionsTruncatesSurplus(t *testing.T) {
	model := &stubModel{generate: func(_ int, prompt string) (string, error) {
		for _, subject := range []string{"Physics", "Chemistry", "Mathematics"} {
			if strings.Contains(prompt, subject) {
				return chunkResponse(subject, 7), nil
			}
		}
		return "", errors.New("unexpected prompt")
	}}
	cfg := testConfig()
	cfg.QuestionCount = 15
	gen := NewGenerator(model, testOptions(), nil, zerolog.Nop())

	result, err := gen.GenerateExamQuestions(context.Background(), uuid.New(), cfg)

	assert.NoError(t, err)
	assert.Len(t, result.Questions, 15)
	assert.Equal(t, 0, result.PlaceholderCount)
}

func TestGenerateExamQuestionsRecoversOnRetry(t *testing.T) {
	model := &stubModel{generate: func(call int, prompt string) (string, error) {
		if call == 1 {
			return "", errors.New("transient failure")
		}
		return chunkResponse("Physics", 5), nil
	}}
	cfg := Config{
		ExamType:      "JEE Main",
		Subjects:      []string{"Physics"},
		QuestionCount: 5,
		Difficulty:    DifficultyMedium,
	}
	gen := NewGenerator(model, testOptions(), nil, zerolog.Nop())

	result, err := gen.GenerateExamQuestions(context.Background(), uuid.New(), cfg)

	assert.NoError(t, err)
	assert.Len(t, result.Questions, 5)
	assert.Equal(t, 0, result.PlaceholderCount)
	assert.Equal(t, 2, model.Calls())
}

func TestGenerateExamQuestionsReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &stubModel{generate: func(_ int, _ string) (string, error) {
		return "", context.Canceled
	}}
	gen := NewGenerator(model, testOptions(), nil, zerolog.Nop())

	_, err := gen.GenerateExamQuestions(ctx, uuid.New(), testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseChunkStripsFencesAndProse(t *testing.T) {
	raw := "Here are your questions:\n```json\n" + chunkResponse("Physics", 2) + "\n```\nLet me know if you need more."

	questions, err := parseChunk(raw, zerolog.Nop())

	assert.NoError(t, err)
	assert.Len(t, questions, 2)
	assert.Equal(t, "Physics", questions[0].Subject)
}

func TestParseChunkDropsMalformedItems(t *testing.T) {
	raw := `{"questions": [
		{"question": "Good one?", "options": ["a","b","c","d"], "correct_index": 1, "correct_answer": "B", "solution": "s", "difficulty": "Easy", "subject": "Physics", "topic": "", "exam_type": "NEET"},
		{"question": "Too few options", "options": ["a","b"], "correct_index": 0},
		{"question": "", "options": ["a","b","c","d"], "correct_index": 0},
		{"question": "Index out of range", "options": ["a","b","c","d"], "correct_index": 7}
	]}`

	questions, err := parseChunk(raw, zerolog.Nop())

	assert.NoError(t, err)
	assert.Len(t, questions, 1)
	assert.Equal(t, "Good one?", questions[0].Question)
	// Blank topics normalize to General.
	assert.Equal(t, "General", questions[0].Topic)
}

func TestParseChunkRejectsNonJSONResponse(t *testing.T) {
	_, err := parseChunk("I cannot generate questions right now.", zerolog.Nop())
	assert.Error(t, err)
}

func TestCoerceIndexToleratesStringAndFloat(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`2`, 2},
		{`"3"`, 3},
		{`1.0`, 1},
		{`"0"`, 0},
	}
	for _, tc := range cases {
		idx, err := coerceIndex(json.RawMessage(tc.raw))
		assert.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, idx, tc.raw)
	}

	_, err := coerceIndex(json.RawMessage(`"two"`))
	assert.Error(t, err)
	_, err = coerceIndex(nil)
	assert.Error(t, err)
}
