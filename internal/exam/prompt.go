package exam

import (
	"fmt"
	"strings"
)

// forbiddenPhrases are generic stems the model is explicitly told to avoid
// and that quality gating treats as markers of degraded content.
var forbiddenPhrases = []string{
	"sample question",
	"Option A for",
	"placeholder",
	"template",
	"example question",
}

// BuildPrompt constructs the generation instruction for one subject chunk.
// Pure function of its inputs: the returned string encodes the target exam
// type, subject, difficulty, exact question count, the mandatory JSON output
// schema, and the anti-genericity constraints.
func BuildPrompt(subject string, chunkCount int, cfg Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert question writer for %s competitive exams. ", cfg.ExamType)
	fmt.Fprintf(&b, "Generate exactly %d high-quality, original MCQ questions for %s at %s difficulty level.\n\n", chunkCount, subject, cfg.Difficulty)

	b.WriteString("CRITICAL REQUIREMENTS:\n")
	b.WriteString("- Generate REAL, SPECIFIC, DETAILED questions (NOT sample/template questions)\n")
	b.WriteString("- NO generic phrases like \"Sample question\", \"Question 1\", \"Option A for question 1\"\n")
	b.WriteString("- Each question must be a complete, standalone academic question\n")
	fmt.Fprintf(&b, "- Questions should test actual %s concepts relevant to %s\n", subject, cfg.ExamType)
	b.WriteString("- Include specific numerical values, formulas, concepts, or scenarios where appropriate\n")
	b.WriteString("- Each question must have exactly 4 distinct, meaningful options\n")
	b.WriteString("- Only one correct answer per question\n")
	b.WriteString("- Include detailed solution with step-by-step explanation\n")
	fmt.Fprintf(&b, "- Cover different topics within %s\n", subject)
	fmt.Fprintf(&b, "- Maintain %s difficulty level throughout\n\n", cfg.Difficulty)

	b.WriteString("QUESTION QUALITY STANDARDS:\n")
	b.WriteString("- Questions should be exam-level quality, not basic or template-like\n")
	b.WriteString("- Options should be plausible and test understanding\n")
	b.WriteString("- Avoid obvious wrong answers\n")
	b.WriteString("- Solutions should be educational and complete\n\n")

	b.WriteString("FORBIDDEN CONTENT (never use any of these phrasings):\n")
	for _, phrase := range forbiddenPhrases {
		fmt.Fprintf(&b, "- %q\n", phrase)
	}
	b.WriteString("\n")

	b.WriteString("Example of GOOD question format:\n")
	b.WriteString("\"A uniform rod of length 2m and mass 5kg is pivoted at its center. If a force of 10N is applied at one end perpendicular to the rod, what is the angular acceleration?\"\n\n")
	fmt.Fprintf(&b, "Example of BAD question format (NEVER use):\n\"Sample %s question 1 for %s\"\n\n", subject, cfg.ExamType)

	fmt.Fprintf(&b, "Generate exactly %d questions following these standards.\n\n", chunkCount)

	b.WriteString("Output ONLY valid JSON in this EXACT format (no extra text):\n")
	fmt.Fprintf(&b, `{
  "questions": [
    {
      "question": "Complete specific question text with actual content",
      "options": ["Specific option 1", "Specific option 2", "Specific option 3", "Specific option 4"],
      "correct_index": 0,
      "correct_answer": "A",
      "solution": "Detailed step-by-step solution explanation",
      "difficulty": %q,
      "subject": %q,
      "topic": "Specific topic name",
      "exam_type": %q
    }
  ]
}`, cfg.Difficulty, subject, cfg.ExamType)

	return b.String()
}
