package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanSubjectsScalesReferenceDistribution(t *testing.T) {
	cfg := Config{
		ExamType:      "JEE Main",
		Subjects:      []string{"Physics", "Chemistry", "Mathematics"},
		QuestionCount: 30,
		Duration:      60,
		Difficulty:    DifficultyMedium,
	}

	plan := PlanSubjects(cfg)

	assert.Equal(t, 30, plan.Total())
	assert.Equal(t, map[string]int{"Physics": 10, "Chemistry": 10, "Mathematics": 10}, plan.Counts())
}

func TestPlanSubjectsKeepsReferenceWeighting(t *testing.T) {
	cfg := Config{
		ExamType:      "NEET",
		Subjects:      []string{"Physics", "Chemistry", "Biology"},
		QuestionCount: 60,
	}

	plan := PlanSubjects(cfg)

	assert.Equal(t, 60, plan.Total())
	// Biology carries double weight in the NEET reference distribution.
	assert.Equal(t, map[string]int{"Physics": 15, "Chemistry": 15, "Biology": 30}, plan.Counts())
}

func TestPlanSubjectsSplitsEvenlyForUnknownExamType(t *testing.T) {
	cfg := Config{
		ExamType:      "SAT",
		Subjects:      []string{"Math", "Reading", "Writing"},
		QuestionCount: 10,
	}

	plan := PlanSubjects(cfg)

	assert.Equal(t, 10, plan.Total())
	// Floor division leaves a remainder of one, absorbed by the first subject.
	assert.Equal(t, 4, plan[0].Count)
	assert.Equal(t, "Math", plan[0].Subject)
	assert.Equal(t, 3, plan[1].Count)
	assert.Equal(t, 3, plan[2].Count)
}

func TestPlanSubjectsIgnoresUnconfiguredReferenceSubjects(t *testing.T) {
	cfg := Config{
		ExamType:      "JEE Main",
		Subjects:      []string{"Physics", "Chemistry"},
		QuestionCount: 20,
	}

	plan := PlanSubjects(cfg)

	assert.Equal(t, 20, plan.Total())
	assert.Len(t, plan, 2)
	for _, quota := range plan {
		assert.NotEqual(t, "Mathematics", quota.Subject)
		assert.GreaterOrEqual(t, quota.Count, 1)
	}
}

func TestPlanSubjectsAbsorbsDeficitInFirstSubject(t *testing.T) {
	cfg := Config{
		ExamType:      "JEE Main",
		Subjects:      []string{"Physics", "Chemistry", "Mathematics"},
		QuestionCount: 4,
	}

	plan := PlanSubjects(cfg)

	assert.Equal(t, 4, plan.Total())
	assert.Equal(t, "Physics", plan[0].Subject)
	assert.Equal(t, 2, plan[0].Count)
}

func TestPlanSubjectsClampBlocksTinyTotals(t *testing.T) {
	// Below the validation floor on purpose: surplus trimming clamps the last
	// quota at one, so the plan overshoots. Config.Validate rejects this
	// shape before it ever reaches the planner.
	cfg := Config{
		ExamType:      "JEE Main",
		Subjects:      []string{"Physics", "Chemistry", "Mathematics"},
		QuestionCount: 2,
	}

	plan := PlanSubjects(cfg)

	assert.Equal(t, 3, plan.Total())
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		ExamType:      "NEET",
		Subjects:      []string{"Physics", "Biology"},
		QuestionCount: 10,
		Duration:      30,
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name string
		mut  func(c *Config)
	}{
		{"missing exam type", func(c *Config) { c.ExamType = "" }},
		{"no subjects", func(c *Config) { c.Subjects = nil }},
		{"zero questions", func(c *Config) { c.QuestionCount = 0 }},
		{"fewer questions than subjects", func(c *Config) { c.QuestionCount = 1 }},
		{"zero duration", func(c *Config) { c.Duration = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mut(&cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}
