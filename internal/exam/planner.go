package exam

// SubjectQuota is one planned allocation: generate Count questions for Subject.
type SubjectQuota struct {
	Subject string
	Count   int
}

// Plan is an ordered subject allocation. Order matters: the deficit from
// rounding is absorbed by the first entry, surplus by the last, and the
// final question list concatenates in plan order.
type Plan []SubjectQuota

// Total sums the planned counts.
func (p Plan) Total() int {
	total := 0
	for _, q := range p {
		total += q.Count
	}
	return total
}

// Counts returns the plan as a subject->count map for convenience.
func (p Plan) Counts() map[string]int {
	m := make(map[string]int, len(p))
	for _, q := range p {
		m[q.Subject] = q.Count
	}
	return m
}

// referenceDistributions holds the fixed per-exam-type subject weightings
// used to scale a custom question total. Slice form keeps subject order
// deterministic.
var referenceDistributions = map[string][]SubjectQuota{
	"JEE Main":           {{"Physics", 25}, {"Chemistry", 25}, {"Mathematics", 25}},
	"NEET":               {{"Physics", 45}, {"Chemistry", 45}, {"Biology", 90}},
	"EAMCET Engineering": {{"Physics", 40}, {"Chemistry", 40}, {"Mathematics", 80}},
	"EAMCET Medical":     {{"Physics", 40}, {"Chemistry", 40}, {"Biology", 80}},
}

// PlanSubjects computes the per-subject question quota for a config.
//
// Known exam types scale the reference weights by requested/reference-total,
// floored, minimum one per included subject. Unknown exam types split the
// total evenly. Rounding drift is then reconciled so the plan sums exactly
// to cfg.QuestionCount: a deficit is added to the first subject, a surplus
// subtracted from the last (clamped to one). The clamp means adversarial
// inputs with QuestionCount < len(subjects) can still come out one or more
// over target; Config.Validate rejects those before planning.
func PlanSubjects(cfg Config) Plan {
	plan := referencePlan(cfg)
	if len(plan) == 0 {
		plan = evenPlan(cfg)
	}

	total := plan.Total()
	switch {
	case total < cfg.QuestionCount:
		plan[0].Count += cfg.QuestionCount - total
	case total > cfg.QuestionCount:
		last := &plan[len(plan)-1]
		last.Count -= total - cfg.QuestionCount
		if last.Count < 1 {
			last.Count = 1
		}
	}
	return plan
}

func referencePlan(cfg Config) Plan {
	reference, ok := referenceDistributions[cfg.ExamType]
	if !ok {
		return nil
	}

	configured := make(map[string]bool, len(cfg.Subjects))
	for _, s := range cfg.Subjects {
		configured[s] = true
	}

	referenceTotal := 0
	for _, q := range reference {
		referenceTotal += q.Count
	}
	ratio := float64(cfg.QuestionCount) / float64(referenceTotal)

	var plan Plan
	for _, q := range reference {
		if !configured[q.Subject] {
			continue
		}
		count := int(float64(q.Count) * ratio)
		if count < 1 {
			count = 1
		}
		plan = append(plan, SubjectQuota{Subject: q.Subject, Count: count})
	}
	return plan
}

func evenPlan(cfg Config) Plan {
	// Floor division may under-allocate; reconciliation in PlanSubjects
	// pushes the remainder onto the first subject.
	per := cfg.QuestionCount / len(cfg.Subjects)
	plan := make(Plan, 0, len(cfg.Subjects))
	for _, s := range cfg.Subjects {
		plan = append(plan, SubjectQuota{Subject: s, Count: per})
	}
	return plan
}
