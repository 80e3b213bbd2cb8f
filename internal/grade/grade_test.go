package grade

import (
	"context"
	"testing"
	"time"

	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func TestPercent(t *testing.T) {
	p, ok := Percent(75, score(100))
	assert.True(t, ok)
	assert.Equal(t, 75.0, p)

	p, ok = Percent(75, score(0))
	assert.False(t, ok)
	assert.Equal(t, 0.0, p)

	p, ok = Percent(75, nil)
	assert.False(t, ok)
	assert.Equal(t, 0.0, p)

	p, ok = Percent(1, score(3))
	assert.True(t, ok)
	assert.Equal(t, 33.33333333, p)

	p, ok = Percent(2, score(3))
	assert.True(t, ok)
	assert.Equal(t, 66.66666667, p)

	// 0.1 + 0.2 style drift does not leak into the result
	p, ok = Percent(0.7, score(1))
	assert.True(t, ok)
	assert.Equal(t, 70.0, p)

	p, ok = Percent(0, score(20))
	assert.True(t, ok)
	assert.Equal(t, 0.0, p)
}

func TestPercentTinyQuotient(t *testing.T) {
	// the quotient keeps ten significant digits well below 1e-14
	p, ok := Percent(1, score(3e17))
	assert.True(t, ok)
	assert.Equal(t, 3.333333333e-16, p)

	p, ok = Percent(2, score(3e20))
	assert.True(t, ok)
	assert.Equal(t, 6.666666667e-19, p)

	p, ok = Percent(2, score(3e-5))
	assert.True(t, ok)
	assert.Equal(t, 6666666.667, p)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Module 1 Quiz", PlainText("Module 1   Quiz"))
	assert.Equal(t, "Module 1 Quiz & Test", PlainText("<p><b>Module 1</b> Quiz &amp; Test</p>"))
	assert.Equal(t, "", PlainText(""))
}

type fakeAssessments struct {
	gradings    []platform.GradingRecord
	assessments map[int64]platform.PublishedAssessment
}

func (f *fakeAssessments) GradingRecords(ctx context.Context, agentID, siteID string) ([]platform.GradingRecord, error) {
	out := []platform.GradingRecord{}
	for _, g := range f.gradings {
		if g.AgentID == agentID && g.SiteID == siteID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeAssessments) PublishedAssessment(ctx context.Context, id int64) (*platform.PublishedAssessment, error) {
	a, ok := f.assessments[id]
	if !ok {
		return nil, platform.ErrNotFound
	}
	a.Sections = nil
	return &a, nil
}

func (f *fakeAssessments) SectionSet(ctx context.Context, id int64) ([]platform.Section, error) {
	a, ok := f.assessments[id]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return a.Sections, nil
}

func sections(scores ...*float64) []platform.Section {
	items := []platform.Item{}
	for i, s := range scores {
		items = append(items, platform.Item{ID: int64(i + 1), Score: s})
	}
	return []platform.Section{{ID: 1, Items: items}}
}

func newFake() *fakeAssessments {
	submitted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeAssessments{
		assessments: map[int64]platform.PublishedAssessment{
			1: {ID: 1, Title: "<b>Module 1</b>: Warm up", Sections: sections(score(50), score(50))},
			2: {ID: 2, Title: "Module 2: Fractions", Sections: sections(score(20))},
			3: {ID: 3, Title: "Module 2: Fractions retake", Sections: sections(score(20))},
			4: {ID: 4, Title: "Survey", Sections: sections(nil)},
		},
		gradings: []platform.GradingRecord{
			{ID: 10, PublishedAssessmentID: 1, AgentID: "u1", SiteID: "s1", FinalScore: 75, Status: platform.GradingActive, SubmittedDate: &submitted},
			{ID: 11, PublishedAssessmentID: 2, AgentID: "u1", SiteID: "s1", FinalScore: 5, Status: platform.GradingRemoved},
			{ID: 12, PublishedAssessmentID: 3, AgentID: "u1", SiteID: "s1", FinalScore: 20, Status: platform.GradingActive},
			{ID: 13, PublishedAssessmentID: 4, AgentID: "u1", SiteID: "s1", FinalScore: 3, Status: platform.GradingActive},
			{ID: 14, PublishedAssessmentID: 2, AgentID: "u2", SiteID: "s1", FinalScore: 10, Status: platform.GradingActive},
		},
	}
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(newFake())

	recs, err := agg.Records(ctx, "u1", "s1", Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 4)

	first := recs[0]
	assert.Equal(t, int64(1), first.AssessmentID)
	assert.Equal(t, "Module 1: Warm up", first.AssessmentName)
	assert.Equal(t, 75.0, first.Percent)
	assert.Equal(t, 75.0, first.Correct)
	require.NotNil(t, first.Total)
	assert.Equal(t, 100.0, *first.Total)
	assert.True(t, first.GradeAvailable)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano()/1e6, first.SubmitDate)

	assert.Equal(t, int64(0), recs[1].SubmitDate)
	assert.Equal(t, 25.0, recs[1].Percent)

	survey := recs[3]
	assert.False(t, survey.GradeAvailable)
	assert.Nil(t, survey.Total)
	assert.Equal(t, 0.0, survey.Percent)

	active, err := agg.Records(ctx, "u1", "s1", Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestFirst(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(newFake())

	rec, err := agg.First(ctx, "u2", "s1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.Percent)

	_, err = agg.First(ctx, "u3", "s1", Filter{})
	assert.Equal(t, ErrNoGrade, err)
}

func TestForModuleFirstMatchWins(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(newFake())

	// record 11 matches before the better scoring retake in record 12
	rec, err := agg.ForModule(ctx, "u1", "s1", "Module 2", Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.AssessmentID)
	assert.Equal(t, 25.0, rec.Percent)

	rec, err = agg.ForModule(ctx, "u1", "s1", "Module 2", Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.AssessmentID)
	assert.Equal(t, 100.0, rec.Percent)

	rec, err = agg.ForModule(ctx, "u1", "s1", "<i>Module 1</i>", Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.AssessmentID)

	_, err = agg.ForModule(ctx, "u1", "s1", "Module 9", Filter{})
	assert.Equal(t, ErrNoGrade, err)

	_, err = agg.ForModule(ctx, "u1", "s1", "  ", Filter{})
	assert.Equal(t, ErrNoGrade, err)
}

func TestMissingAssessment(t *testing.T) {
	f := newFake()
	f.gradings = append(f.gradings, platform.GradingRecord{ID: 20, PublishedAssessmentID: 99, AgentID: "u9", SiteID: "s1"})

	_, err := NewAggregator(f).Records(context.Background(), "u9", "s1", Filter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrNotFound))
	assert.NotEqual(t, ErrNoGrade, err)
}
