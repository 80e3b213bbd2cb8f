//
// Package grade turns raw assessment grading records into
// percentage based grade records.
//
package grade

import (
	"context"
	"strings"

	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
)

// no grading record matched the request
var ErrNoGrade = errors.New("no grading record found")

type Record struct {
	AssessmentID   int64
	AssessmentName string
	SiteID         string
	// epoch millis, 0 when never submitted
	SubmitDate     int64
	Percent        float64
	Correct        float64
	Total          *float64
	GradeAvailable bool
}

type Filter struct {
	// keep only records in active status
	ActiveOnly bool
}

type Aggregator struct {
	assessments platform.AssessmentService
}

func NewAggregator(assessments platform.AssessmentService) *Aggregator {
	return &Aggregator{assessments: assessments}
}

//
// Records loads every grading record of the user in the site and
// computes the grade record for each, in platform order.
//
func (a *Aggregator) Records(ctx context.Context, agentID, siteID string, f Filter) ([]Record, error) {
	raw, err := a.gradings(ctx, agentID, siteID, f)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		rec, err := a.record(ctx, r)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// First returns the first grade record of the user in the site
func (a *Aggregator) First(ctx context.Context, agentID, siteID string, f Filter) (*Record, error) {
	raw, err := a.gradings(ctx, agentID, siteID, f)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoGrade
	}
	return a.record(ctx, raw[0])
}

//
// ForModule returns the first grade record whose plain text assessment
// title contains moduleTitle. Later, better or more recent matches are
// not considered.
//
func (a *Aggregator) ForModule(ctx context.Context, agentID, siteID, moduleTitle string, f Filter) (*Record, error) {
	moduleTitle = PlainText(moduleTitle)
	if moduleTitle == "" {
		return nil, ErrNoGrade
	}
	raw, err := a.gradings(ctx, agentID, siteID, f)
	if err != nil {
		return nil, err
	}
	for _, r := range raw {
		rec, err := a.record(ctx, r)
		if err != nil {
			return nil, err
		}
		if strings.Contains(rec.AssessmentName, moduleTitle) {
			return rec, nil
		}
	}
	return nil, ErrNoGrade
}

func (a *Aggregator) gradings(ctx context.Context, agentID, siteID string, f Filter) ([]platform.GradingRecord, error) {
	raw, err := a.assessments.GradingRecords(ctx, agentID, siteID)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list grading records")
	}
	if !f.ActiveOnly {
		return raw, nil
	}
	active := raw[:0:0]
	for _, r := range raw {
		if r.Status == platform.GradingActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (a *Aggregator) record(ctx context.Context, r platform.GradingRecord) (*Record, error) {
	pa, err := a.assessments.PublishedAssessment(ctx, r.PublishedAssessmentID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load assessment for grading record %d", r.ID)
	}
	sections, err := a.assessments.SectionSet(ctx, r.PublishedAssessmentID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load sections for grading record %d", r.ID)
	}
	pa.Sections = sections

	var total *float64
	if t, ok := pa.TotalScore(); ok {
		total = &t
	}
	percent, available := Percent(r.FinalScore, total)

	rec := &Record{
		AssessmentID:   pa.ID,
		AssessmentName: PlainText(pa.Title),
		SiteID:         r.SiteID,
		Percent:        percent,
		Correct:        r.FinalScore,
		Total:          total,
		GradeAvailable: available,
	}
	if r.SubmittedDate != nil {
		rec.SubmitDate = r.SubmittedDate.UnixNano() / 1e6
	}
	return rec, nil
}
