package otfportal

import (
	"strings"
	"time"

	"github.com/nsip/otf-portal/internal/directory"
	"github.com/nsip/otf-portal/internal/grade"
	"github.com/nsip/otf-portal/internal/platform"
)

//
// SiteDTO is the portal view of a platform site,
// dates are epoch millis.
//
type SiteDTO struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Description      string `json:"description"`
	InfoURL          string `json:"infoUrl"`
	InfoURLFull      string `json:"infoUrlFull"`
	ShortDescription string `json:"shortDescription"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	Joinable         bool   `json:"joinable"`
	Published        bool   `json:"published"`
	PubView          bool   `json:"pubView"`
	CreatedDate      *int64 `json:"createdDate"`
	ModifiedDate     *int64 `json:"modifiedDate"`
}

// ModuleDTO is a module page together with its site
type ModuleDTO struct {
	SiteDTO
	SiteID            string `json:"siteId"`
	Position          int    `json:"position"`
	ModuleTitle       string `json:"moduleTitle"`
	ModuleTitleCustom string `json:"moduleTitleCustom"`
}

type CourseGrade struct {
	Course         *SiteDTO `json:"course"`
	AssessmentID   int64    `json:"assessmentId"`
	AssessmentName string   `json:"assessmentName"`
	// never populated, kept for the response shape
	Grade          *string  `json:"grade"`
	SubmitDate     int64    `json:"submitDate"`
	Percent        float64  `json:"percent"`
	Correct        float64  `json:"correct"`
	Total          *float64 `json:"total"`
	GradeAvailable bool     `json:"gradeAvailable"`
}

func millis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixNano() / 1e6
	return &ms
}

func (s *PortalService) siteURL(siteID string) string {
	return strings.TrimRight(s.portalURL, "/") + "/portal/site/" + siteID
}

func (s *PortalService) toSiteDTO(site *platform.Site) *SiteDTO {
	infoFull := site.InfoURL
	if infoFull != "" && !strings.Contains(infoFull, "://") {
		infoFull = strings.TrimRight(s.portalURL, "/") + "/" + strings.TrimLeft(infoFull, "/")
	}
	return &SiteDTO{
		ID:               site.ID,
		URL:              s.siteURL(site.ID),
		Description:      site.Description,
		InfoURL:          site.InfoURL,
		InfoURLFull:      infoFull,
		ShortDescription: site.ShortDescription,
		Title:            site.Title,
		Type:             site.Type,
		Joinable:         site.Joinable,
		Published:        site.Published,
		PubView:          site.PubView,
		CreatedDate:      millis(site.Created),
		ModifiedDate:     millis(site.Modified),
	}
}

func (s *PortalService) toModuleDTO(m *directory.Module) *ModuleDTO {
	dto := &ModuleDTO{
		SiteDTO:           *s.toSiteDTO(m.Site),
		SiteID:            m.Site.ID,
		Position:          m.Page.Position,
		ModuleTitle:       m.Page.Title,
		ModuleTitleCustom: m.Page.CustomTitle,
	}
	// the module is addressed by its page
	dto.ID = m.Page.ID
	dto.URL = s.siteURL(m.Site.ID) + "/page/" + m.Page.ID
	return dto
}

func toCourseGrade(r *grade.Record, course *SiteDTO) *CourseGrade {
	return &CourseGrade{
		Course:         course,
		AssessmentID:   r.AssessmentID,
		AssessmentName: r.AssessmentName,
		SubmitDate:     r.SubmitDate,
		Percent:        r.Percent,
		Correct:        r.Correct,
		Total:          r.Total,
		GradeAvailable: r.GradeAvailable,
	}
}
