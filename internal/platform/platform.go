//
// Package platform describes the learning-management platform services
// that the portal endpoints lean on: user directory, sessions, usage
// events, sites, portal pins and assessment grading.
//
// The portal never owns this data, it only reads it and asks the
// platform to apply a few side effects (enrollment, pinning, account
// provisioning).
//
package platform

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// returned when a user, site, session, assessment or page is unknown
	ErrNotFound = errors.New("not defined")
	// returned when a user eid is already taken
	ErrAlreadyDefined = errors.New("already defined")
)

// event name recorded when a user logs in through the web services
const EventLoginWS = "user.login.ws"

// site type used for course sites
const SiteTypeCourse = "course"

type User struct {
	ID        string    `json:"id" yaml:"id"`
	Eid       string    `json:"eid" yaml:"eid"`
	FirstName string    `json:"firstName" yaml:"firstName"`
	LastName  string    `json:"lastName" yaml:"lastName"`
	Email     string    `json:"email" yaml:"email"`
	Type      string    `json:"type" yaml:"type"`
	Password  string    `json:"password,omitempty" yaml:"password"`
	Created   time.Time `json:"created" yaml:"created"`
	Modified  time.Time `json:"modified" yaml:"modified"`
}

//
// UserEdit is an open edit of a user account, changes are
// only persisted by UserDirectory.CommitEdit
//
type UserEdit struct {
	User
}

type Session struct {
	ID      string    `json:"id"`
	UserID  string    `json:"userId"`
	Started time.Time `json:"started"`
}

type Page struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	CustomTitle string `json:"customTitle,omitempty" yaml:"customTitle"`
	Position    int    `json:"position" yaml:"position"`
}

type Site struct {
	ID               string    `json:"id" yaml:"id"`
	Title            string    `json:"title" yaml:"title"`
	Description      string    `json:"description" yaml:"description"`
	ShortDescription string    `json:"shortDescription" yaml:"shortDescription"`
	InfoURL          string    `json:"infoUrl" yaml:"infoUrl"`
	Type             string    `json:"type" yaml:"type"`
	Joinable         bool      `json:"joinable" yaml:"joinable"`
	Published        bool      `json:"published" yaml:"published"`
	PubView          bool      `json:"pubView" yaml:"pubView"`
	Created          time.Time `json:"created" yaml:"created"`
	Modified         time.Time `json:"modified" yaml:"modified"`
	Aliases          []string  `json:"aliases,omitempty" yaml:"aliases"`
	Pages            []Page    `json:"pages" yaml:"pages"`
	Members          []string  `json:"members,omitempty" yaml:"members"`
}

// user workspace sites are keyed with a leading tilde
func (s *Site) IsUserSite() bool {
	return len(s.ID) > 0 && s.ID[0] == '~'
}

type GradingStatus int

const (
	GradingInProgress GradingStatus = iota
	GradingActive
	GradingRemoved
)

//
// GradingRecord is one submitted attempt of one published
// assessment by one user.
//
type GradingRecord struct {
	ID                    int64         `json:"id" yaml:"id"`
	PublishedAssessmentID int64         `json:"publishedAssessmentId" yaml:"publishedAssessmentId"`
	AgentID               string        `json:"agentId" yaml:"agentId"`
	SiteID                string        `json:"siteId" yaml:"siteId"`
	SubmittedDate         *time.Time    `json:"submittedDate,omitempty" yaml:"submittedDate"`
	FinalScore            float64       `json:"finalScore" yaml:"finalScore"`
	Status                GradingStatus `json:"status" yaml:"status"`
}

type Item struct {
	ID    int64    `json:"id" yaml:"id"`
	Score *float64 `json:"score,omitempty" yaml:"score"`
}

type Section struct {
	ID    int64  `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Items []Item `json:"items" yaml:"items"`
}

type PublishedAssessment struct {
	ID       int64     `json:"id" yaml:"id"`
	SiteID   string    `json:"siteId" yaml:"siteId"`
	Title    string    `json:"title" yaml:"title"`
	Sections []Section `json:"sections,omitempty" yaml:"sections"`
}

//
// TotalScore sums the item scores over the section set.
// ok is false when no item carries a score.
//
func (a *PublishedAssessment) TotalScore() (total float64, ok bool) {
	for _, s := range a.Sections {
		for _, i := range s.Items {
			if i.Score == nil {
				continue
			}
			total += *i.Score
			ok = true
		}
	}
	return total, ok
}

type UserDirectory interface {
	UserByEid(ctx context.Context, eid string) (*User, error)
	AddUser(ctx context.Context, u User) (*User, error)
	EditUser(ctx context.Context, id string) (*UserEdit, error)
	CommitEdit(ctx context.Context, edit *UserEdit) error
}

type SessionManager interface {
	StartSession(ctx context.Context, userID string) (*Session, error)
}

type UsageLog interface {
	Login(ctx context.Context, userID, eid, ip, tool, event string) error
}

type SiteService interface {
	// resolves a site by id or alias
	Site(ctx context.Context, id string) (*Site, error)
	// all sites of the given type, ordered by id
	Sites(ctx context.Context, siteType string) ([]Site, error)
	AddUserToSite(ctx context.Context, userID string, siteID string) error
}

type PortalService interface {
	PinnedSites(ctx context.Context, userID string) ([]string, error)
	AddPinnedSite(ctx context.Context, userID, siteID string) error
}

type AssessmentService interface {
	GradingRecords(ctx context.Context, agentID, siteID string) ([]GradingRecord, error)
	PublishedAssessment(ctx context.Context, id int64) (*PublishedAssessment, error)
	SectionSet(ctx context.Context, assessmentID int64) ([]Section, error)
}
