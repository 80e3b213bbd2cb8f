//
// Package login exchanges a platform user id (plus optional profile
// fields) for a platform session, provisioning or refreshing the
// account on the way.
//
package login

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
)

// tool name recorded against usage-session login events
const Tool = "SakaiPortalLogin"

// account type given to provisioned users
const UserTypeRegistered = "registered"

var (
	// the user could not be found, created or given a session
	ErrFailedLogin = errors.New("failed login")
	// the platform returned no session
	ErrNoSession = errors.New("unable to establish session")
)

type Request struct {
	Eid       string
	FirstName string
	LastName  string
	Email     string
	// caller address, recorded with the usage event
	IP string
}

func (r *Request) hasProfile() bool {
	return !isBlank(r.FirstName) && !isBlank(r.LastName) && !isBlank(r.Email)
}

type Result struct {
	SessionID string
	UserID    string
	Created   bool
	Updated   bool
}

type Flow struct {
	users    platform.UserDirectory
	sessions platform.SessionManager
	usage    platform.UsageLog
	logger   *log.Logger
}

func NewFlow(users platform.UserDirectory, sessions platform.SessionManager, usage platform.UsageLog, logger *log.Logger) *Flow {
	if logger == nil {
		logger = log.New("login")
	}
	return &Flow{users: users, sessions: sessions, usage: usage, logger: logger}
}

//
// Login runs the linear login flow: lookup, optional provisioning,
// session start, usage event, optional profile refresh.
//
func (f *Flow) Login(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}

	user := f.lookup(ctx, req.Eid)
	if user == nil && req.hasProfile() {
		f.logger.Infof("creating platform account eid=%s", req.Eid)
		_, err := f.users.AddUser(ctx, platform.User{
			Eid:       req.Eid,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Type:      UserTypeRegistered,
			Password:  uuid.NewString(),
		})
		if err != nil {
			f.logger.Errorf("unable to create user eid=%s: %v", req.Eid, err)
			return nil, ErrFailedLogin
		}
		user = f.lookup(ctx, req.Eid)
		res.Created = user != nil
	}

	if user == nil {
		f.logger.Infof("portal login failed eid=%s ip=%s", req.Eid, req.IP)
		return nil, ErrFailedLogin
	}

	sess, err := f.sessions.StartSession(ctx, user.ID)
	if err != nil || sess == nil {
		f.logger.Warnf("portal login failed to establish session for eid=%s ip=%s: %v", req.Eid, req.IP, err)
		return nil, ErrNoSession
	}

	// presence and event tracking only, nothing to do if it fails
	if err := f.usage.Login(ctx, user.ID, req.Eid, req.IP, Tool, platform.EventLoginWS); err != nil {
		f.logger.Warnf("cannot record login event for eid=%s: %v", req.Eid, err)
	}

	if !res.Created {
		res.Updated = f.refreshProfile(ctx, user, req)
	}

	f.logger.Debugf("portal login eid=%s ip=%s session=%s", req.Eid, req.IP, sess.ID)
	res.SessionID = sess.ID
	res.UserID = user.ID
	return res, nil
}

func (f *Flow) lookup(ctx context.Context, eid string) *platform.User {
	if isBlank(eid) {
		return nil
	}
	u, err := f.users.UserByEid(ctx, eid)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			f.logger.Warnf("user lookup failed eid=%s: %v", eid, err)
		}
		return nil
	}
	return u
}

//
// refreshProfile applies the supplied profile fields that differ from
// the stored account. Failures are logged and reported as no update.
//
func (f *Flow) refreshProfile(ctx context.Context, user *platform.User, req Request) bool {
	email := pick(req.Email, user.Email)
	first := pick(req.FirstName, user.FirstName)
	last := pick(req.LastName, user.LastName)
	if email == user.Email && first == user.FirstName && last == user.LastName {
		return false
	}

	f.logger.Infof("updating user %s (%s, %s, %s)", user.ID, user.Email, user.FirstName, user.LastName)
	edit, err := f.users.EditUser(ctx, user.ID)
	if err != nil {
		f.logger.Errorf("cannot edit user %s: %v", user.ID, err)
		return false
	}
	edit.Email, edit.FirstName, edit.LastName = email, first, last
	if err := f.users.CommitEdit(ctx, edit); err != nil {
		f.logger.Errorf("cannot commit update of user %s: %v", user.ID, err)
		return false
	}
	f.logger.Infof("user %s updated", user.ID)
	return true
}

// supplied wins over stored unless blank
func pick(supplied, stored string) string {
	if isBlank(supplied) {
		return stored
	}
	return supplied
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
