package login

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nsip/otf-portal/internal/platform"
	"github.com/nsip/otf-portal/internal/platform/boltstore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *boltstore.Store {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "platform.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRequest() Request {
	return Request{Eid: "jdoe", FirstName: "Jane", LastName: "Doe", Email: "jane@example.org", IP: "10.0.0.1"}
}

func TestLoginCreatesAccountOnce(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	flow := NewFlow(s, s, s, nil)

	res, err := flow.Login(ctx, newRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.True(t, res.Created)

	u, err := s.UserByEid(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, UserTypeRegistered, u.Type)
	assert.NotEmpty(t, u.Password)

	again, err := flow.Login(ctx, newRequest())
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.False(t, again.Updated)
	assert.NotEqual(t, res.SessionID, again.SessionID)
	assert.Equal(t, res.UserID, again.UserID)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, err := s.LoginCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, events)
}

func TestLoginUnknownUserWithoutProfile(t *testing.T) {
	s := openStore(t)
	flow := NewFlow(s, s, s, nil)

	_, err := flow.Login(context.Background(), Request{Eid: "ghost", FirstName: "Only"})
	assert.Equal(t, ErrFailedLogin, err)

	n, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoginUpdatesChangedProfile(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	flow := NewFlow(s, s, s, nil)

	_, err := flow.Login(ctx, newRequest())
	require.NoError(t, err)

	req := newRequest()
	req.Email = "jane.doe@example.org"
	res, err := flow.Login(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Updated)

	u, err := s.UserByEid(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.org", u.Email)
	assert.Equal(t, "Jane", u.FirstName)

	// a bare login keeps the stored profile
	res, err = flow.Login(ctx, Request{Eid: "jdoe"})
	require.NoError(t, err)
	assert.False(t, res.Updated)
	u, err = s.UserByEid(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.org", u.Email)
}

type failingDirectory struct {
	*boltstore.Store
}

func (f failingDirectory) CommitEdit(ctx context.Context, edit *platform.UserEdit) error {
	return errors.New("directory is read only")
}

func (f failingDirectory) AddUser(ctx context.Context, u platform.User) (*platform.User, error) {
	return nil, errors.New("directory is read only")
}

func TestLoginSuppressesUpdateFailure(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.AddUser(ctx, platform.User{Eid: "jdoe", FirstName: "Jane", LastName: "Doe", Email: "old@example.org"})
	require.NoError(t, err)

	flow := NewFlow(failingDirectory{s}, s, s, nil)
	res, err := flow.Login(ctx, newRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.False(t, res.Updated)
}

func TestLoginCreateFailure(t *testing.T) {
	s := openStore(t)
	flow := NewFlow(failingDirectory{s}, s, s, nil)

	_, err := flow.Login(context.Background(), newRequest())
	assert.Equal(t, ErrFailedLogin, err)
}

type noSessions struct{}

func (noSessions) StartSession(ctx context.Context, userID string) (*platform.Session, error) {
	return nil, nil
}

func TestLoginWithoutSession(t *testing.T) {
	s := openStore(t)
	flow := NewFlow(s, noSessions{}, s, nil)

	_, err := flow.Login(context.Background(), newRequest())
	assert.Equal(t, ErrNoSession, err)
}
