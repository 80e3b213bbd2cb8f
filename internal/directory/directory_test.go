package directory

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

var markers = Markers{Site: "[course]", Module: "Module"}

func setup(t *testing.T) (*boltstore.Store, *Directory) {
	t.Helper()
	ctx := context.Background()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "platform.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sites := []platform.Site{
		{ID: "algebra", Title: "[course] Algebra", Type: platform.SiteTypeCourse, Published: true, Aliases: []string{"alg-101"},
			Pages: []platform.Page{
				{ID: "home", Title: "Home", Position: 0},
				{ID: "m2", Title: "Module 2: Equations", Position: 2},
				{ID: "m1", Title: "Module 1: Numbers", Position: 1},
			}},
		{ID: "biology", Title: "[course] Biology", Type: platform.SiteTypeCourse, Published: true,
			Pages: []platform.Page{{ID: "home", Title: "Home"}}},
		{ID: "chemistry", Title: "Chemistry", Type: platform.SiteTypeCourse, Published: true,
			Pages: []platform.Page{{ID: "m1", Title: "Module 1"}}},
		{ID: "drafts", Title: "[course] Drafts", Type: platform.SiteTypeCourse, Published: false,
			Pages: []platform.Page{{ID: "m1", Title: "Module 1"}}},
	}
	for _, site := range sites {
		require.NoError(t, s.PutSite(ctx, site))
	}
	_, err = s.AddUser(ctx, platform.User{ID: "u1", Eid: "jdoe"})
	require.NoError(t, err)

	return s, New(s, s, s, markers, nil)
}

func ids(sites []platform.Site) []string {
	out := []string{}
	for _, s := range sites {
		out = append(out, s.ID)
	}
	return out
}

func TestSites(t *testing.T) {
	_, d := setup(t)
	ctx := context.Background()

	all, err := d.Sites(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra", "biology", "chemistry"}, ids(all))

	withModules, err := d.Sites(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra"}, ids(withModules))
}

func TestSiteAndModules(t *testing.T) {
	_, d := setup(t)
	ctx := context.Background()

	site, err := d.Site(ctx, "alg-101")
	require.NoError(t, err)
	assert.Equal(t, "algebra", site.ID)

	_, err = d.Site(ctx, "nope")
	assert.Equal(t, ErrNotFound, err)

	modules, err := d.Modules(ctx, "algebra")
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "m1", modules[0].Page.ID)
	assert.Equal(t, "m2", modules[1].Page.ID)

	m, err := d.Module(ctx, "algebra", "m2")
	require.NoError(t, err)
	assert.Equal(t, "Module 2: Equations", m.Page.Title)

	_, err = d.Module(ctx, "algebra", "home")
	assert.Equal(t, ErrNotFound, err)
	_, err = d.Module(ctx, "nope", "m1")
	assert.Equal(t, ErrNotFound, err)
}

func TestAddUser(t *testing.T) {
	s, d := setup(t)
	ctx := context.Background()

	site, err := d.AddUser(ctx, "jdoe", "algebra")
	require.NoError(t, err)
	assert.Equal(t, "algebra", site.ID)

	stored, err := s.Site(ctx, "algebra")
	require.NoError(t, err)
	assert.Contains(t, stored.Members, "u1")

	pins, err := s.PinnedSites(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra"}, pins)
}

func TestAddUserRejectsMismatchedSiteID(t *testing.T) {
	_, d := setup(t)

	// the alias resolves to a site with a different id
	_, err := d.AddUser(context.Background(), "jdoe", "alg-101")
	assert.Equal(t, ErrInvalidRequest, err)
}

func TestAddUserRejectsUnknownUserAndSite(t *testing.T) {
	_, d := setup(t)
	ctx := context.Background()

	_, err := d.AddUser(ctx, "ghost", "algebra")
	assert.Equal(t, ErrInvalidRequest, err)

	_, err = d.AddUser(ctx, "JDOE", "algebra")
	assert.Equal(t, ErrInvalidRequest, err, "eid comparison is exact")

	_, err = d.AddUser(ctx, "jdoe", "nope")
	assert.Equal(t, ErrNotFound, err)
}

type brokenPortal struct{}

func (brokenPortal) PinnedSites(ctx context.Context, userID string) ([]string, error) {
	return nil, errors.New("portal down")
}

func (brokenPortal) AddPinnedSite(ctx context.Context, userID, siteID string) error {
	return errors.New("portal down")
}

func TestAddUserIgnoresPinFailure(t *testing.T) {
	s, _ := setup(t)
	d := New(s, s, brokenPortal{}, markers, nil)

	site, err := d.AddUser(context.Background(), "jdoe", "algebra")
	require.NoError(t, err)
	assert.Equal(t, "algebra", site.ID)
}

type recordingPortal struct {
	pinned []string
	added  []string
	addErr error
}

func (p *recordingPortal) PinnedSites(ctx context.Context, userID string) ([]string, error) {
	return p.pinned, nil
}

func (p *recordingPortal) AddPinnedSite(ctx context.Context, userID, siteID string) error {
	p.added = append(p.added, siteID)
	return p.addErr
}

func TestAddUserPinsOnlyUnpinnedSites(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	portal := &recordingPortal{pinned: []string{"biology", "algebra"}}
	d := New(s, s, portal, markers, nil)
	_, err := d.AddUser(ctx, "jdoe", "algebra")
	require.NoError(t, err)
	assert.Empty(t, portal.added, "already pinned")

	portal = &recordingPortal{pinned: []string{"biology"}}
	d = New(s, s, portal, markers, nil)
	_, err = d.AddUser(ctx, "jdoe", "algebra")
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra"}, portal.added)

	portal = &recordingPortal{addErr: errors.New("portal down")}
	d = New(s, s, portal, markers, nil)
	_, err = d.AddUser(ctx, "jdoe", "algebra")
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra"}, portal.added)
}
