//
// Package directory lists course sites and the module pages inside
// them, and enrolls users into sites.
//
package directory

import (
	"context"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
)

var (
	// site or module page is unknown
	ErrNotFound = errors.New("not found")
	// request does not line up with the resolved user or site
	ErrInvalidRequest = errors.New("invalid request")
)

type Markers struct {
	// substring a site title must contain to be listed as a course with modules
	Site string
	// substring a page title must contain to be a module
	Module string
}

// Module is a site page recognised as a course module
type Module struct {
	Site *platform.Site
	Page platform.Page
}

type Directory struct {
	sites   platform.SiteService
	users   platform.UserDirectory
	portal  platform.PortalService
	markers Markers
	logger  *log.Logger
}

func New(sites platform.SiteService, users platform.UserDirectory, portal platform.PortalService, markers Markers, logger *log.Logger) *Directory {
	if logger == nil {
		logger = log.New("directory")
	}
	return &Directory{sites: sites, users: users, portal: portal, markers: markers, logger: logger}
}

//
// Sites lists published course sites. With withModules set only
// sites carrying the site marker and at least one module page remain.
//
func (d *Directory) Sites(ctx context.Context, withModules bool) ([]platform.Site, error) {
	all, err := d.sites.Sites(ctx, platform.SiteTypeCourse)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list sites")
	}
	out := []platform.Site{}
	for _, s := range all {
		if !s.Published {
			continue
		}
		if withModules {
			if !strings.Contains(s.Title, d.markers.Site) || len(d.modulePages(&s)) == 0 {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *Directory) Site(ctx context.Context, id string) (*platform.Site, error) {
	site, err := d.sites.Site(ctx, id)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "cannot resolve site %s", id)
	}
	return site, nil
}

// Modules lists the module pages of a site in page order
func (d *Directory) Modules(ctx context.Context, siteID string) ([]Module, error) {
	site, err := d.Site(ctx, siteID)
	if err != nil {
		return nil, err
	}
	modules := []Module{}
	for _, p := range d.modulePages(site) {
		modules = append(modules, Module{Site: site, Page: p})
	}
	return modules, nil
}

func (d *Directory) Module(ctx context.Context, siteID, moduleID string) (*Module, error) {
	site, err := d.Site(ctx, siteID)
	if err != nil {
		return nil, err
	}
	for _, p := range d.modulePages(site) {
		if p.ID == moduleID {
			return &Module{Site: site, Page: p}, nil
		}
	}
	return nil, ErrNotFound
}

func (d *Directory) modulePages(site *platform.Site) []platform.Page {
	pages := []platform.Page{}
	for _, p := range site.Pages {
		if strings.Contains(p.Title, d.markers.Module) {
			pages = append(pages, p)
		}
	}
	return pages
}

//
// ResolveUserSite looks up the user and site of a request. The user's
// eid must equal the requested one, an unknown site is ErrNotFound.
//
func (d *Directory) ResolveUserSite(ctx context.Context, userEid, siteID string) (*platform.User, *platform.Site, error) {
	user, err := d.users.UserByEid(ctx, userEid)
	if err != nil || user == nil || user.Eid != userEid {
		return nil, nil, ErrInvalidRequest
	}
	site, err := d.Site(ctx, siteID)
	if err != nil {
		return nil, nil, err
	}
	return user, site, nil
}

//
// AddUser enrolls the user into the site and pins the site for them.
// The resolved site must carry exactly the requested id.
//
func (d *Directory) AddUser(ctx context.Context, userEid, siteID string) (*platform.Site, error) {
	user, site, err := d.ResolveUserSite(ctx, userEid, siteID)
	if err != nil {
		return nil, err
	}
	if site.ID != siteID {
		return nil, ErrInvalidRequest
	}

	if err := d.sites.AddUserToSite(ctx, user.ID, site.ID); err != nil {
		return nil, errors.Wrapf(err, "cannot add user %s to site %s", user.ID, site.ID)
	}

	d.pin(ctx, user.ID, site.ID)
	return site, nil
}

//
// pin adds the site to the user's pinned sites unless it is already
// there. Pinning is best effort, failures are only logged.
//
func (d *Directory) pin(ctx context.Context, userID, siteID string) {
	pinned, err := d.portal.PinnedSites(ctx, userID)
	if err != nil {
		d.logger.Warnf("cannot read pinned sites for user %s: %v", userID, err)
		return
	}
	for _, id := range pinned {
		if id == siteID {
			return
		}
	}
	if err := d.portal.AddPinnedSite(ctx, userID, siteID); err != nil {
		d.logger.Warnf("cannot pin site %s for user %s: %v", siteID, userID, err)
	}
}
