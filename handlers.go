package otfportal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsip/otf-portal/internal/access"
	"github.com/nsip/otf-portal/internal/directory"
	"github.com/nsip/otf-portal/internal/grade"
	"github.com/nsip/otf-portal/internal/login"
	"github.com/nsip/otf-portal/internal/util"
	"github.com/pkg/errors"
)

// header carrying the shared portal secret
const secretHeader = echo.HeaderAuthorization

//
// maps the outcome of validation and business calls onto
// http status codes
//
func (s *PortalService) httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, access.ErrBadRequest):
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request...")
	case errors.Is(err, access.ErrSecretMismatch):
		return echo.NewHTTPError(http.StatusUnauthorized, "Failed login")
	case errors.Is(err, access.ErrIPNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, "Failed login")
	case errors.Is(err, login.ErrNoSession):
		return echo.NewHTTPError(http.StatusForbidden, "Unable to establish session")
	case errors.Is(err, login.ErrFailedLogin):
		return echo.NewHTTPError(http.StatusForbidden, "Failed login")
	case errors.Is(err, directory.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, grade.ErrNoGrade):
		return echo.NewHTTPError(http.StatusNotFound, "Invalid request")
	}
	s.logger.Errorf("request failed: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Failed processing request")
}

//
// GET /login?id=
// returns the session id as plain text
//
func (s *PortalService) buildLoginHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		s.logger.Debug("portal login")
		return s.login(c, login.Request{Eid: c.QueryParam("id")})
	}
}

//
// GET /loginAndCreateOrUpdate?id=&firstName=&lastName=&eMail=
// creates the account when missing and refreshes a changed profile
//
func (s *PortalService) buildLoginAndCreateHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.login(c, login.Request{
			Eid:       c.QueryParam("id"),
			FirstName: c.QueryParam("firstName"),
			LastName:  c.QueryParam("lastName"),
			Email:     c.QueryParam("eMail"),
		})
	}
}

func (s *PortalService) login(c echo.Context, req login.Request) error {
	req.IP = c.RealIP()
	if err := s.validator.ValidateLogin(c.Request().Header.Get(secretHeader), req.IP); err != nil {
		return s.httpError(err)
	}

	res, err := s.logins.Login(c.Request().Context(), req)
	if err != nil {
		return s.httpError(err)
	}
	return c.String(http.StatusOK, res.SessionID)
}

//
// GET /sites?modules=true
// lists published course sites, optionally only those with modules
//
func (s *PortalService) buildSitesHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if err := s.validator.Validate(c.Request().Header.Get(secretHeader), ip); err != nil {
			return s.httpError(err)
		}
		s.logger.Infof("client ip: %s", ip)

		withModules, _ := strconv.ParseBool(c.QueryParam("modules"))
		sites, err := s.directory.Sites(c.Request().Context(), withModules)
		if err != nil {
			return s.httpError(err)
		}

		out := make([]*SiteDTO, 0, len(sites))
		for i := range sites {
			out = append(out, s.toSiteDTO(&sites[i]))
		}
		return c.JSON(http.StatusOK, out)
	}
}

//
// GET /site?siteId=
//
func (s *PortalService) buildSiteHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if err := s.validator.Validate(c.Request().Header.Get(secretHeader), ip); err != nil {
			return s.httpError(err)
		}
		s.logger.Infof("client ip: %s", ip)

		site, err := s.directory.Site(c.Request().Context(), c.QueryParam("siteId"))
		if err != nil {
			return s.httpError(err)
		}
		return c.JSON(http.StatusOK, s.toSiteDTO(site))
	}
}

//
// GET /modules?siteId=
//
func (s *PortalService) buildModulesHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if err := s.validator.Validate(c.Request().Header.Get(secretHeader), ip); err != nil {
			return s.httpError(err)
		}

		modules, err := s.directory.Modules(c.Request().Context(), c.QueryParam("siteId"))
		if err != nil {
			return s.httpError(err)
		}

		out := make([]*ModuleDTO, 0, len(modules))
		for i := range modules {
			out = append(out, s.toModuleDTO(&modules[i]))
		}
		return c.JSON(http.StatusOK, out)
	}
}

//
// GET /module?siteId=&moduleId=
//
func (s *PortalService) buildModuleHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if err := s.validator.Validate(c.Request().Header.Get(secretHeader), ip); err != nil {
			return s.httpError(err)
		}

		m, err := s.directory.Module(c.Request().Context(), c.QueryParam("siteId"), c.QueryParam("moduleId"))
		if err != nil {
			return s.httpError(err)
		}
		return c.JSON(http.StatusOK, s.toModuleDTO(m))
	}
}

//
// POST /addUser {userEid, siteId}
// enrolls the user and pins the site for them
//
func (s *PortalService) buildAddUserHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := s.bindUserSiteRequest(c)
		if err != nil {
			return err
		}

		site, err := s.directory.AddUser(c.Request().Context(), req.UserEid, req.SiteID)
		if err != nil {
			return s.httpError(err)
		}
		return c.JSON(http.StatusOK, s.toSiteDTO(site))
	}
}

//
// GET /grade?id=&siteId=
// the first grade record of the user in the site
//
func (s *PortalService) buildCourseGradeHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		defer util.TimeTrack(s.logger, time.Now(), "course grade")

		req := &access.UserSiteRequest{UserEid: c.QueryParam("id"), SiteID: c.QueryParam("siteId")}
		if err := s.validateUserRequest(c, req); err != nil {
			return err
		}

		ctx := c.Request().Context()
		user, site, err := s.directory.ResolveUserSite(ctx, req.UserEid, req.SiteID)
		if err != nil {
			return s.httpError(err)
		}

		rec, err := s.aggregator.First(ctx, user.ID, site.ID, grade.Filter{})
		if err != nil {
			return s.httpError(err)
		}
		return c.JSON(http.StatusOK, toCourseGrade(rec, s.toSiteDTO(site)))
	}
}

//
// GET /grades?id=&siteId=&active=true
// every grade record of the user in the site
//
func (s *PortalService) buildCourseGradesHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		defer util.TimeTrack(s.logger, time.Now(), "course grades")

		req := &access.UserSiteRequest{UserEid: c.QueryParam("id"), SiteID: c.QueryParam("siteId")}
		if err := s.validateUserRequest(c, req); err != nil {
			return err
		}

		ctx := c.Request().Context()
		user, site, err := s.directory.ResolveUserSite(ctx, req.UserEid, req.SiteID)
		if err != nil {
			return s.httpError(err)
		}

		activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
		recs, err := s.aggregator.Records(ctx, user.ID, site.ID, grade.Filter{ActiveOnly: activeOnly})
		if err != nil {
			return s.httpError(err)
		}

		course := s.toSiteDTO(site)
		out := make([]*CourseGrade, 0, len(recs))
		for i := range recs {
			out = append(out, toCourseGrade(&recs[i], course))
		}
		return c.JSON(http.StatusOK, out)
	}
}

//
// GET /moduleGrade?id=&siteId=&moduleId=&active=true
// the first grade record whose assessment title contains the module title
//
func (s *PortalService) buildModuleGradeHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		defer util.TimeTrack(s.logger, time.Now(), "module grade")

		req := &access.UserSiteRequest{UserEid: c.QueryParam("id"), SiteID: c.QueryParam("siteId")}
		if err := s.validateUserRequest(c, req); err != nil {
			return err
		}
		moduleID := c.QueryParam("moduleId")
		if moduleID == "" {
			return s.httpError(access.ErrBadRequest)
		}

		ctx := c.Request().Context()
		user, site, err := s.directory.ResolveUserSite(ctx, req.UserEid, req.SiteID)
		if err != nil {
			return s.httpError(err)
		}
		m, err := s.directory.Module(ctx, site.ID, moduleID)
		if err != nil {
			return s.httpError(err)
		}

		activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
		rec, err := s.aggregator.ForModule(ctx, user.ID, site.ID, m.Page.Title, grade.Filter{ActiveOnly: activeOnly})
		if err != nil {
			return s.httpError(err)
		}
		return c.JSON(http.StatusOK, toCourseGrade(rec, s.toSiteDTO(site)))
	}
}

//
// POST /process {userEid, siteId}
// checks the user and site and reports what would be graded
//
func (s *PortalService) buildProcessHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := s.bindUserSiteRequest(c)
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		user, site, err := s.directory.ResolveUserSite(ctx, req.UserEid, req.SiteID)
		if err != nil {
			return s.httpError(err)
		}

		recs, err := s.aggregator.Records(ctx, user.ID, site.ID, grade.Filter{ActiveOnly: true})
		if err != nil {
			return s.httpError(err)
		}
		available := 0
		for _, r := range recs {
			if r.GradeAvailable {
				available++
			}
		}
		s.logger.Infof("processed %d grading records (%d graded) for user %s in site %s", len(recs), available, user.ID, site.ID)
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *PortalService) bindUserSiteRequest(c echo.Context) (*access.UserSiteRequest, error) {
	req := &access.UserSiteRequest{}
	if err := c.Bind(req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Bad request...")
	}
	if err := s.validateUserRequest(c, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *PortalService) validateUserRequest(c echo.Context, req *access.UserSiteRequest) error {
	ip := c.RealIP()
	if err := s.validator.ValidateUserRequest(c.Request().Header.Get(secretHeader), ip, req); err != nil {
		return s.httpError(err)
	}
	s.logger.Infof("client ip: %s", ip)
	return nil
}
