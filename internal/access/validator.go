//
// Package access guards the portal endpoints with a shared portal
// secret and, optionally, an allowlist of trusted caller addresses.
//
package access

import (
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
)

var (
	// required fields or the secret header are blank
	ErrBadRequest = errors.New("bad request")
	// secret is blank or does not match
	ErrSecretMismatch = errors.New("secret mismatch")
	// ip checking is on and the caller is not trusted
	ErrIPNotAllowed = errors.New("trusted ip not found")
)

type Settings struct {
	// the portal secret shared with external integration points
	Secret string
	// trusted caller addresses, any separator, matched by containment
	PortalIPs string
	// enables the trusted address check
	IPCheck bool
}

// the (user, site) pair carried by every user-scoped call
type UserSiteRequest struct {
	UserEid string `json:"userEid" form:"userEid" query:"id"`
	SiteID  string `json:"siteId" form:"siteId" query:"siteId"`
}

type Validator struct {
	settings Settings
	logger   *log.Logger
}

func New(settings Settings, logger *log.Logger) *Validator {
	if logger == nil {
		logger = log.New("access")
	}
	return &Validator{settings: settings, logger: logger}
}

//
// Validate checks the shared secret verbatim and then, when enabled,
// that the caller ip appears in the configured allowlist string.
//
func (v *Validator) Validate(secret, ip string) error {
	if isBlank(v.settings.Secret) || isBlank(secret) || v.settings.Secret != secret {
		v.logger.Infof("portal secret mismatch ip=%s", ip)
		return ErrSecretMismatch
	}

	if v.settings.IPCheck {
		if isBlank(v.settings.PortalIPs) || !strings.Contains(v.settings.PortalIPs, ip) {
			v.logger.Infof("trusted ip not found ip=%s", ip)
			return ErrIPNotAllowed
		}
	}
	return nil
}

// ValidateLogin requires a non-blank secret header before validating
func (v *Validator) ValidateLogin(secret, ip string) error {
	if isBlank(secret) {
		return ErrBadRequest
	}
	return v.Validate(secret, ip)
}

// ValidateUserRequest requires the secret, user and site before validating
func (v *Validator) ValidateUserRequest(secret, ip string, req *UserSiteRequest) error {
	if req == nil || isBlank(secret) || isBlank(req.UserEid) || isBlank(req.SiteID) {
		return ErrBadRequest
	}
	return v.Validate(secret, ip)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
