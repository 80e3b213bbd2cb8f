package otfportal

import (
	"context"
	"net"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-portal/internal/platform/boltstore"
	"github.com/nsip/otf-portal/internal/util"
	"github.com/pkg/errors"
)

type Option func(*PortalService) error

//
// apply all supplied options to the service
// returns any error encountered while applying the options
//
func (srv *PortalService) setOptions(options ...Option) error {
	for _, opt := range options {
		if err := opt(srv); err != nil {
			return err
		}
	}
	return nil
}

//
// fill in anything left unset by the options
//
func (srv *PortalService) setDefaults() error {
	if srv.serviceName == "" {
		srv.serviceName = util.GenerateName()
	}
	if srv.serviceID == "" {
		srv.serviceID = util.GenerateID()
	}
	if srv.serviceHost == "" {
		srv.serviceHost = "localhost"
	}
	if srv.servicePort == 0 {
		port, err := util.AvailablePort()
		if err != nil {
			return err
		}
		srv.servicePort = port
	}
	if srv.portalURL == "" {
		srv.portalURL = "http://localhost:8080"
	}
	if srv.markers.Module == "" {
		srv.markers.Module = DefaultModuleMarker
	}
	if srv.markers.Site == "" {
		srv.markers.Site = DefaultSiteMarker
	}
	if srv.backend == nil {
		if srv.dbPath == "" {
			return errors.New("either a platform backend or a store path must be supplied")
		}
		store, err := boltstore.Open(srv.dbPath)
		if err != nil {
			return err
		}
		srv.backend = store
		srv.closeBackend = store.Close
		if srv.seedFile != "" {
			if err := store.LoadSeedFile(context.Background(), srv.seedFile); err != nil {
				store.Close()
				return err
			}
		}
	}
	return nil
}

//
// Name for this service instance, leave blank to auto-generate
//
func Name(name string) Option {
	return func(s *PortalService) error {
		s.serviceName = name
		return nil
	}
}

//
// ID for this service instance, leave blank to auto-generate
//
func ID(id string) Option {
	return func(s *PortalService) error {
		s.serviceID = id
		return nil
	}
}

//
// Host name or address for this service
//
func Host(hostName string) Option {
	return func(s *PortalService) error {
		s.serviceHost = hostName
		return nil
	}
}

//
// Port for this service, 0 picks an available port
//
func Port(port int) Option {
	return func(s *PortalService) error {
		if port < 0 {
			return errors.Errorf("invalid port %d", port)
		}
		s.servicePort = port
		return nil
	}
}

//
// Secret is the portal secret shared with external integration points,
// it must be supplied
//
func Secret(secret string) Option {
	return func(s *PortalService) error {
		if strings.TrimSpace(secret) == "" {
			return errors.New("portal secret must be supplied")
		}
		s.access.Secret = secret
		return nil
	}
}

//
// PortalIPs is the list of trusted caller addresses, callers are
// matched by containment in this string
//
func PortalIPs(ips string) Option {
	return func(s *PortalService) error {
		s.access.PortalIPs = ips
		return nil
	}
}

//
// IPCheck turns the trusted caller check on or off
//
func IPCheck(check bool) Option {
	return func(s *PortalService) error {
		s.access.IPCheck = check
		return nil
	}
}

//
// TrustedProxies is a comma separated list of proxy addresses or
// CIDR ranges. Requests arriving through one of them are attributed
// to the address in X-Forwarded-For, all other requests to the
// connecting peer. Leave blank when the service is reached directly.
//
func TrustedProxies(proxies string) Option {
	return func(s *PortalService) error {
		s.trustedProxies = nil
		for _, p := range strings.Split(proxies, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.Contains(p, "/") {
				if ip := net.ParseIP(p); ip != nil && ip.To4() != nil {
					p += "/32"
				} else {
					p += "/128"
				}
			}
			_, n, err := net.ParseCIDR(p)
			if err != nil {
				return errors.Wrapf(err, "invalid trusted proxy %q", p)
			}
			s.trustedProxies = append(s.trustedProxies, n)
		}
		return nil
	}
}

//
// PortalURL is the public base url of the platform portal,
// used to build site and module urls
//
func PortalURL(u string) Option {
	return func(s *PortalService) error {
		s.portalURL = u
		return nil
	}
}

//
// SiteMarker is the substring a site title carries when it
// is a course with modules
//
func SiteMarker(marker string) Option {
	return func(s *PortalService) error {
		s.markers.Site = marker
		return nil
	}
}

//
// ModuleMarker is the substring a page title carries when it
// is a module
//
func ModuleMarker(marker string) Option {
	return func(s *PortalService) error {
		s.markers.Module = marker
		return nil
	}
}

//
// StorePath of the bbolt platform store, used when no backend is given
//
func StorePath(path string) Option {
	return func(s *PortalService) error {
		s.dbPath = path
		return nil
	}
}

//
// SeedFile is a yaml platform snapshot applied to the store on start
//
func SeedFile(path string) Option {
	return func(s *PortalService) error {
		s.seedFile = path
		return nil
	}
}

//
// Backend supplies the platform services directly
//
func Backend(p Platform) Option {
	return func(s *PortalService) error {
		if p == nil {
			return errors.New("nil platform backend")
		}
		s.backend = p
		return nil
	}
}

//
// LogLevel of the service and its web server, one of
// debug, info, warn, error, off
//
func LogLevel(level string) Option {
	return func(s *PortalService) error {
		switch strings.ToLower(level) {
		case "debug":
			s.logLevel = log.DEBUG
		case "", "info":
			s.logLevel = log.INFO
		case "warn":
			s.logLevel = log.WARN
		case "error":
			s.logLevel = log.ERROR
		case "off":
			s.logLevel = log.OFF
		default:
			return errors.Errorf("unknown log level %q", level)
		}
		return nil
	}
}
