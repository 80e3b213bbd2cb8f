package otfportal

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-portal/internal/access"
	"github.com/nsip/otf-portal/internal/directory"
	"github.com/nsip/otf-portal/internal/grade"
	"github.com/nsip/otf-portal/internal/login"
	"github.com/nsip/otf-portal/internal/platform"
	"github.com/pkg/errors"
)

const (
	DefaultSiteMarker   = "[course]"
	DefaultModuleMarker = "Module"
)

//
// Platform is the full set of platform services the portal
// endpoints depend on
//
type Platform interface {
	platform.UserDirectory
	platform.SessionManager
	platform.UsageLog
	platform.SiteService
	platform.PortalService
	platform.AssessmentService
}

type PortalService struct {
	// embedded web server to handle portal requests
	e *echo.Echo
	// the unique name of this service when running multiple instances
	serviceName string
	// the unique id of this service when running multiple instances
	serviceID string
	// the host address this service instance is running on
	serviceHost string
	// the port that this service instance is running on
	servicePort int
	// public base url of the platform portal
	portalURL string
	// shared secret and trusted address settings
	access access.Settings
	// reverse proxies allowed to report the caller address
	trustedProxies []*net.IPNet
	// title markers for course sites and module pages
	markers directory.Markers
	// location of the bbolt platform store
	dbPath string
	// optional yaml snapshot loaded into the store
	seedFile string
	logLevel log.Lvl

	backend      Platform
	closeBackend func() error

	logger     *log.Logger
	validator  *access.Validator
	logins     *login.Flow
	directory  *directory.Directory
	aggregator *grade.Aggregator
}

//
// create a new service instance
//
func New(options ...Option) (*PortalService, error) {

	srvc := PortalService{logLevel: log.INFO}

	if err := srvc.setOptions(options...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(srvc.access.Secret) == "" {
		return nil, errors.New("portal secret must be supplied")
	}
	if err := srvc.setDefaults(); err != nil {
		return nil, err
	}

	srvc.logger = log.New("otf-portal")
	srvc.logger.SetLevel(srvc.logLevel)
	srvc.logger.SetHeader("${time_rfc3339} ${level} ${prefix}")

	srvc.validator = access.New(srvc.access, srvc.logger)
	srvc.logins = login.NewFlow(srvc.backend, srvc.backend, srvc.backend, srvc.logger)
	srvc.directory = directory.New(srvc.backend, srvc.backend, srvc.backend, srvc.markers, srvc.logger)
	srvc.aggregator = grade.NewAggregator(srvc.backend)

	srvc.e = echo.New()
	srvc.e.HideBanner = true
	srvc.e.IPExtractor = srvc.ipExtractor()
	srvc.e.Logger.SetLevel(srvc.logLevel)
	srvc.registerRoutes()

	return &srvc, nil
}

//
// ipExtractor decides where the caller address used by the ip
// check comes from. Forwarding headers are only honoured when the
// connecting peer is one of the configured trusted proxies.
//
func (s *PortalService) ipExtractor() echo.IPExtractor {
	if len(s.trustedProxies) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range s.trustedProxies {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func (s *PortalService) registerRoutes() {
	// add pingable method to know we're up
	s.e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, "OK")
	})

	s.e.GET("/login", s.buildLoginHandler())
	s.e.GET("/loginAndCreateOrUpdate", s.buildLoginAndCreateHandler())

	s.e.GET("/sites", s.buildSitesHandler())
	s.e.GET("/site", s.buildSiteHandler())
	s.e.GET("/modules", s.buildModulesHandler())
	s.e.GET("/module", s.buildModuleHandler())
	s.e.POST("/addUser", s.buildAddUserHandler())

	s.e.GET("/grade", s.buildCourseGradeHandler())
	s.e.GET("/grades", s.buildCourseGradesHandler())
	s.e.GET("/moduleGrade", s.buildModuleGradeHandler())
	s.e.POST("/process", s.buildProcessHandler())
}

//
// start the service running
//
func (s *PortalService) Start() {

	address := fmt.Sprintf("%s:%d", s.serviceHost, s.servicePort)
	go func(addr string) {
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			s.e.Logger.Info("error starting server: ", err, ", shutting down...")
			// attempt clean shutdown by raising sig int
			p, _ := os.FindProcess(os.Getpid())
			p.Signal(os.Interrupt)
		}
	}(address)

}

//
// shut the server down gracefully
//
func (s *PortalService) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(ctx); err != nil {
		s.logger.Error("could not shut down server cleanly: ", err)
	}
	if s.closeBackend != nil {
		if err := s.closeBackend(); err != nil {
			s.logger.Error("could not close platform store: ", err)
		}
	}
}

func (s *PortalService) PrintConfig() {

	fmt.Println("\n\tOTF-Portal Service Configuration")
	fmt.Println("\t----------------------------------")

	s.printID()
	s.printAccessConfig()
	s.printPlatformConfig()

}

func (s *PortalService) printID() {
	fmt.Println("\tservice name:\t\t", s.serviceName)
	fmt.Println("\tservice ID:\t\t", s.serviceID)
	fmt.Println("\tservice host:\t\t", s.serviceHost)
	fmt.Println("\tservice port:\t\t", s.servicePort)
}

func (s *PortalService) printAccessConfig() {
	// display only the tail of the secret
	secret := s.access.Secret
	if len(secret) > 4 {
		secret = secret[len(secret)-4:]
	}
	fmt.Println("\tportal secret(partial):\t", secret)
	fmt.Println("\tip check:\t\t", s.access.IPCheck)
	fmt.Println("\ttrusted ips:\t\t", s.access.PortalIPs)
	if len(s.trustedProxies) > 0 {
		proxies := make([]string, 0, len(s.trustedProxies))
		for _, n := range s.trustedProxies {
			proxies = append(proxies, n.String())
		}
		fmt.Println("\ttrusted proxies:\t", strings.Join(proxies, ","))
	}
}

func (s *PortalService) printPlatformConfig() {
	fmt.Println("\tportal url:\t\t", s.portalURL)
	fmt.Println("\tsite marker:\t\t", s.markers.Site)
	fmt.Println("\tmodule marker:\t\t", s.markers.Module)
	if s.dbPath != "" {
		fmt.Println("\tplatform store:\t\t", s.dbPath)
	}
	if s.seedFile != "" {
		fmt.Println("\tplatform seed:\t\t", s.seedFile)
	}
}
