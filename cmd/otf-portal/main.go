package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	otfportal "github.com/nsip/otf-portal"
	"github.com/peterbourgon/ff/v3"
)

func main() {

	fs := flag.NewFlagSet("otf-portal", flag.ExitOnError)
	var (
		_            = fs.String("config", "", "config file (optional), json format.")
		serviceName  = fs.String("name", "", "name for this portal service instance")
		serviceID    = fs.String("id", "", "id for this portal service instance, leave blank to auto-generate a unique id")
		serviceHost  = fs.String("host", "localhost", "name/address of host for this service")
		servicePort  = fs.Int("port", 0, "port to run service on, if not specified will assign an available port automatically")
		secret       = fs.String("portalSecret", "", "portal secret shared with external integration points (required)")
		portalIPs    = fs.String("portalIP", "", "trusted caller addresses, a caller is trusted when its ip appears in this string")
		ipCheck      = fs.Bool("ipCheck", false, "only accept callers listed in portalIP")
		proxies      = fs.String("trustedProxies", "", "comma separated proxy addresses/CIDRs whose X-Forwarded-For is honoured, blank to use the connecting address")
		portalURL    = fs.String("portalURL", "http://localhost:8080", "public base url of the platform portal")
		siteMarker   = fs.String("siteMarker", otfportal.DefaultSiteMarker, "title marker of course sites that carry modules")
		moduleMarker = fs.String("moduleMarker", otfportal.DefaultModuleMarker, "title marker of module pages")
		storePath    = fs.String("store", "./data/platform.db", "location of the platform store")
		seedFile     = fs.String("seed", "", "yaml platform snapshot to load into the store on start (optional)")
		logLevel     = fs.String("logLevel", "info", "one of debug, info, warn, error, off")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.JSONParser),
		ff.WithEnvVarPrefix("OTF_PORTAL_SRVC"),
	); err != nil {
		fmt.Printf("\nCannot parse otf-portal configuration:\n%s\n\n", err)
		os.Exit(1)
	}

	opts := []otfportal.Option{
		otfportal.Name(*serviceName),
		otfportal.ID(*serviceID),
		otfportal.Host(*serviceHost),
		otfportal.Port(*servicePort),
		otfportal.Secret(*secret),
		otfportal.PortalIPs(*portalIPs),
		otfportal.IPCheck(*ipCheck),
		otfportal.TrustedProxies(*proxies),
		otfportal.PortalURL(*portalURL),
		otfportal.SiteMarker(*siteMarker),
		otfportal.ModuleMarker(*moduleMarker),
		otfportal.StorePath(*storePath),
		otfportal.SeedFile(*seedFile),
		otfportal.LogLevel(*logLevel),
	}

	srvc, err := otfportal.New(opts...)
	if err != nil {
		fmt.Printf("\nCannot create otf-portal service:\n%s\n\n", err)
		os.Exit(1)
	}

	srvc.PrintConfig()

	// signal handler for shutdown
	closed := make(chan struct{})
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\notf-portal shutting down")
		srvc.Shutdown()
		fmt.Println("otf-portal closed")
		close(closed)
	}()

	srvc.Start()

	// block until shutdown by sig-handler
	<-closed

}
