//
// command line client for the otf-portal service, logs a user in
// and prints their sites and grades
//
package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/nsip/otf-portal/internal/util"
	"github.com/peterbourgon/ff/v3"
	"github.com/tidwall/gjson"
)

const usage = `usage: otf-portal-client [flags] <login|sites|modules|grades|moduleGrade>`

func main() {

	fs := flag.NewFlagSet("otf-portal-client", flag.ExitOnError)
	var (
		server   = fs.String("server", "http://localhost:1330", "base url of the otf-portal service")
		secret   = fs.String("portalSecret", "", "portal secret shared with the service")
		userID   = fs.String("user", "", "platform user id (eid)")
		siteID   = fs.String("site", "", "site id")
		moduleID = fs.String("module", "", "module (page) id")
		active   = fs.Bool("active", false, "only active grading records")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("OTF_PORTAL_CLIENT")); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Println(usage)
		os.Exit(2)
	}

	headers := map[string]string{
		"Authorization": *secret,
		"Accept":        "application/json",
	}
	base := strings.TrimRight(*server, "/")

	q := url.Values{}
	var path string
	switch fs.Arg(0) {
	case "login":
		path = "/login"
		q.Set("id", *userID)
	case "sites":
		path = "/sites"
	case "modules":
		path = "/modules"
		q.Set("siteId", *siteID)
	case "grades":
		path = "/grades"
		q.Set("id", *userID)
		q.Set("siteId", *siteID)
		if *active {
			q.Set("active", "true")
		}
	case "moduleGrade":
		path = "/moduleGrade"
		q.Set("id", *userID)
		q.Set("siteId", *siteID)
		q.Set("moduleId", *moduleID)
		if *active {
			q.Set("active", "true")
		}
	default:
		fmt.Println(usage)
		os.Exit(2)
	}

	target := base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	res, err := util.Fetch(http.MethodGet, target, headers, nil)
	if err != nil {
		fmt.Println("request failed: ", err)
		os.Exit(1)
	}

	switch fs.Arg(0) {
	case "login":
		fmt.Println("session:", string(res))
	case "sites", "modules":
		gjson.ParseBytes(res).ForEach(func(_, v gjson.Result) bool {
			fmt.Printf("%-24s %s\n", v.Get("id").String(), v.Get("title").String())
			if title := v.Get("moduleTitle"); title.Exists() {
				fmt.Printf("%-24s   %d: %s\n", "", v.Get("position").Int(), title.String())
			}
			return true
		})
	case "grades":
		gjson.ParseBytes(res).ForEach(func(_, v gjson.Result) bool {
			printGrade(v)
			return true
		})
	case "moduleGrade":
		printGrade(gjson.ParseBytes(res))
	}
}

func printGrade(v gjson.Result) {
	if !v.Get("gradeAvailable").Bool() {
		fmt.Printf("%-40s  no grade\n", v.Get("assessmentName").String())
		return
	}
	fmt.Printf("%-40s %7.2f%%  (%g/%g)\n",
		v.Get("assessmentName").String(),
		v.Get("percent").Float(),
		v.Get("correct").Float(),
		v.Get("total").Float(),
	)
}
