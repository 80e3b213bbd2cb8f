package util

import (
	"crypto/rand"
	"fmt"
	"io"
	"io/ioutil"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/nats-io/nuid"
	"github.com/pkg/errors"
	hashids "github.com/speps/go-hashids"
)

var (
	once      sync.Once
	netClient *http.Client
)

//
// create a singleton http client to ensure
// maximum reuse of connection
//
func newNetClient() *http.Client {
	once.Do(func() {
		var netTransport = &http.Transport{
			Dial: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).Dial,
			TLSHandshakeTimeout: 2 * time.Second,
		}
		netClient = &http.Client{
			Timeout:   time.Second * 5,
			Transport: netTransport,
		}
	})

	return netClient
}

//
// generate a short useful unique name - hashid in this case
//
func GenerateName() string {

	name := "portal"

	number0, err := rand.Int(rand.Reader, big.NewInt(10000000))
	if err != nil {
		log.Warn("error generating random name seed: ", err)
		return name
	}

	hd := hashids.NewData()
	hd.Salt = "otf-portal random name generator"
	hd.MinLength = 5
	h, err := hashids.NewWithData(hd)
	if err != nil {
		log.Warn("error auto-generating name: ", err)
		return name
	}
	e, err := h.EncodeInt64([]int64{number0.Int64()})
	if err != nil {
		log.Warn("error encoding auto-generated name: ", err)
		return name
	}

	return e
}

//
// generate a unique id - nuid in this case
//
func GenerateID() string {

	return nuid.Next()

}

//
// HTTPError carries the status of a failed network call
// so callers can report 4xx outcomes as such
//
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		return fmt.Sprintf("network call failed with response: %d", e.StatusCode)
	}
	return fmt.Sprintf("network call failed with response: %d: %s", e.StatusCode, msg)
}

//
// Makes network calls to the portal service, and returns
// the response payload as bytes, or an error
//
// method - http method to invoke (post/put/get etc.)
// header - map of headers to include in request
// body - reader for any content to supply as request body
//
func Fetch(method string, url string, header map[string]string, body io.Reader) ([]byte, error) {

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build request")
	}

	for key, value := range header {
		req.Header.Add(key, value)
	}

	res, err := newNetClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "network call failed")
	}
	defer res.Body.Close()

	respByte, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read Fetch response")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: string(respByte)}
	}

	return respByte, nil
}

//
// small utility function embedded in major ops
// to log a performance indicator.
//
func TimeTrack(logger *log.Logger, start time.Time, name string) {
	elapsed := time.Since(start)
	logger.Debugf("%s took %s", name, elapsed.Truncate(time.Millisecond).String())
}

//
// find an available tcp port
//
func AvailablePort() (int, error) {

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, errors.Wrap(err, "cannot acquire a tcp port")
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port, nil

}
