// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"io"
	"net/http"
	"strings"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

func (hr *HttpReader) get(route string) (int, string, error) {
	url := "http://" + hr.serverIP + ":" + hr.serverPort + route

	resp, err := http.Get(url)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

func (hr *HttpReader) GetStatus() (int, string, error) {
	return hr.get(ROUTE_STATUS)
}

func (hr *HttpReader) GetAggregated(mine bool) (int, string, error) {
	route := ROUTE_AGGREGATED
	if mine {
		route += "?mine=1"
	}
	return hr.get(route)
}

func (hr *HttpReader) GetSuspicious() (int, string, error) {
	return hr.get(ROUTE_SUSPICIOUS)
}

func (hr *HttpReader) GetPending() (int, string, error) {
	return hr.get(ROUTE_PENDING)
}

func (hr *HttpReader) TriggerRefresh() (int, string, error) {
	url := "http://" + hr.serverIP + ":" + hr.serverPort + ROUTE_REFRESH

	resp, err := http.Post(url, "application/json", strings.NewReader("{}"))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}
