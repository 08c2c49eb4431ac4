package httpclient

import (
	"net/http"
	"time"
)

// New builds a client with connection reuse and the given timeout.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Default is shared by remote store clients that are not given their own.
var Default = New(30 * time.Second)
