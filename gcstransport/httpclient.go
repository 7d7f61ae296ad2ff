package gcstransport

import (
	"net"
	"net/http"
)

// defaultHTTPClient builds the client used whenever a caller doesn't
// supply their own. Connect and response-header waits are bounded by
// requestTimeout at the transport level, rather than by a context
// deadline on the request, so a streaming object GET isn't cut off
// partway through a long body transfer once headers have arrived.
func defaultHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: requestTimeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: requestTimeout,
		},
	}
}
