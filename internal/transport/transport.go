// Package transport provides http.RoundTripper decorators used by the completion clients.
package transport

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HeaderTransport adds a fixed set of headers to every request
type HeaderTransport struct {
	base    http.RoundTripper
	headers http.Header
}

// WithHeaders wraps base so that every request carries headers. A nil base means http.DefaultTransport.
func WithHeaders(base http.RoundTripper, headers http.Header) *HeaderTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &HeaderTransport{base: base, headers: headers}
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request, a RoundTripper must not mutate the one it was given
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(cl)
}

// LoggingTransport logs each round trip at debug level. Headers and bodies are never logged since they carry the
// credential and the conversation.
type LoggingTransport struct {
	base   http.RoundTripper
	logger logrus.FieldLogger
}

// WithLogging wraps base so that every round trip is logged to logger. A nil base means http.DefaultTransport.
func WithLogging(base http.RoundTripper, logger logrus.FieldLogger) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &LoggingTransport{base: base, logger: logger}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	fields := logrus.Fields{
		"method":   req.Method,
		"url":      req.URL.Redacted(),
		"duration": time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		t.logger.WithFields(fields).WithError(err).Debug("request failed")
		return resp, err
	}
	fields["status"] = resp.StatusCode
	t.logger.WithFields(fields).Debug("request completed")
	return resp, nil
}
