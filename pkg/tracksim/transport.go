package tracksim

import "net/http"

// Transport returns an http.RoundTripper that answers requests from the
// simulator without a network listener. While the simulator is disabled
// requests fall through to base, so a client can be pointed at a real
// deployment and the simulator toggled in front of it.
func (s *Simulator) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &simTransport{sim: s, base: base}
}

type simTransport struct {
	sim  *Simulator
	base http.RoundTripper
}

// RoundTrip resolves the session once, so a request that races Disable
// completes against the state it started with.
func (t *simTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sess := t.sim.currentSession()
	if sess == nil {
		return t.base.RoundTrip(req)
	}
	rec := newResponseRecorder()
	if req.URL.Path == "/healthz" {
		rec.WriteHeader(http.StatusOK)
		_, _ = rec.Write([]byte("ok"))
	} else {
		sess.handler.ServeHTTP(rec, req)
	}
	return rec.response(req), nil
}
