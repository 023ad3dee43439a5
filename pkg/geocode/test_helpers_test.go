package geocode

import (
	"net/http"
	"net/url"
)

// newRewriteClient returns a client that sends requests aimed at the
// production endpoint's host to the test server, keeping path and query.
func newRewriteClient(testServerURL, productionURL string) *http.Client {
	target, _ := url.Parse(testServerURL)
	prod, _ := url.Parse(productionURL)
	return &http.Client{Transport: hostRedirect{from: prod.Host, to: target}}
}

type hostRedirect struct {
	from string
	to   *url.URL
}

func (h hostRedirect) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != h.from {
		return http.DefaultTransport.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = h.to.Scheme
	out.URL.Host = h.to.Host
	out.Host = h.to.Host
	return http.DefaultTransport.RoundTrip(out)
}
