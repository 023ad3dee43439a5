package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// nominatimPlace is one element of the Nominatim search response. Coordinates
// are returned as strings.
type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// NominatimProvider geocodes via the OpenStreetMap Nominatim search API.
type NominatimProvider struct {
	httpProvider
	countryCodes string
}

// NewNominatimProvider creates a Nominatim provider. The public instance
// allows one request per second, which is the default rate limit.
func NewNominatimProvider(opts ...Option) *NominatimProvider {
	return &NominatimProvider{
		httpProvider: newHTTPProvider("nominatim", nominatimSearchURL, 1, opts),
		countryCodes: "fr",
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return p.baseURL != "" }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{
		"q":            {query},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {p.countryCodes},
	}

	body, err := p.get(ctx, "nominatim", p.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim invalid lat %q", place.Lat)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim invalid lon %q", place.Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		Source:      "nominatim",
		DisplayName: place.DisplayName,
		Score:       place.Importance,
		Matched:     true,
	}, nil
}
