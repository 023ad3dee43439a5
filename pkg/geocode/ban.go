package geocode

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/rotisserie/eris"
)

const banSearchURL = "https://api-adresse.data.gouv.fr/search/"

// banResponse is the GeoJSON response of the Base Adresse Nationale search API.
type banResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"properties"`
	} `json:"features"`
}

// BANProvider geocodes via the French Base Adresse Nationale API.
type BANProvider struct {
	httpProvider
	minScore float64
}

// NewBANProvider creates a BAN provider. Matches scoring below minScore are
// reported as unmatched.
func NewBANProvider(minScore float64, opts ...Option) *BANProvider {
	return &BANProvider{
		httpProvider: newHTTPProvider("ban", banSearchURL, 50, opts),
		minScore:     minScore,
	}
}

// Name implements Provider.
func (p *BANProvider) Name() string { return "ban" }

// Available implements Provider.
func (p *BANProvider) Available() bool { return p.baseURL != "" }

// Geocode implements Provider.
func (p *BANProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{
		"q":     {query},
		"limit": {"1"},
	}

	body, err := p.get(ctx, "ban", p.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var banResp banResponse
	if err := json.Unmarshal(body, &banResp); err != nil {
		return nil, eris.Wrap(err, "geocode: ban parse response")
	}

	if len(banResp.Features) == 0 {
		return &Result{Matched: false, Source: "ban"}, nil
	}

	f := banResp.Features[0]
	if len(f.Geometry.Coordinates) < 2 {
		return nil, eris.New("geocode: ban feature without coordinates")
	}
	if f.Properties.Score < p.minScore {
		return &Result{Matched: false, Source: "ban", Score: f.Properties.Score}, nil
	}

	return &Result{
		Latitude:    f.Geometry.Coordinates[1],
		Longitude:   f.Geometry.Coordinates[0],
		Source:      "ban",
		DisplayName: f.Properties.Label,
		Score:       f.Properties.Score,
		Matched:     true,
	}, nil
}
