package openmeteo

import (
	"context"
	"strings"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
)

// knownPlaces pins flood-prone places whose live geocoding results are
// ambiguous (states resolving to small towns, regions with no point match).
// Keys are lower-cased, trimmed queries.
var knownPlaces = map[string]domain.Place{
	// India: Kerala and major cities.
	"kerala":     {Name: "Kerala", Country: "India", Lat: 10.8505, Lon: 76.2711},
	"kottayam":   {Name: "Kottayam", Country: "India", Lat: 9.5916, Lon: 76.5222},
	"kochi":      {Name: "Kochi", Country: "India", Lat: 9.9312, Lon: 76.2673},
	"ernakulam":  {Name: "Ernakulam", Country: "India", Lat: 9.9816, Lon: 76.2999},
	"alappuzha":  {Name: "Alappuzha", Country: "India", Lat: 9.4981, Lon: 76.3388},
	"trivandrum": {Name: "Thiruvananthapuram", Country: "India", Lat: 8.5241, Lon: 76.9366},
	"kozhikode":  {Name: "Kozhikode", Country: "India", Lat: 11.2588, Lon: 75.7804},
	"delhi":      {Name: "Delhi", Country: "India", Lat: 28.7041, Lon: 77.1025},
	"new delhi":  {Name: "New Delhi", Country: "India", Lat: 28.6139, Lon: 77.2090},
	"mumbai":     {Name: "Mumbai", Country: "India", Lat: 19.0760, Lon: 72.8777},
	"chennai":    {Name: "Chennai", Country: "India", Lat: 13.0827, Lon: 80.2707},
	"kolkata":    {Name: "Kolkata", Country: "India", Lat: 22.5726, Lon: 88.3639},

	// Indonesia.
	"aceh":         {Name: "Aceh", Country: "Indonesia", Lat: 4.6951, Lon: 96.7494},
	"jakarta":      {Name: "Jakarta", Country: "Indonesia", Lat: -6.2088, Lon: 106.8456},
	"sunda":        {Name: "Sunda Region", Country: "Indonesia", Lat: -6.405, Lon: 106.064},
	"sunda kelapa": {Name: "Sunda Kelapa Port", Country: "Indonesia", Lat: -6.1263, Lon: 106.8133},

	// Sri Lanka.
	"colombo":   {Name: "Colombo", Country: "Sri Lanka", Lat: 6.9271, Lon: 79.8612},
	"sri lanka": {Name: "Sri Lanka", Country: "Sri Lanka", Lat: 7.8731, Lon: 80.7718},
}

// OverrideGeocoder answers from the static table before falling back to inner.
type OverrideGeocoder struct {
	inner     domain.Geocoder
	overrides map[string]domain.Place
	metrics   *observability.Metrics
}

// NewOverrideGeocoder wraps inner with the built-in table of known places.
func NewOverrideGeocoder(inner domain.Geocoder, metrics *observability.Metrics) *OverrideGeocoder {
	return &OverrideGeocoder{inner: inner, overrides: knownPlaces, metrics: metrics}
}

func (g *OverrideGeocoder) Resolve(ctx context.Context, place string) (domain.Place, error) {
	if p, ok := g.overrides[strings.ToLower(strings.TrimSpace(place))]; ok {
		g.metrics.GeocodeRequests.WithLabelValues("override").Inc()
		return p, nil
	}
	return g.inner.Resolve(ctx, place)
}
