package projector

import (
	geojson "github.com/paulmach/go.geojson"
)

// FeatureCollection renders the view's map points as GeoJSON for tile-map
// clients. Coordinates follow GeoJSON's [lng, lat] order.
func (v View) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range v.MapPoints {
		f := geojson.NewPointFeature([]float64{p.Lng, p.Lat})
		f.ID = p.ID
		f.SetProperty("severity", string(p.Severity))
		f.SetProperty("title", p.Title)
		f.SetProperty("country", p.Country)
		if p.CountryCode != "" {
			f.SetProperty("country_code", p.CountryCode)
		}
		f.SetProperty("source_url", p.SourceURL)
		f.SetProperty("color", p.Color)
		f.SetProperty("radius", p.Radius)
		fc.AddFeature(f)
	}
	return fc
}
