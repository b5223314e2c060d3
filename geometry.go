package main

import (
	"encoding/json"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	geojson "github.com/paulmach/orb/geojson"
)

// ClipGeometry represents a single polygon or multipolygon in WGS84,
// non-empty and topologically valid, produced by union-reduction of the
// input features of one clip source.
type ClipGeometry struct {
	GeoJSON string     // geometry encoded as GeoJSON (WGS84)
	Type    string     // "Polygon" or "MultiPolygon"
	Bounds  [4]float64 // minLon, minLat, maxLon, maxLat (WGS84)
}

// ClipSource produces a ClipGeometry. The three variants (drawn box,
// administrative region lookup, vector canvas layer) are mutually exclusive
// per request.
type ClipSource interface {
	Resolve() (*ClipGeometry, error)
	Describe() string
}

// PostedShape represents a geometry posted as plain GeoJSON; it clips with
// the exact posted shape.
type PostedShape struct {
	Geometry orb.Geometry
}

// DrawnBox represents a shape drawn on the map canvas (the [geometry,
// bounds] wire form); it resolves to the axis-aligned rectangle of the
// shape's bounding box, normalizing freehand rectangles.
type DrawnBox struct {
	Geometry orb.Geometry
}

// RegionLookup represents an administrative region selector resolved via the
// external Region Lookup Service.
type RegionLookup struct {
	Selector RegionSelector
}

// VectorLayerSelection represents a named layer of the vector canvas store.
type VectorLayerSelection struct {
	Layer string
}

/*
clipSourceFromRequest picks the clip geometry source of a statistics request.
Exactly one of geometry, region, vector_layer must be present.
*/
func clipSourceFromRequest(request *StatisticsRequest) (ClipSource, error) {
	sources := 0
	if len(request.Geometry) > 0 {
		sources++
	}
	if request.Region != nil {
		sources++
	}
	if request.VectorLayer != "" {
		sources++
	}
	if sources == 0 {
		return nil, fmt.Errorf("%w: set one of geometry, region, vector_layer", ErrNoClipGeometry)
	}
	if sources > 1 {
		return nil, fmt.Errorf("%w: geometry, region and vector_layer are mutually exclusive", ErrRequest)
	}

	switch {
	case len(request.Geometry) > 0:
		geometry, drawn, err := parseGeometryInput(request.Geometry)
		if err != nil {
			return nil, err
		}
		// only canvas-drawn shapes normalize to their bounding box; plain
		// GeoJSON input clips with the exact posted shape
		if drawn {
			return DrawnBox{Geometry: geometry}, nil
		}
		return PostedShape{Geometry: geometry}, nil
	case request.Region != nil:
		return RegionLookup{Selector: *request.Region}, nil
	default:
		return VectorLayerSelection{Layer: request.VectorLayer}, nil
	}
}

/*
parseGeometryInput parses the geometry field of a request. Accepted forms:
GeoJSON Geometry, Feature, FeatureCollection (first feature wins), or the
canvas wire format [geometry, bounds] where the first array element is the
geometry. The drawn flag reports the canvas form, which is the only form
subject to bounding-box normalization.
*/
func parseGeometryInput(raw json.RawMessage) (geometry orb.Geometry, drawn bool, err error) {
	// canvas wire format: a JSON array whose first element is the geometry
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err == nil {
		if len(elements) == 0 {
			return nil, false, fmt.Errorf("%w: empty geometry array", ErrRequest)
		}
		raw = elements[0]
		drawn = true
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, drawn, fmt.Errorf("%w: unsupported geometry format: %v", ErrRequest, err)
	}

	switch envelope.Type {
	case "FeatureCollection":
		collection, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, drawn, fmt.Errorf("%w: invalid feature collection: %v", ErrRequest, err)
		}
		if len(collection.Features) == 0 {
			return nil, drawn, fmt.Errorf("%w: feature collection is empty", ErrRequest)
		}
		return collection.Features[0].Geometry, drawn, nil
	case "Feature":
		feature, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, drawn, fmt.Errorf("%w: invalid feature: %v", ErrRequest, err)
		}
		return feature.Geometry, drawn, nil
	case "":
		return nil, drawn, fmt.Errorf("%w: geometry has no type", ErrRequest)
	default:
		decoded, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, drawn, fmt.Errorf("%w: invalid geometry: %v", ErrRequest, err)
		}
		return decoded.Geometry(), drawn, nil
	}
}

/*
Resolve converts the posted shape unchanged; the statistics mask follows the
exact geometry, not its bounding box.
*/
func (source PostedShape) Resolve() (*ClipGeometry, error) {
	shape, err := orbToGodal(source.Geometry)
	if err != nil {
		return nil, err
	}
	defer shape.Close()
	return newClipGeometry(shape)
}

// Describe implements ClipSource.
func (source PostedShape) Describe() string {
	return "posted geometry"
}

/*
Resolve normalizes the drawn shape to the rectangle polygon of its bounding
box (not the raw drawn shape).
*/
func (source DrawnBox) Resolve() (*ClipGeometry, error) {
	bound := source.Geometry.Bound()
	rectangle, err := orbToGodal(bound.ToPolygon())
	if err != nil {
		return nil, err
	}
	defer rectangle.Close()
	return newClipGeometry(rectangle)
}

// Describe implements ClipSource.
func (source DrawnBox) Describe() string {
	return "drawn box"
}

/*
Resolve delegates to the Region Lookup Service with the most specific
non-empty administrative level and union-reduces the returned features.
*/
func (source RegionLookup) Resolve() (*ClipGeometry, error) {
	collection, err := regionClient.LookupRegion(source.Selector)
	if err != nil {
		return nil, err
	}
	if len(collection.Features) == 0 {
		return nil, fmt.Errorf("%w: region selector matched nothing", ErrRegionNotFound)
	}
	return unionFeatureGeometries(collection.Features, false)
}

// Describe implements ClipSource.
func (source RegionLookup) Describe() string {
	return "region lookup"
}

/*
Resolve reads the named canvas layer, keeps only its polygonal features and
union-reduces them. Point/line features are rejected, not silently dropped to
an empty geometry.
*/
func (source VectorLayerSelection) Resolve() (*ClipGeometry, error) {
	collection, err := readCanvasLayer(source.Layer)
	if err != nil {
		return nil, err
	}
	return unionFeatureGeometries(collection.Features, true)
}

// Describe implements ClipSource.
func (source VectorLayerSelection) Describe() string {
	return "vector layer"
}

/*
unionFeatureGeometries reduces a feature list to one ClipGeometry via
pairwise left-to-right spatial union. A single feature passes through
unchanged. With polygonalOnly set, non-polygonal features are filtered first
and an all-non-polygonal list fails with ErrNoPolygonalFeatures.
*/
func unionFeatureGeometries(features []*geojson.Feature, polygonalOnly bool) (*ClipGeometry, error) {
	geometries := []*godal.Geometry{}
	defer func() {
		for _, geometry := range geometries {
			geometry.Close()
		}
	}()

	for _, feature := range features {
		if feature.Geometry == nil {
			continue
		}
		if polygonalOnly {
			geoJSONType := feature.Geometry.GeoJSONType()
			if geoJSONType != "Polygon" && geoJSONType != "MultiPolygon" {
				continue
			}
		}
		geometry, err := orbToGodal(feature.Geometry)
		if err != nil {
			return nil, err
		}
		geometries = append(geometries, geometry)
	}

	if len(geometries) == 0 {
		if polygonalOnly {
			return nil, fmt.Errorf("%w: layer holds only point/line features", ErrNoPolygonalFeatures)
		}
		return nil, fmt.Errorf("%w: features carry no geometry", ErrRegionNotFound)
	}

	union := geometries[0]
	for _, geometry := range geometries[1:] {
		merged, err := union.Union(geometry)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] at Geometry.Union()", ErrRequest, err)
		}
		geometries = append(geometries, merged)
		union = merged
	}

	return newClipGeometry(union)
}

/*
newClipGeometry validates a WGS84 geometry and captures its GeoJSON encoding,
type tag and bounds. The godal geometry remains owned by the caller.
*/
func newClipGeometry(geometry *godal.Geometry) (*ClipGeometry, error) {
	if geometry.Empty() {
		return nil, fmt.Errorf("%w: clip geometry is empty", ErrRequest)
	}
	if !geometry.Valid() {
		return nil, fmt.Errorf("%w: clip geometry is topologically invalid", ErrRequest)
	}

	encoded, err := geometry.GeoJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at Geometry.GeoJSON()", ErrRequest, err)
	}

	decoded, err := geojson.UnmarshalGeometry([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] decoding clip geometry", ErrRequest, err)
	}
	geoJSONType := string(decoded.Geometry().GeoJSONType())
	if geoJSONType != "Polygon" && geoJSONType != "MultiPolygon" {
		return nil, fmt.Errorf("%w: clip geometry must be Polygon or MultiPolygon, got %s", ErrRequest, geoJSONType)
	}

	bounds, err := geometry.Bounds()
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at Geometry.Bounds()", ErrRequest, err)
	}

	return &ClipGeometry{
		GeoJSON: encoded,
		Type:    geoJSONType,
		Bounds:  bounds,
	}, nil
}

/*
orbToGodal converts an orb geometry (WGS84) to a godal/OGR geometry with the
WGS84 spatial reference assigned.
*/
func orbToGodal(geometry orb.Geometry) (*godal.Geometry, error) {
	encoded, err := geojson.NewGeometry(geometry).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] encoding geometry", ErrRequest, err)
	}
	converted, err := godal.NewGeometryFromGeoJSON(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at godal.NewGeometryFromGeoJSON()", ErrRequest, err)
	}
	return converted, nil
}
