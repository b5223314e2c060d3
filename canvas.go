package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	geojson "github.com/paulmach/orb/geojson"
)

/*
readCanvasLayer reads the stored geometry of a named vector canvas layer.
Layers live as one GeoJSON file per layer below the configured canvas
directory; a file may hold a FeatureCollection, a single Feature or a bare
Geometry.
*/
func readCanvasLayer(layerName string) (*geojson.FeatureCollection, error) {
	name := strings.TrimSpace(layerName)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: invalid vector layer name [%s]", ErrRequest, layerName)
	}

	filename := filepath.Join(progConfig.CanvasDirectory, name+".geojson")
	if !FileExists(filename) {
		return nil, fmt.Errorf("%w: vector layer [%s] not found", ErrLayerNotFound, name)
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at os.ReadFile(), file %s", ErrLayerNotFound, err, filename)
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(source, &envelope); err != nil {
		return nil, fmt.Errorf("%w: vector layer [%s] holds no valid GeoJSON: %v", ErrRequest, name, err)
	}

	switch envelope.Type {
	case "FeatureCollection":
		collection, err := geojson.UnmarshalFeatureCollection(source)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] decoding vector layer [%s]", ErrRequest, err, name)
		}
		return collection, nil
	case "Feature":
		feature, err := geojson.UnmarshalFeature(source)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] decoding vector layer [%s]", ErrRequest, err, name)
		}
		collection := geojson.NewFeatureCollection()
		collection.Append(feature)
		return collection, nil
	default:
		geometry, err := geojson.UnmarshalGeometry(source)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] decoding vector layer [%s]", ErrRequest, err, name)
		}
		collection := geojson.NewFeatureCollection()
		collection.Append(geojson.NewFeature(geometry.Geometry()))
		return collection, nil
	}
}
