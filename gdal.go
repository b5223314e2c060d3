package main

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
)

/*
transformPoints transforms coordinate slices in-place from one spatial
reference system to another. This is the single, explicit reprojection
primitive; reprojection never happens implicitly inside window reads.
*/
func transformPoints(source, target *godal.SpatialRef, xCoords, yCoords []float64) error {
	transform, err := godal.NewTransform(source, target)
	if err != nil {
		return fmt.Errorf("%w: error [%v] at godal.NewTransform()", ErrReprojection, err)
	}
	defer transform.Close()

	successFlags := make([]bool, len(xCoords))
	err = transform.TransformEx(xCoords, yCoords, nil, successFlags)
	if err != nil {
		return fmt.Errorf("%w: error [%v] at transform.TransformEx()", ErrReprojection, err)
	}
	for i, success := range successFlags {
		if !success {
			return fmt.Errorf("%w: point %d (%.8f, %.8f) could not be transformed", ErrReprojection, i, xCoords[i], yCoords[i])
		}
	}
	return nil
}

/*
calculateWGS84BoundingBox calculates the bounding box of an opened raster in
WGS84 (Lon/Lat). It requires the raster to declare a spatial reference
system.
*/
func calculateWGS84BoundingBox(source *RasterSource) (WGS84BoundingBox, error) {
	latLonBBox := WGS84BoundingBox{}

	gt := source.geoTransform
	sizeX := float64(source.Width)
	sizeY := float64(source.Height)

	// corner coordinates correspond to the outer edges of the corner pixels;
	// pixel (0,0) is the upper-left corner
	xCoords := []float64{
		gt[0],
		gt[0] + sizeX*gt[1] + 0*gt[2],
		gt[0] + 0*gt[1] + sizeY*gt[2],
		gt[0] + sizeX*gt[1] + sizeY*gt[2],
	}
	yCoords := []float64{
		gt[3],
		gt[3] + sizeX*gt[4] + 0*gt[5],
		gt[3] + 0*gt[4] + sizeY*gt[5],
		gt[3] + sizeX*gt[4] + sizeY*gt[5],
	}

	if source.srs == nil {
		return latLonBBox, fmt.Errorf("%w: source spatial reference system not found, transformation not possible", ErrReprojection)
	}

	targetSRS, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return latLonBBox, fmt.Errorf("%w: error [%v] at godal.NewSpatialRefFromEPSG(4326)", ErrReprojection, err)
	}
	defer targetSRS.Close()

	err = transformPoints(source.srs, targetSRS, xCoords, yCoords)
	if err != nil {
		return latLonBBox, err
	}

	latLonBBox.MinLon = math.Inf(1)
	latLonBBox.MaxLon = math.Inf(-1)
	latLonBBox.MinLat = math.Inf(1)
	latLonBBox.MaxLat = math.Inf(-1)

	for i := 0; i < 4; i++ {
		latLonBBox.MinLon = math.Min(latLonBBox.MinLon, xCoords[i])
		latLonBBox.MaxLon = math.Max(latLonBBox.MaxLon, xCoords[i])
		latLonBBox.MinLat = math.Min(latLonBBox.MinLat, yCoords[i])
		latLonBBox.MaxLat = math.Max(latLonBBox.MaxLat, yCoords[i])
	}

	return latLonBBox, nil
}
