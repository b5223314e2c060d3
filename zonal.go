package main

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StatisticsResult represents the outcome of one zonal statistics
// computation: per-band statistics keyed by band identifier, clip bounds in
// WGS84 and the raster metadata echo. A successful result always carries
// every band key, even when all values are null (distinguishes "no data in
// region" from "request failed").
type StatisticsResult struct {
	Bands        map[string]BandStatistics
	GeometryType string
	ClipBounds   [4]float64
	Raster       RasterInfo
}

// clipWindow is a clamped pixel index window of a raster.
type clipWindow struct {
	minX   int
	minY   int
	width  int
	height int
}

/*
computeZonalStatistics computes summary statistics over exactly the pixels of
the raster whose footprint intersects the clip geometry.

Algorithm: reproject the clip geometry into the raster's native CRS (identity
optimization when both match), clamp its bounding box to the pixel grid,
rasterize the geometry into an in-memory mask aligned to the clamped window
(pixel-center rule), then reduce the unmasked, non-NoData values per band.
Per-band emptiness is a valid outcome, never an error.
*/
func computeZonalStatistics(source *RasterSource, clip *ClipGeometry) (*StatisticsResult, error) {
	result := &StatisticsResult{
		Bands:        make(map[string]BandStatistics, source.Bands),
		GeometryType: clip.Type,
		ClipBounds:   clip.Bounds,
		Raster: RasterInfo{
			Bands:  source.Bands,
			Width:  source.Width,
			Height: source.Height,
			CRS:    source.CRS,
		},
	}

	wgs84, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at godal.NewSpatialRefFromEPSG(4326)", ErrReprojection, err)
	}
	defer wgs84.Close()

	geometry, err := godal.NewGeometryFromGeoJSON(clip.GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at godal.NewGeometryFromGeoJSON()", ErrRequest, err)
	}
	defer geometry.Close()
	geometry.SetSpatialRef(wgs84)

	// forward transform into the raster's native system; identical systems
	// skip the transform (identity optimization, not an error path)
	if source.srs != nil && !wgs84.IsSame(source.srs) {
		err = geometry.Reproject(source.srs)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] reprojecting clip geometry to %s", ErrReprojection, err, source.CRS)
		}
	}

	nativeBounds, err := geometry.Bounds()
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at Geometry.Bounds()", ErrReprojection, err)
	}

	window, ok := computeClipWindow(source, nativeBounds)
	if !ok {
		// empty intersection: success with zero valid pixels per band
		for bandIndex := 1; bandIndex <= source.Bands; bandIndex++ {
			result.Bands[bandKey(bandIndex)] = BandStatistics{}
		}
		return result, nil
	}

	mask, err := rasterizeClipMask(source, geometry, window)
	if err != nil {
		return nil, err
	}

	bands := source.dataset.Bands()
	buffer := make([]float64, window.width*window.height)
	for bandIndex, band := range bands {
		err = band.Read(window.minX, window.minY, buffer, window.width, window.height)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] reading band %d window at (%d, %d) size %dx%d",
				ErrRasterRead, err, bandIndex+1, window.minX, window.minY, window.width, window.height)
		}

		noData, hasNoData := band.NoData()
		result.Bands[bandKey(bandIndex+1)] = reduceBandWindow(buffer, mask, noData, hasNoData)
	}

	return result, nil
}

/*
bandKey builds the band identifier key of the response mapping.
*/
func bandKey(bandNumber int) string {
	return fmt.Sprintf("band_%d", bandNumber)
}

/*
computeClipWindow maps a bounding box in the raster's native coordinates to a
pixel index window via the inverse affine transform, clamped to
[0, width) x [0, height). A zero-area window reports ok=false (a valid,
empty-intersection outcome, not an error).
*/
func computeClipWindow(source *RasterSource, bounds [4]float64) (clipWindow, bool) {
	gt := source.geoTransform

	// inverse affine for north-up images:
	// col = (x - gt[0]) / gt[1], row = (y - gt[3]) / gt[5]
	col0 := (bounds[0] - gt[0]) / gt[1]
	col1 := (bounds[2] - gt[0]) / gt[1]
	row0 := (bounds[1] - gt[3]) / gt[5]
	row1 := (bounds[3] - gt[3]) / gt[5]

	minX := int(math.Floor(math.Min(col0, col1)))
	maxX := int(math.Ceil(math.Max(col0, col1)))
	minY := int(math.Floor(math.Min(row0, row1)))
	maxY := int(math.Ceil(math.Max(row0, row1)))

	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, source.Width)
	maxY = min(maxY, source.Height)

	if maxX-minX <= 0 || maxY-minY <= 0 {
		return clipWindow{}, false
	}

	return clipWindow{
		minX:   minX,
		minY:   minY,
		width:  maxX - minX,
		height: maxY - minY,
	}, true
}

/*
rasterizeClipMask builds the per-pixel inclusion mask for the clamped window:
the clip geometry is burned into an in-memory byte raster aligned to the
window, so a pixel is included exactly when its center lies inside the
geometry. Pixels inside the window but outside the geometry stay zero.
*/
func rasterizeClipMask(source *RasterSource, geometry *godal.Geometry, window clipWindow) ([]byte, error) {
	maskDataset, err := godal.Create(godal.Memory, "", 1, godal.Byte, window.width, window.height)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] creating mask dataset", ErrRasterRead, err)
	}
	defer maskDataset.Close()

	gt := source.geoTransform
	windowTransform := [6]float64{
		gt[0] + float64(window.minX)*gt[1] + float64(window.minY)*gt[2],
		gt[1],
		gt[2],
		gt[3] + float64(window.minX)*gt[4] + float64(window.minY)*gt[5],
		gt[4],
		gt[5],
	}
	err = maskDataset.SetGeoTransform(windowTransform)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at SetGeoTransform() on mask dataset", ErrRasterRead, err)
	}
	if source.srs != nil {
		err = maskDataset.SetSpatialRef(source.srs)
		if err != nil {
			return nil, fmt.Errorf("%w: error [%v] at SetSpatialRef() on mask dataset", ErrRasterRead, err)
		}
	}

	err = maskDataset.RasterizeGeometry(geometry, godal.Values(1))
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at RasterizeGeometry()", ErrRasterRead, err)
	}

	mask := make([]byte, window.width*window.height)
	err = maskDataset.Bands()[0].Read(0, 0, mask, window.width, window.height)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] reading mask band", ErrRasterRead, err)
	}

	return mask, nil
}

/*
reduceBandWindow reduces the window values of one band to BandStatistics.
Excluded are pixels outside the mask, non-finite values, values equal to the
declared NoData sentinel and values below the large-magnitude NoData floor.
With no declared NoData and no floor breach all pixels count as valid. An
empty sample yields all-null statistics with count zero.
*/
func reduceBandWindow(buffer []float64, mask []byte, noData float64, hasNoData bool) BandStatistics {
	valid := make([]float64, 0, len(buffer))
	for i, value := range buffer {
		if mask[i] == 0 {
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		if hasNoData && value == noData {
			continue
		}
		if value < noDataFloor {
			continue
		}
		valid = append(valid, value)
	}

	statistics := BandStatistics{
		Count:    len(valid),
		Excluded: len(buffer) - len(valid),
	}
	if len(valid) == 0 {
		return statistics
	}

	mean, std := stat.PopMeanStdDev(valid, nil)
	statistics.Min = floatPtr(floats.Min(valid))
	statistics.Max = floatPtr(floats.Max(valid))
	statistics.Mean = floatPtr(mean)
	statistics.Std = floatPtr(std)

	return statistics
}
