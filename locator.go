package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/airbusgeo/godal"
)

// RasterSource represents a resolved, opened raster. Immutable once resolved;
// lifecycle is open-read-close per request. Band reads are windowed
// (seek-and-read), so one handle is safe for sequential band reads of a
// request without re-opening.
type RasterSource struct {
	Name   string
	Path   string
	CRS    string // e.g. "EPSG:32643", "unknown" when undeclared
	Width  int
	Height int
	Bands  int

	dataset      *godal.Dataset
	srs          *godal.SpatialRef // nil when the raster declares no CRS
	geoTransform [6]float64
}

/*
resolveLayerName maps a logical layer name to a catalog entry. Any trailing
'#' disambiguation suffix is stripped before lookup. An exact
(case-insensitive) catalog hit wins; otherwise the layer-name pattern matcher
decides; unmatched names fail with ErrLayerNotFound.
*/
func resolveLayerName(layerName string) (RasterEntry, error) {
	name := layerName
	if index := strings.Index(name, "#"); index >= 0 {
		name = name[:index]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return RasterEntry{}, fmt.Errorf("%w: empty layer name", ErrRequest)
	}

	if entry, found := Catalog[strings.ToLower(name)]; found {
		return entry, nil
	}

	matched, category, found := matchLayerName(name, catalogNames())
	if !found {
		return RasterEntry{}, fmt.Errorf("%w: no raster matches layer name [%s]", ErrLayerNotFound, name)
	}
	slog.Debug("layer name resolved via pattern matcher", "requested", name, "matched", matched, "category", category)

	return Catalog[strings.ToLower(matched)], nil
}

/*
openRasterSource opens the raster behind a catalog entry in ReadOnly mode and
captures its metadata. Rotated/skewed rasters and rasters without bands are
rejected.
*/
func openRasterSource(entry RasterEntry) (*RasterSource, error) {
	if !FileExists(entry.Path) {
		return nil, fmt.Errorf("%w: file [%s] does not exist", ErrRasterRead, entry.Path)
	}

	dataset, err := godal.Open(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: error [%v] at godal.Open(), file %s", ErrRasterRead, err, entry.Path)
	}

	gt, err := dataset.GeoTransform()
	if err != nil {
		dataset.Close()
		return nil, fmt.Errorf("%w: error [%v] at dataset.GeoTransform(), file %s", ErrRasterRead, err, entry.Path)
	}

	// this implementation assumes a north-up image
	if gt[2] != 0.0 || gt[4] != 0.0 {
		dataset.Close()
		return nil, fmt.Errorf("%w: raster [%s] appears to be rotated or skewed (gt[2]=%f, gt[4]=%f)", ErrRasterRead, entry.Path, gt[2], gt[4])
	}
	if gt[1] == 0 || gt[5] == 0 {
		dataset.Close()
		return nil, fmt.Errorf("%w: invalid geotransform in [%s]: pixel width (gt[1]=%f) or height (gt[5]=%f) is zero", ErrRasterRead, entry.Path, gt[1], gt[5])
	}

	bands := dataset.Bands()
	if len(bands) == 0 {
		dataset.Close()
		return nil, fmt.Errorf("%w: no raster bands found in file [%s]", ErrRasterRead, entry.Path)
	}

	structure := dataset.Structure()

	// SpatialRef() wraps a handle even for rasters without a declared CRS;
	// an empty WKT export identifies those, and they carry srs == nil here
	srs := dataset.SpatialRef()
	if srs != nil {
		wkt, err := srs.WKT()
		if err != nil || wkt == "" {
			srs.Close()
			srs = nil
		}
	}

	source := &RasterSource{
		Name:         entry.Name,
		Path:         entry.Path,
		CRS:          crsLabel(srs),
		Width:        structure.SizeX,
		Height:       structure.SizeY,
		Bands:        len(bands),
		dataset:      dataset,
		srs:          srs,
		geoTransform: gt,
	}

	return source, nil
}

/*
Close releases the underlying GDAL handles.
*/
func (source *RasterSource) Close() {
	if source.srs != nil {
		source.srs.Close()
		source.srs = nil
	}
	if source.dataset != nil {
		source.dataset.Close()
		source.dataset = nil
	}
}

/*
crsLabel derives a short "AUTHORITY:CODE" label (e.g. "EPSG:4326") for a
spatial reference system, or "unknown" when none is declared.
*/
func crsLabel(srs *godal.SpatialRef) string {
	if srs == nil {
		return "unknown"
	}
	name := srs.AuthorityName("")
	code := srs.AuthorityCode("")
	if name != "" && code != "" {
		return name + ":" + code
	}
	return "unknown"
}
