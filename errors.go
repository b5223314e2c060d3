package main

import (
	"errors"
	"net/http"
)

// error taxonomy; handlers wrap these with request context so callers get a
// readable message while errors.Is still works at the HTTP boundary
var (
	ErrNoClipGeometry      = errors.New("no clip geometry source specified")
	ErrRegionNotFound      = errors.New("region lookup returned no features")
	ErrNoPolygonalFeatures = errors.New("vector layer contains no polygonal features")
	ErrLayerNotFound       = errors.New("raster layer not found")
	ErrRasterRead          = errors.New("raster read failed")
	ErrReprojection        = errors.New("coordinate reprojection failed")
	ErrRequest             = errors.New("malformed request")
)

/*
errorHTTPStatus maps a taxonomy error to the HTTP status code of the error
response. Callers of the API distinguish failure only by the 'status' field;
the HTTP code is advisory.
*/
func errorHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoClipGeometry),
		errors.Is(err, ErrNoPolygonalFeatures),
		errors.Is(err, ErrRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrRegionNotFound),
		errors.Is(err, ErrLayerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
