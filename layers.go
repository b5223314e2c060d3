package main

import (
	"net/http"
	"sync/atomic"
)

/*
layersRequest handles 'layers request' from client. It lists the raster
layers known to the catalog in sorted order (e.g. for frontend layer
pickers).
*/
func layersRequest(writer http.ResponseWriter, _ *http.Request) {
	// statistics
	atomic.AddUint64(&LayerListRequests, 1)

	buildJSONResponse(writer, http.StatusOK, LayersResponse{
		Status: "success",
		Layers: catalogNames(),
	})
}
