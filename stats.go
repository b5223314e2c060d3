package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

/*
statisticsRequest handles 'statistics request' from client: resolve the clip
geometry, locate and open the raster layer, compute zonal statistics and
format the response. No retries happen here; a retry with different
parameters (e.g. a buffered geometry or another method) is the caller's
decision.
*/
func statisticsRequest(writer http.ResponseWriter, request *http.Request) {
	requestID := uuid.NewString()

	// statistics
	atomic.AddUint64(&StatisticsRequests, 1)

	// limit overall request body size
	request.Body = http.MaxBytesReader(writer, request.Body, MaxStatisticsRequestBodySize)

	// read request
	bodyData, err := io.ReadAll(request.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.Warn("statistics request: request body too large", "limit", maxBytesErr.Limit, "ID", requestID)
			buildErrorResponse(writer, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: request body exceeds limit of %d bytes", ErrRequest, maxBytesErr.Limit))
		} else {
			slog.Warn("statistics request: error reading request body", "error", err, "ID", requestID)
			buildErrorResponse(writer, http.StatusBadRequest, fmt.Errorf("%w: error reading request body: %v", ErrRequest, err))
		}
		return
	}

	// unmarshal request
	statisticsRequest := StatisticsRequest{}
	err = json.Unmarshal(bodyData, &statisticsRequest)
	if err != nil {
		slog.Warn("statistics request: error unmarshaling request body", "error", err, "ID", requestID)
		buildErrorResponse(writer, http.StatusBadRequest, fmt.Errorf("%w: error unmarshaling request body: %v", ErrRequest, err))
		return
	}

	// verify request data
	layerName := statisticsRequest.LayerName
	if layerName == "" {
		layerName = statisticsRequest.Layer
	}
	if layerName == "" {
		slog.Warn("statistics request: layer name missing", "ID", requestID)
		buildErrorResponse(writer, http.StatusBadRequest, fmt.Errorf("%w: layer name is required", ErrRequest))
		return
	}
	method := strings.TrimSpace(statisticsRequest.Method)
	if method != "" && method != "direct_file" {
		slog.Warn("statistics request: unsupported method", "method", method, "ID", requestID)
		buildErrorResponse(writer, http.StatusBadRequest, fmt.Errorf("%w: unsupported method [%s]", ErrRequest, method))
		return
	}

	// resolve clip geometry
	clipSource, err := clipSourceFromRequest(&statisticsRequest)
	if err != nil {
		slog.Warn("statistics request: error selecting clip source", "error", err, "ID", requestID)
		buildErrorResponse(writer, errorHTTPStatus(err), err)
		return
	}
	clip, err := clipSource.Resolve()
	if err != nil {
		slog.Warn("statistics request: error resolving clip geometry", "error", err, "source", clipSource.Describe(), "ID", requestID)
		buildErrorResponse(writer, errorHTTPStatus(err), err)
		return
	}
	if statisticsRequest.Debug {
		slog.Info("statistics request: clip geometry resolved", "source", clipSource.Describe(),
			"type", clip.Type, "bounds", clip.Bounds, "ID", requestID)
	}

	// locate and open raster
	entry, err := resolveLayerName(layerName)
	if err != nil {
		slog.Warn("statistics request: error resolving layer name", "error", err, "layer", layerName, "ID", requestID)
		buildErrorResponse(writer, errorHTTPStatus(err), err)
		return
	}
	rasterSource, err := openRasterSource(entry)
	if err != nil {
		slog.Error("statistics request: error opening raster source", "error", err, "layer", entry.Name, "ID", requestID)
		buildErrorResponse(writer, errorHTTPStatus(err), err)
		return
	}
	defer rasterSource.Close()

	if statisticsRequest.Debug {
		slog.Info("statistics request: raster source opened", "layer", entry.Name, "path", entry.Path,
			"bands", rasterSource.Bands, "width", rasterSource.Width, "height", rasterSource.Height,
			"crs", rasterSource.CRS, "ID", requestID)
	}

	// compute statistics
	result, err := computeZonalStatistics(rasterSource, clip)
	if err != nil {
		slog.Error("statistics request: error computing zonal statistics", "error", err, "layer", entry.Name, "ID", requestID)
		buildErrorResponse(writer, errorHTTPStatus(err), err)
		return
	}

	// success response
	response := buildStatisticsResult(entry.Name, method, result)
	slog.Debug("statistics request: success", "layer", entry.Name, "bands", len(response.MinMax), "ID", requestID)
	buildJSONResponse(writer, http.StatusOK, response)
}

/*
buildStatisticsResult assembles the response contract from a computed result
(Result Formatter).
*/
func buildStatisticsResult(layerName string, method string, result *StatisticsResult) StatisticsResponse {
	methodLabel := "catalog"
	if method == "direct_file" {
		methodLabel = "direct file access"
	}
	return StatisticsResponse{
		Status:       "success",
		Layer:        layerName,
		MinMax:       result.Bands,
		GeometryType: result.GeometryType,
		ClipBounds:   result.ClipBounds,
		RasterInfo:   result.Raster,
		Method:       methodLabel,
	}
}

/*
classifyCoverage classifies a raster's data coverage as 'sparse' when the
fraction of valid pixels lies below the threshold, else 'dense'. Advisory
metadata only; never alters statistics computation.
*/
func classifyCoverage(validFraction float64) string {
	if validFraction < sparseCoverageThreshold {
		return "sparse"
	}
	return "dense"
}

/*
buildErrorResponse builds the error response shape from a taxonomy error.
Callers distinguish failure only by the 'status' field.
*/
func buildErrorResponse(writer http.ResponseWriter, httpStatus int, err error) {
	buildJSONResponse(writer, httpStatus, ErrorResponse{Status: "error", Error: err.Error()})
}

/*
buildJSONResponse builds HTTP responses with specified status and body.
It sets the Content-Type and Content-Length headers before writing the
response body. This function is used to construct consistent HTTP responses
throughout the application.
*/
func buildJSONResponse(writer http.ResponseWriter, httpStatus int, payload any) {
	// log limit length of body (we don't expect large bodies)
	maxBodyLength := 1024

	// CORS: allow requests from any origin
	writer.Header().Set("Access-Control-Allow-Origin", "*")
	// CORS: allowed methods
	writer.Header().Set("Access-Control-Allow-Methods", "POST, GET")
	// CORS: allowed headers
	writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// marshal response
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		slog.Error("error marshaling response", "error", err, "body length", len(body),
			fmt.Sprintf("body (limited to first %d bytes)", maxBodyLength), body[:min(len(body), maxBodyLength)])

		http.Error(writer, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// send response
	writer.Header().Set("Content-Type", JSONAPIMediaType)
	writer.WriteHeader(httpStatus)
	_, err = writer.Write(body)
	if err != nil {
		slog.Error("error writing HTTP response body", "error", err, "body length", len(body),
			fmt.Sprintf("body (limited to first %d bytes)", maxBodyLength), body[:min(len(body), maxBodyLength)])
	}
}
