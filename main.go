/*
Purpose:
- raster statistics service

Description:
- Service for computing per-band zonal statistics (min, max, mean, std) of GeoTIFF rasters clipped to arbitrary polygons.

Releases:
- v1.0.0 - 2026-08-29: initial release

Author:
- BAIF GIS Team

Remarks:
- Usage 'statistics' API : see script 'query-zonal-statistics.sh'
- Offline batch analysis : raster-statistics-service -analyze <directory>
- Offline point export   : raster-statistics-service -export <raster file>

Links:
- https://pkg.go.dev/github.com/airbusgeo/godal
- https://pkg.go.dev/github.com/paulmach/orb
- https://pkg.go.dev/gonum.org/v1/gonum/stat
- https://pkg.go.dev/gopkg.in/yaml.v3
- https://pkg.go.dev/gopkg.in/natefinch/lumberjack.v2
*/

// main package
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/airbusgeo/godal"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// general program info
var (
	progName    = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(filepath.Base(os.Args[0])))
	progVersion = "v1.0.0"
	progDate    = "2026-08-29"
	progPurpose = "raster statistics service"
	progInfo    = "Service for computing per-band zonal statistics of GeoTIFF rasters clipped to arbitrary polygons."
)

// ProgConfig defines program configuration
type ProgConfig struct {
	ListenAddress       string   `yaml:"ListenAddress"`
	ServerCertificate   string   `yaml:"ServerCertificate"`
	ServerKey           string   `yaml:"ServerKey"`
	ShutdownGracePeriod int      `yaml:"ShutdownGracePeriod"`
	LogDirectory        string   `yaml:"LogDirectory"`
	LogLevel            string   `yaml:"LogLevel"`
	RasterDirectories   []string `yaml:"RasterDirectories"`
	CanvasDirectory     string   `yaml:"CanvasDirectory"`
	PatternConfigFile   string   `yaml:"PatternConfigFile"`
	RegionServiceURL    string   `yaml:"RegionServiceURL"`
	CatalogFile         string   `yaml:"CatalogFile"`
}

// progConfig represents program configuration
var progConfig ProgConfig

// statistics
var (
	StatisticsRequests uint64
	LayerListRequests  uint64
)

/*
main starts this program.
*/
func main() {
	analyzeDirectoryFlag := flag.String("analyze", "", "analyze all rasters in directory and write catalog (no service start)")
	exportFileFlag := flag.String("export", "", "export raster as WGS84 point data (no service start)")
	flag.Parse()

	// load program configuration
	progConfigFile := progName + ".yaml"
	source, err := os.ReadFile(progConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration file not found, file = [%s]\n", progConfigFile)
		fmt.Fprintf(os.Stderr, "error [%v] at os.ReadFile()\n", err)
		os.Exit(1)
	}
	err = yaml.Unmarshal(source, &progConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration file invalid, file = [%s]\n", progConfigFile)
		fmt.Fprintf(os.Stderr, "error [%v] at yaml.Unmarshal()\n", err)
		os.Exit(1)
	}

	// logging: replacer for logging objects
	replacer := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)   // get source object
			source.File = filepath.Base(source.File) // basepath only
		}
		if a.Key == slog.TimeKey {
			return slog.String("time", a.Value.Time().Format(time.RFC3339Nano)) // local time -> RFC3339Nano
		}
		return a
	}

	// logging: log file output and rotate (with lumberjack package)
	logrotateStartYearDay := time.Now().UTC().YearDay()
	logfile := filepath.Join(progConfig.LogDirectory, progName+".log")
	lumberjackLogger := &lumberjack.Logger{
		Filename: logfile,
		MaxSize:  128,  // megabytes
		MaxAge:   28,   // days
		Compress: true, // gzip rotated log
	}

	// log level
	logLevel := new(slog.LevelVar)
	logLevel.Set(parseLogLevel(progConfig.LogLevel))

	// define logger
	logger := slog.New(slog.NewJSONHandler(lumberjackLogger, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true, ReplaceAttr: replacer}).WithAttrs([]slog.Attr{slog.String("prog", progName)}))
	slog.SetDefault(logger)

	// log program start
	slog.Info(progPurpose+" started", "name", progName, "version", progVersion, "date", progDate, "info", progInfo, "command line", os.Args)
	jsonData, _ := json.MarshalIndent(progConfig, "", "  ") // encode to JSON for readability
	slog.Info("content of configuration file", "configuration file", progConfigFile, "content", string(jsonData))

	// initialize GDAL, register all known GDAL drivers
	godal.RegisterAll()

	// offline batch analysis mode
	if *analyzeDirectoryFlag != "" {
		err = analyzeDirectory(*analyzeDirectoryFlag)
		if err != nil {
			slog.Error("error analyzing raster directory", "directory", *analyzeDirectoryFlag, "error", err)
			fmt.Fprintf(os.Stderr, "error [%v] analyzing directory [%s]\n", err, *analyzeDirectoryFlag)
			os.Exit(1)
		}
		return
	}

	// offline point export mode
	if *exportFileFlag != "" {
		err = exportRasterPoints(*exportFileFlag)
		if err != nil {
			slog.Error("error exporting raster points", "file", *exportFileFlag, "error", err)
			fmt.Fprintf(os.Stderr, "error [%v] exporting raster [%s]\n", err, *exportFileFlag)
			os.Exit(1)
		}
		return
	}

	// load layer name pattern configuration
	err = loadPatternConfig(progConfig.PatternConfigFile)
	if err != nil {
		slog.Error("error loading pattern configuration", "error", err)
		os.Exit(1)
	}

	// build global raster catalog
	err = buildCatalog()
	if err != nil {
		slog.Error("error building global raster catalog", "error", err)
		os.Exit(1)
	}

	// save global raster catalog
	err = saveCatalog()
	if err != nil {
		slog.Error("error saving global raster catalog", "error", err)
		os.Exit(1)
	}

	// create client for region lookup service
	regionClient = newRegionClient(progConfig.RegionServiceURL)

	// define routes
	http.HandleFunc("POST /v1/statistics", statisticsRequest)
	http.HandleFunc("OPTIONS /v1/statistics", corsOptionsHandler)

	http.HandleFunc("GET /v1/layers", layersRequest)
	http.HandleFunc("OPTIONS /v1/layers", corsOptionsHandler)

	// handle unsupported routes or methods
	http.HandleFunc("/", unsupportedRequest)

	// define service
	RasterStatisticsService := &http.Server{
		Addr:              progConfig.ListenAddress,
		Handler:           nil,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	// get hostname
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	// create service
	go func() {
		slog.Info("raster statistics service listening for requests", "ListenAddress", progConfig.ListenAddress, "hostname", hostname)
		err := RasterStatisticsService.ListenAndServeTLS(progConfig.ServerCertificate, progConfig.ServerKey)
		if err != nil {
			if err != http.ErrServerClosed {
				slog.Error("error at RasterStatisticsService.ListenAndServe()", "error", err)
				os.Exit(1)
			}
		}
	}()

	// start rotate trigger (checks, if log rotate is required)
	rotateTrigger := time.Tick(time.Second * 60)

	// start shutdown trigger and subscribe to shutdown signals
	shutdownTrigger := make(chan os.Signal, 1)
	signal.Notify(shutdownTrigger, syscall.SIGINT)  // kill -SIGINT pid -> interrupt
	signal.Notify(shutdownTrigger, syscall.SIGTERM) // kill -SIGTERM pid -> terminated

ForeverLoop:
	for {
		// wait for log rotate or shutdown trigger
		select {
		case <-rotateTrigger:
			logrotateCurrentYearDay := time.Now().UTC().YearDay()
			if logrotateCurrentYearDay != logrotateStartYearDay {
				slog.Info("new day detected, log rotate triggered")
				err := lumberjackLogger.Rotate()
				if err != nil {
					slog.Error("error at lumberjackLogger.Rotate()", "error", err)
				}
				logrotateStartYearDay = logrotateCurrentYearDay
				logStatistics()
			}
		case sig := <-shutdownTrigger:
			// initiate shutdown
			slog.Info("signal received, shutting down statistics service", "signal", sig)
			break ForeverLoop
		}
	}

	// shutdown grace period (wait max n seconds before halting)
	gracePeriod := time.Duration(progConfig.ShutdownGracePeriod) * time.Second

	// shutdown service
	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()
	err = RasterStatisticsService.Shutdown(ctx)
	if err != nil {
		slog.Error("fatal error at RasterStatisticsService.Shutdown()", "error", err)
	}

	// log program end
	logStatistics()
	slog.Info("service gracefully shut down")
}

/*
logStatistics logs statistics.
*/
func logStatistics() {
	// read statistics
	currentStatisticsRequests := atomic.LoadUint64(&StatisticsRequests)
	currentLayerListRequests := atomic.LoadUint64(&LayerListRequests)

	// reset statistics
	atomic.StoreUint64(&StatisticsRequests, 0)
	atomic.StoreUint64(&LayerListRequests, 0)

	// log statistics
	slog.Info("load statistics",
		"StatisticsRequests", currentStatisticsRequests,
		"LayerListRequests", currentLayerListRequests,
	)
}

/*
parseLogLevel parses log level setting from configuration.
*/
func parseLogLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
