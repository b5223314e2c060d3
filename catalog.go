package main

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RasterEntry represents one raster known to the catalog.
type RasterEntry struct {
	Name string // logical layer name (file base name without extension)
	Path string // path and file name (e.g. /data/rasters/slopeAll_mosaic.tif)
}

// Catalog represents the catalog of all rasters (readonly after initialization),
// keyed by the lowercased layer name.
var Catalog map[string]RasterEntry

/*
buildCatalog builds the global raster catalog by scanning the configured
raster directories for GeoTIFF files. At name collisions the first file in
sorted walk order wins; later duplicates are logged and skipped so resolution
stays deterministic across restarts.
*/
func buildCatalog() error {
	Catalog = make(map[string]RasterEntry, 256)

	numberOfRasters := 0
	numberOfDuplicates := 0
	for _, rasterDirectory := range progConfig.RasterDirectories {
		paths := []string{}
		err := filepath.WalkDir(rasterDirectory, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			extension := strings.ToLower(filepath.Ext(path))
			if extension == ".tif" || extension == ".tiff" {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("building raster catalog: error [%w] at filepath.WalkDir(), directory %s", err, rasterDirectory)
		}

		sort.Strings(paths)
		for _, path := range paths {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			key := strings.ToLower(name)
			if existing, exists := Catalog[key]; exists {
				slog.Warn("duplicate raster layer name, keeping first", "name", name, "kept", existing.Path, "skipped", path)
				numberOfDuplicates++
				continue
			}
			Catalog[key] = RasterEntry{Name: name, Path: path}
			numberOfRasters++
		}

		slog.Info("processed raster directory", "directory", rasterDirectory, "files", len(paths))
	}

	slog.Info("raster catalog successfully built", "entries", numberOfRasters, "duplicates skipped", numberOfDuplicates)

	return nil
}

/*
catalogNames returns all layer names of the catalog in sorted order.
*/
func catalogNames() []string {
	names := make([]string, 0, len(Catalog))
	for _, entry := range Catalog {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names
}

/*
saveCatalog saves the catalog as sorted csv file.
*/
func saveCatalog() error {
	// extract keys from map
	keys := make([]string, 0, len(Catalog))
	for k := range Catalog {
		keys = append(keys, k)
	}

	// sort keys
	sort.Strings(keys)

	// open csv file
	filename := "catalog.csv"
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error [%v] at os.Create()", err)
	}
	defer file.Close()

	// create csv writer
	writer := csv.NewWriter(file)
	defer writer.Flush()

	// write header
	header := []string{"Name", "Path"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("error [%v] at writer.Write()", err)
	}

	// iterate over sorted keys
	for _, key := range keys {
		entry, ok := Catalog[key]
		if !ok {
			return fmt.Errorf("warning: key [%s] not found during writing", key)
		}

		// create and write csv line
		row := []string{entry.Name, entry.Path}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("error [%v] at writer.Write()", err)
		}
	}

	err = writer.Error()
	if err != nil {
		return fmt.Errorf("error [%v] at writer.Error()", err)
	}

	return nil
}
