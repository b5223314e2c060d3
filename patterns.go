package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PatternKeyword maps a search term (substring of a requested layer name) to
// an ordered list of terms that may occur in the names of available rasters.
type PatternKeyword struct {
	Search  string   `yaml:"Search"`
	Matches []string `yaml:"Matches"`
}

// PatternCategory represents one ordered category of layer name keywords.
type PatternCategory struct {
	Name     string           `yaml:"Name"`
	Keywords []PatternKeyword `yaml:"Keywords"`
}

// PatternConfig represents the complete layer-name pattern configuration.
// Categories and keywords are ordered; matching walks them front to back so
// identical input always yields the identical choice.
type PatternConfig struct {
	Categories []PatternCategory `yaml:"Categories"`
	Fallbacks  []string          `yaml:"Fallbacks"`
}

// patternConfig is loaded once at startup and never mutated afterwards.
var patternConfig PatternConfig

/*
loadPatternConfig loads the layer-name pattern configuration from the given
YAML file into process-wide state. An empty filename selects the built-in
default configuration.
*/
func loadPatternConfig(filename string) error {
	if filename == "" {
		patternConfig = defaultPatternConfig()
		return nil
	}
	source, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error [%w] at os.ReadFile(), file %s", err, filename)
	}
	config := PatternConfig{}
	err = yaml.Unmarshal(source, &config)
	if err != nil {
		return fmt.Errorf("error [%w] at yaml.Unmarshal(), file %s", err, filename)
	}
	if len(config.Categories) == 0 {
		return fmt.Errorf("pattern configuration [%s] defines no categories", filename)
	}
	patternConfig = config
	return nil
}

/*
defaultPatternConfig builds the built-in pattern tables. Category precedence:
geographic location, terrain type, data type, temporal tag, resolution tag.
*/
func defaultPatternConfig() PatternConfig {
	return PatternConfig{
		Categories: []PatternCategory{
			{Name: "location", Keywords: []PatternKeyword{
				{Search: "pune", Matches: []string{"pune", "maharashtra"}},
				{Search: "mumbai", Matches: []string{"mumbai", "maharashtra"}},
				{Search: "karnataka", Matches: []string{"karnataka"}},
			}},
			{Name: "terrain", Keywords: []PatternKeyword{
				{Search: "slope", Matches: []string{"slope"}},
				{Search: "aspect", Matches: []string{"aspect"}},
				{Search: "hillshade", Matches: []string{"hillshade", "shade"}},
			}},
			{Name: "data_type", Keywords: []PatternKeyword{
				{Search: "elevation", Matches: []string{"elevation", "dem", "dtm"}},
				{Search: "dem", Matches: []string{"dem", "elevation"}},
				{Search: "contour", Matches: []string{"contour"}},
			}},
			{Name: "temporal", Keywords: []PatternKeyword{
				{Search: "2024", Matches: []string{"2024"}},
				{Search: "2023", Matches: []string{"2023"}},
				{Search: "monsoon", Matches: []string{"monsoon"}},
			}},
			{Name: "resolution", Keywords: []PatternKeyword{
				{Search: "30m", Matches: []string{"30m"}},
				{Search: "90m", Matches: []string{"90m"}},
				{Search: "highres", Matches: []string{"highres", "1m"}},
			}},
		},
		Fallbacks: []string{"mosaic", "composite", "merged"},
	}
}

/*
classifyLayerName classifies a requested layer name against the ordered
pattern categories (substring containment, case-insensitive). The first
category with a keyword hit wins. It returns the category name and the
matched search term.
*/
func classifyLayerName(requested string) (category string, search string, found bool) {
	layerSearch := strings.ToLower(requested)
	for _, cat := range patternConfig.Categories {
		for _, keyword := range cat.Keywords {
			if strings.Contains(layerSearch, strings.ToLower(keyword.Search)) {
				return cat.Name, keyword.Search, true
			}
		}
	}
	return "", "", false
}

/*
matchLayerName resolves a requested layer name against the available layer
names using the pattern tables: the matched keyword's possible match terms are
probed against the available names in their given (sorted) order; if no
category matches, the generic fallback synonyms are tried. It returns the
chosen available name and the category that produced the match ("fallback"
for fallback synonyms).
*/
func matchLayerName(requested string, available []string) (layer string, category string, found bool) {
	layerSearch := strings.ToLower(requested)

	for _, cat := range patternConfig.Categories {
		for _, keyword := range cat.Keywords {
			if !strings.Contains(layerSearch, strings.ToLower(keyword.Search)) {
				continue
			}
			for _, candidate := range available {
				candidateSearch := strings.ToLower(candidate)
				for _, matchTerm := range keyword.Matches {
					if strings.Contains(candidateSearch, strings.ToLower(matchTerm)) {
						return candidate, cat.Name, true
					}
				}
			}
		}
	}

	// generic synonyms for mosaicked/composited rasters
	for _, fallback := range patternConfig.Fallbacks {
		for _, candidate := range available {
			if strings.Contains(strings.ToLower(candidate), strings.ToLower(fallback)) {
				return candidate, "fallback", true
			}
		}
	}

	return "", "", false
}
