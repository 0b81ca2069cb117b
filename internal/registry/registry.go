// Package registry loads the facility-key and closure-tag definitions that
// give snapshot fields their labels and ordering.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/forest-watch/internal/model"
)

// Registry holds the definition sets for one deployment.
type Registry struct {
	Facilities []model.FacilityDef `yaml:"facilities"`
	Tags       []model.TagDef      `yaml:"tags"`
	// ImpactCategories lists the activity categories summarized per forest.
	ImpactCategories []string `yaml:"impact_categories"`
}

// defaults cover the standard feeds when no registry file is configured.
var defaults = Registry{
	Facilities: []model.FacilityDef{
		{Key: "camping", Label: "Camping"},
		{Key: "campfires", Label: "Campfires permitted"},
		{Key: "fishing", Label: "Fishing"},
		{Key: "picnic", Label: "Picnic areas"},
		{Key: "toilets", Label: "Toilets"},
		{Key: "2wd_access", Label: "2WD access"},
		{Key: "4wd_access", Label: "4WD access"},
		{Key: "walking", Label: "Walking tracks"},
	},
	Tags: []model.TagDef{
		{Key: "fire", Label: "Fire"},
		{Key: "flood", Label: "Flood"},
		{Key: "harvesting", Label: "Timber harvesting"},
		{Key: "road", Label: "Road conditions"},
		{Key: "event", Label: "Event"},
	},
	ImpactCategories: []string{"camping", "2wd_access", "4wd_access"},
}

// Default returns the built-in definitions.
func Default() Registry {
	return defaults
}

// Load reads definitions from a YAML file, filling omitted sections from the
// defaults.
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, eris.Wrapf(err, "registry: read %s", path)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return Registry{}, eris.Wrap(err, "registry: parse")
	}

	if len(reg.Facilities) == 0 {
		reg.Facilities = defaults.Facilities
	}
	if len(reg.Tags) == 0 {
		reg.Tags = defaults.Tags
	}
	if len(reg.ImpactCategories) == 0 {
		reg.ImpactCategories = defaults.ImpactCategories
	}
	return reg, nil
}

// FacilityKeys returns the ordered facility keys.
func (r Registry) FacilityKeys() []string {
	keys := make([]string, len(r.Facilities))
	for i, f := range r.Facilities {
		keys[i] = f.Key
	}
	return keys
}
