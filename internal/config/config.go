// Package config loads the catalog's YAML configuration file,
// combining the teacher's Postgres connection settings with the
// detection/matching thresholds spec.md §6 exposes as tunable options.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"sectioncat/internal/matching"
	"sectioncat/internal/secerr"
	"sectioncat/internal/sections"
)

// Database holds the connection settings pggeo.Connect needs, mirroring
// cmd.Config's pg_* fields.
type Database struct {
	Host     string `yaml:"pg_ip"`
	Port     string `yaml:"pg_port"`
	User     string `yaml:"pg_user"`
	Password string `yaml:"pg_secret"`
	Name     string `yaml:"pg_db"`
}

// Web holds the HTTP surface's bind settings.
type Web struct {
	Host     string `yaml:"web_host"`
	Port     string `yaml:"web_port"`
	Protocol string `yaml:"web_protocol"` // "http" or "https" - use "https" behind a reverse proxy
}

// Detection mirrors sections.Config's fields with yaml tags, so an
// operator can tune proximity/length thresholds without a rebuild.
// ToSectionsConfig fills in DefaultConfig for any zero-valued field
// left unset in the YAML file.
type Detection struct {
	ProximityThreshold float64 `yaml:"proximity_threshold_m"`
	MinSectionLength   float64 `yaml:"min_section_length_m"`
	MaxSectionLength   float64 `yaml:"max_section_length_m"`
	MinActivities      int     `yaml:"min_activities"`
	ClusterTolerance   float64 `yaml:"cluster_tolerance_m"`
	SamplePoints       int     `yaml:"sample_points"`
	IncludePotentials  *bool   `yaml:"include_potentials"`
	PreserveHierarchy  *bool   `yaml:"preserve_hierarchy"`

	FoldTurnaroundMarginMeters float64 `yaml:"fold_turnaround_margin_m"`
	DensitySplitMultiple       float64 `yaml:"density_split_multiple"`
	DensitySplitMinRunLength   int     `yaml:"density_split_min_run_length"`

	Scales []ScalePreset `yaml:"scales"`
}

// ScalePreset mirrors sections.ScalePreset with yaml tags.
type ScalePreset struct {
	Name          string  `yaml:"name"`
	MinLength     float64 `yaml:"min_length_m"`
	MaxLength     float64 `yaml:"max_length_m"`
	MinActivities int     `yaml:"min_activities"`
}

// Matching mirrors matching.Config's fields for the route-grouping
// engine's AMD-based thresholds.
type Matching struct {
	ResampleCount        int     `yaml:"resample_count"`
	PerfectThreshold     float64 `yaml:"perfect_threshold_m"`
	ZeroThreshold        float64 `yaml:"zero_threshold_m"`
	MinMatchPercentage   float64 `yaml:"min_match_percentage"`
	EndpointThreshold    float64 `yaml:"endpoint_threshold_m"`
	MinRouteDistance     float64 `yaml:"min_route_distance_m"`
	MaxDistanceDiffRatio float64 `yaml:"max_distance_diff_ratio"`
}

// Config is the catalog's full top-level configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Web       Web       `yaml:"web"`
	Detection Detection `yaml:"detection"`
	Matching  Matching  `yaml:"matching"`
}

// Load reads and parses path (typically "config.yaml"), following the
// teacher's os.ReadFile + yaml.Unmarshal loading idiom.
func Load(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, secerr.Wrap(secerr.ConfigError, "failed to read config file "+path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, secerr.Wrap(secerr.ConfigError, "failed to parse config file "+path, err)
	}
	return cfg, nil
}

// ToSectionsConfig builds a sections.Config from the YAML-loaded
// Detection block, defaulting any field left at its zero value to
// sections.DefaultConfig's value.
func (d Detection) ToSectionsConfig() sections.Config {
	def := sections.DefaultConfig()

	cfg := sections.Config{
		ProximityThreshold:         orDefault(d.ProximityThreshold, def.ProximityThreshold),
		MinSectionLength:           orDefault(d.MinSectionLength, def.MinSectionLength),
		MaxSectionLength:           orDefault(d.MaxSectionLength, def.MaxSectionLength),
		MinActivities:              orDefaultInt(d.MinActivities, def.MinActivities),
		ClusterTolerance:           orDefault(d.ClusterTolerance, def.ClusterTolerance),
		SamplePoints:               orDefaultInt(d.SamplePoints, def.SamplePoints),
		IncludePotentials:          def.IncludePotentials,
		PreserveHierarchy:          def.PreserveHierarchy,
		FoldTurnaroundMarginMeters: orDefault(d.FoldTurnaroundMarginMeters, def.FoldTurnaroundMarginMeters),
		DensitySplitMultiple:       orDefault(d.DensitySplitMultiple, def.DensitySplitMultiple),
		DensitySplitMinRunLength:   orDefaultInt(d.DensitySplitMinRunLength, def.DensitySplitMinRunLength),
	}
	if d.IncludePotentials != nil {
		cfg.IncludePotentials = *d.IncludePotentials
	}
	if d.PreserveHierarchy != nil {
		cfg.PreserveHierarchy = *d.PreserveHierarchy
	}
	if len(d.Scales) > 0 {
		cfg.ScalePresets = make([]sections.ScalePreset, len(d.Scales))
		for i, s := range d.Scales {
			cfg.ScalePresets[i] = sections.ScalePreset{
				Name:          s.Name,
				MinLength:     s.MinLength,
				MaxLength:     s.MaxLength,
				MinActivities: s.MinActivities,
			}
		}
	}
	return cfg
}

// ToMatchingConfig builds a matching.Config from the YAML-loaded
// Matching block, defaulting zero-valued fields to
// matching.DefaultConfig's value.
func (m Matching) ToMatchingConfig() matching.Config {
	def := matching.DefaultConfig()
	return matching.Config{
		ResampleCount:        orDefaultInt(m.ResampleCount, def.ResampleCount),
		PerfectThreshold:     orDefault(m.PerfectThreshold, def.PerfectThreshold),
		ZeroThreshold:        orDefault(m.ZeroThreshold, def.ZeroThreshold),
		MinMatchPercentage:   orDefault(m.MinMatchPercentage, def.MinMatchPercentage),
		EndpointThreshold:    orDefault(m.EndpointThreshold, def.EndpointThreshold),
		MinRouteDistance:     orDefault(m.MinRouteDistance, def.MinRouteDistance),
		MaxDistanceDiffRatio: orDefault(m.MaxDistanceDiffRatio, def.MaxDistanceDiffRatio),
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
