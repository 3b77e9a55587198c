package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/nanocall/internal/decode"
	"github.com/banshee-data/nanocall/internal/mapping"
	"github.com/banshee-data/nanocall/internal/rawsignal"
	"github.com/banshee-data/nanocall/internal/scoring"
	"github.com/banshee-data/nanocall/internal/squiggle"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/nanocall.defaults.json"

// Config holds the tunable parameters of the basecaller and mappers. Every
// field is optional; the Get* methods fall back to the built-in defaults.
type Config struct {
	// Signal trimming
	TrimStart    *int     `json:"trim_start,omitempty"`
	TrimEnd      *int     `json:"trim_end,omitempty"`
	VarsegChunk  *int     `json:"varseg_chunk,omitempty"`
	VarsegThresh *float64 `json:"varseg_thresh,omitempty"`

	// Scoring
	MinProb    *float64 `json:"min_prob,omitempty"`
	TempWeight *float64 `json:"temp_w,omitempty"`
	TempBias   *float64 `json:"temp_b,omitempty"`

	// Transducer decoding
	StayPen  *float64 `json:"stay_pen,omitempty"`
	SkipPen  *float64 `json:"skip_pen,omitempty"`
	LocalPen *float64 `json:"local_pen,omitempty"`
	UseSlip  *bool    `json:"use_slip,omitempty"`

	// Signal to squiggle mapping
	SquiggleRate     *float64 `json:"squiggle_rate,omitempty"`
	SquiggleBackProb *float64 `json:"squiggle_back_prob,omitempty"`
	SquiggleLocalPen *float64 `json:"squiggle_local_pen,omitempty"`
	SquiggleSkipPen  *float64 `json:"squiggle_skip_pen,omitempty"`
	SquiggleMinScore *float64 `json:"squiggle_min_score,omitempty"`

	// Posterior to sequence mapping. MapBand is a scalar band width; unset
	// maps without a band.
	MapStayPen  *float64 `json:"map_stay_pen,omitempty"`
	MapSkipPen  *float64 `json:"map_skip_pen,omitempty"`
	MapLocalPen *float64 `json:"map_local_pen,omitempty"`
	MapBand     *float64 `json:"map_band,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Defaults returns a Config with every field set to its built-in default.
func Defaults() *Config {
	c := Empty()
	return &Config{
		TrimStart:        ptrInt(c.GetTrimStart()),
		TrimEnd:          ptrInt(c.GetTrimEnd()),
		VarsegChunk:      ptrInt(c.GetVarsegChunk()),
		VarsegThresh:     ptrFloat64(c.GetVarsegThresh()),
		MinProb:          ptrFloat64(c.GetMinProb()),
		TempWeight:       ptrFloat64(c.GetTempWeight()),
		TempBias:         ptrFloat64(c.GetTempBias()),
		StayPen:          ptrFloat64(c.GetStayPen()),
		SkipPen:          ptrFloat64(c.GetSkipPen()),
		LocalPen:         ptrFloat64(c.GetLocalPen()),
		UseSlip:          ptrBool(c.GetUseSlip()),
		SquiggleRate:     ptrFloat64(c.GetSquiggleRate()),
		SquiggleBackProb: ptrFloat64(c.GetSquiggleBackProb()),
		SquiggleLocalPen: ptrFloat64(c.GetSquiggleLocalPen()),
		SquiggleSkipPen:  ptrFloat64(c.GetSquiggleSkipPen()),
		SquiggleMinScore: ptrFloat64(c.GetSquiggleMinScore()),
		MapStayPen:       ptrFloat64(c.GetMapStayPen()),
		MapSkipPen:       ptrFloat64(c.GetMapSkipPen()),
		MapLocalPen:      ptrFloat64(c.GetMapLocalPen()),
	}
}

// Load reads a Config from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.TrimStart != nil && *c.TrimStart < 0 {
		return fmt.Errorf("trim_start must be non-negative, got %d", *c.TrimStart)
	}
	if c.TrimEnd != nil && *c.TrimEnd < 0 {
		return fmt.Errorf("trim_end must be non-negative, got %d", *c.TrimEnd)
	}
	if c.VarsegChunk != nil && *c.VarsegChunk < 2 {
		return fmt.Errorf("varseg_chunk must be at least 2, got %d", *c.VarsegChunk)
	}
	if c.VarsegThresh != nil && (*c.VarsegThresh < 0 || *c.VarsegThresh > 1) {
		return fmt.Errorf("varseg_thresh must be between 0 and 1, got %f", *c.VarsegThresh)
	}
	if c.MinProb != nil && (*c.MinProb < 0 || *c.MinProb > 1) {
		return fmt.Errorf("min_prob must be between 0 and 1, got %f", *c.MinProb)
	}
	if c.SquiggleRate != nil && *c.SquiggleRate <= 0 {
		return fmt.Errorf("squiggle_rate must be positive, got %f", *c.SquiggleRate)
	}
	if c.SquiggleBackProb != nil && (*c.SquiggleBackProb < 0 || *c.SquiggleBackProb >= 1) {
		return fmt.Errorf("squiggle_back_prob must be in [0, 1), got %f", *c.SquiggleBackProb)
	}
	if c.MapBand != nil && *c.MapBand < 0 {
		return fmt.Errorf("map_band must be non-negative, got %f", *c.MapBand)
	}
	return nil
}

// GetTrimStart returns the trim_start value or the default.
func (c *Config) GetTrimStart() int {
	if c.TrimStart == nil {
		return rawsignal.DefaultStartGuard
	}
	return *c.TrimStart
}

// GetTrimEnd returns the trim_end value or the default.
func (c *Config) GetTrimEnd() int {
	if c.TrimEnd == nil {
		return rawsignal.DefaultEndGuard
	}
	return *c.TrimEnd
}

// GetVarsegChunk returns the varseg_chunk value or the default.
func (c *Config) GetVarsegChunk() int {
	if c.VarsegChunk == nil {
		return rawsignal.DefaultChunkSize
	}
	return *c.VarsegChunk
}

// GetVarsegThresh returns the varseg_thresh value or the default.
func (c *Config) GetVarsegThresh() float64 {
	if c.VarsegThresh == nil {
		return rawsignal.DefaultVarThresh
	}
	return *c.VarsegThresh
}

// GetMinProb returns the min_prob value or the default.
func (c *Config) GetMinProb() float64 {
	if c.MinProb == nil {
		return 1e-6
	}
	return *c.MinProb
}

// GetTempWeight returns the temp_w value or the default.
func (c *Config) GetTempWeight() float64 {
	if c.TempWeight == nil {
		return 1
	}
	return *c.TempWeight
}

// GetTempBias returns the temp_b value or the default.
func (c *Config) GetTempBias() float64 {
	if c.TempBias == nil {
		return 1
	}
	return *c.TempBias
}

// GetStayPen returns the stay_pen value or the default.
func (c *Config) GetStayPen() float64 {
	if c.StayPen == nil {
		return 0
	}
	return *c.StayPen
}

// GetSkipPen returns the skip_pen value or the default.
func (c *Config) GetSkipPen() float64 {
	if c.SkipPen == nil {
		return 0
	}
	return *c.SkipPen
}

// GetLocalPen returns the local_pen value or the default.
func (c *Config) GetLocalPen() float64 {
	if c.LocalPen == nil {
		return 2
	}
	return *c.LocalPen
}

// GetUseSlip returns the use_slip value or the default.
func (c *Config) GetUseSlip() bool {
	if c.UseSlip == nil {
		return false
	}
	return *c.UseSlip
}

// GetSquiggleRate returns the squiggle_rate value or the default.
func (c *Config) GetSquiggleRate() float64 {
	if c.SquiggleRate == nil {
		return 1
	}
	return *c.SquiggleRate
}

// GetSquiggleBackProb returns the squiggle_back_prob value or the default.
func (c *Config) GetSquiggleBackProb() float64 {
	if c.SquiggleBackProb == nil {
		return 0
	}
	return *c.SquiggleBackProb
}

// GetSquiggleLocalPen returns the squiggle_local_pen value or the default.
func (c *Config) GetSquiggleLocalPen() float64 {
	if c.SquiggleLocalPen == nil {
		return 2
	}
	return *c.SquiggleLocalPen
}

// GetSquiggleSkipPen returns the squiggle_skip_pen value or the default.
func (c *Config) GetSquiggleSkipPen() float64 {
	if c.SquiggleSkipPen == nil {
		return 5000
	}
	return *c.SquiggleSkipPen
}

// GetSquiggleMinScore returns the squiggle_min_score value or the default.
func (c *Config) GetSquiggleMinScore() float64 {
	if c.SquiggleMinScore == nil {
		return 5
	}
	return *c.SquiggleMinScore
}

// GetMapStayPen returns the map_stay_pen value or the default.
func (c *Config) GetMapStayPen() float64 {
	if c.MapStayPen == nil {
		return 0
	}
	return *c.MapStayPen
}

// GetMapSkipPen returns the map_skip_pen value or the default.
func (c *Config) GetMapSkipPen() float64 {
	if c.MapSkipPen == nil {
		return 0
	}
	return *c.MapSkipPen
}

// GetMapLocalPen returns the map_local_pen value or the default.
func (c *Config) GetMapLocalPen() float64 {
	if c.MapLocalPen == nil {
		return 4
	}
	return *c.MapLocalPen
}

// TrimSignal trims raw with the configured guards and segmentation.
func (c *Config) TrimSignal(raw *rawsignal.RawSignal) *rawsignal.RawSignal {
	return raw.Trim(c.GetTrimStart(), c.GetTrimEnd(), c.GetVarsegChunk(), float32(c.GetVarsegThresh()))
}

// ScoringOptions returns the scorer options. Scores are always requested in
// log space.
func (c *Config) ScoringOptions() scoring.Options {
	return scoring.Options{
		MinProb:    float32(c.GetMinProb()),
		TempWeight: float32(c.GetTempWeight()),
		TempBias:   float32(c.GetTempBias()),
		UseLog:     true,
	}
}

// TransducerOptions returns the transducer decoding penalties.
func (c *Config) TransducerOptions() decode.TransducerOptions {
	return decode.TransducerOptions{
		StayPenalty:  float32(c.GetStayPen()),
		SkipPenalty:  float32(c.GetSkipPen()),
		LocalPenalty: float32(c.GetLocalPen()),
		AllowSlip:    c.GetUseSlip(),
	}
}

// SignalOptions returns the signal to squiggle alignment options.
func (c *Config) SignalOptions() squiggle.SignalOptions {
	return squiggle.SignalOptions{
		BackProb:     float32(c.GetSquiggleBackProb()),
		LocalPenalty: float32(c.GetSquiggleLocalPen()),
		SkipPenalty:  float32(c.GetSquiggleSkipPen()),
		MinScore:     float32(c.GetSquiggleMinScore()),
	}
}

// MappingOptions returns Viterbi posterior mapping options with the
// configured band.
func (c *Config) MappingOptions(wantPath bool) mapping.Options {
	band := mapping.NoBand()
	if c.MapBand != nil {
		band = mapping.ScalarBand(float32(*c.MapBand))
	}
	return mapping.Options{
		StayPenalty:  float32(c.GetMapStayPen()),
		SkipPenalty:  float32(c.GetMapSkipPen()),
		LocalPenalty: float32(c.GetMapLocalPen()),
		UseViterbi:   true,
		WantPath:     wantPath,
		Band:         band,
	}
}
