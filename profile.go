package hdrbake

import (
	"os"

	"github.com/flynn/json5"
	"github.com/pkg/errors"
)

// EncodingProfile holds the tunables of the SDR rendition and the gain map.
// Profiles are read from JSON5 files; absent fields keep their defaults.
type EncodingProfile struct {
	// DisplayGamma is the transfer gamma of the SDR rendition.
	DisplayGamma float32 `json:"display_gamma"`

	// MapGamma is applied to normalized log2 gains before quantization.
	MapGamma float32 `json:"map_gamma"`

	OffsetSDR float32 `json:"offset_sdr"`
	OffsetHDR float32 `json:"offset_hdr"`

	// Quality and GainMapQuality are JPEG qualities in [1, 100].
	Quality        int `json:"quality"`
	GainMapQuality int `json:"gainmap_quality"`

	// GainMapScale downscales the gain map by an integer factor.
	GainMapScale int `json:"gainmap_scale"`

	// LegacyMPF writes the zero-offset little-endian MPF index.
	LegacyMPF bool `json:"legacy_mpf"`

	// Workers bounds band parallelism, 0 means GOMAXPROCS.
	Workers int `json:"workers"`
}

// DefaultProfile returns the built-in encoding profile.
func DefaultProfile() EncodingProfile {
	return EncodingProfile{
		DisplayGamma:   DefaultDisplayGamma,
		MapGamma:       DefaultMapGamma,
		OffsetSDR:      DefaultOffsetSDR,
		OffsetHDR:      DefaultOffsetHDR,
		Quality:        defaultQuality,
		GainMapQuality: defaultGainMapQuality,
		GainMapScale:   defaultGainMapScale,
	}
}

// LoadProfile reads a JSON5 profile on top of DefaultProfile and validates it.
func LoadProfile(path string) (EncodingProfile, error) {
	p := DefaultProfile()
	f, err := os.Open(path)
	if err != nil {
		return p, errors.Wrapf(ErrConfig, "open profile: %s", err)
	}
	defer func() { _ = f.Close() }()

	if err := json5.NewDecoder(f).Decode(&p); err != nil {
		return p, errors.Wrapf(ErrConfig, "parse profile %s: %s", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, errors.Wrapf(err, "profile %s", path)
	}
	return p, nil
}

// Validate checks value ranges.
func (p EncodingProfile) Validate() error {
	switch {
	case !(p.DisplayGamma > 0):
		return errors.Wrapf(ErrConfig, "display_gamma must be positive, got %v", p.DisplayGamma)
	case !(p.MapGamma > 0):
		return errors.Wrapf(ErrConfig, "map_gamma must be positive, got %v", p.MapGamma)
	case !(p.OffsetSDR > 0) || !(p.OffsetHDR > 0):
		return errors.Wrapf(ErrConfig, "gain offsets must be positive, got %v and %v", p.OffsetSDR, p.OffsetHDR)
	case p.Quality < 1 || p.Quality > 100:
		return errors.Wrapf(ErrConfig, "quality must be in [1, 100], got %d", p.Quality)
	case p.GainMapQuality < 1 || p.GainMapQuality > 100:
		return errors.Wrapf(ErrConfig, "gainmap_quality must be in [1, 100], got %d", p.GainMapQuality)
	case p.GainMapScale < 1:
		return errors.Wrapf(ErrConfig, "gainmap_scale must be at least 1, got %d", p.GainMapScale)
	case p.Workers < 0:
		return errors.Wrapf(ErrConfig, "workers must not be negative, got %d", p.Workers)
	}
	return nil
}

// Offsets returns the gain offsets of the profile.
func (p EncodingProfile) Offsets() GainOffsets {
	return GainOffsets{SDR: p.OffsetSDR, HDR: p.OffsetHDR}
}
