// Package config parses the framework's environment-variable knobs into an immutable
// Config, with defaults matching the original framework's.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Config holds every process-wide knob the runtime reads.  It is parsed once at process
// start and treated as read-only afterwards; cmd/galaxy-render hands it to internal/app
// unchanged, and none of its command-line flags override a field.
//
// Only NThreads is consumed by the runtime (it sizes the thread pool). RaysPerPacket,
// PermutePixels and WriteImages are parsed but not read by cmd/galaxy-render: its ray
// batches are capped by its own fixed maxRayBatch, its camera pass always generates pixels
// in row-major order, and its owning rank writes the PNG whatever WriteImages says.
type Config struct {
	// NThreads is the pool thread count (GXY_NTHREADS). Default 5.
	NThreads int
	// RaysPerPacket is the max rays per outgoing packet before a split
	// (GXY_RAYS_PER_PACKET). Default 1_000_000.
	RaysPerPacket int
	// PermutePixels is GXY_PERMUTE_PIXELS, the pseudo-random pixel order flag. Default
	// true unless WriteImages is set.
	PermutePixels bool
	// WriteImages is GXY_WRITE_IMAGES; when set it turns PermutePixels off by default.
	WriteImages bool
}

const (
	defaultNThreads      = 5
	defaultRaysPerPacket = 1_000_000
)

// FromEnv builds a Config from the process environment, applying the documented defaults
// for anything unset.
func FromEnv() (Config, error) {
	cfg := Config{
		NThreads:      defaultNThreads,
		RaysPerPacket: defaultRaysPerPacket,
	}

	cfg.WriteImages = boolEnv("GXY_WRITE_IMAGES", false)
	cfg.PermutePixels = boolEnv("GXY_PERMUTE_PIXELS", !cfg.WriteImages)

	if v, ok := os.LookupEnv("GXY_NTHREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "config: parsing GXY_NTHREADS")
		}
		cfg.NThreads = n
	}

	if v, ok := os.LookupEnv("GXY_RAYS_PER_PACKET"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "config: parsing GXY_RAYS_PER_PACKET")
		}
		cfg.RaysPerPacket = n
	}

	return cfg, nil
}

func boolEnv(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
