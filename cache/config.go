package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MinExistsTTL is the lower bound for the TTL of live records.
const MinExistsTTL = time.Hour

// Config holds the TTL policy and timeouts of the cache-aside layer.
type Config struct {
	// ExistsTTL is the expiry of records that mirror a live entity.
	ExistsTTL time.Duration `yaml:"exists_ttl"`
	// NullTTL is the expiry of Null Records. Keep it short: a Null Record
	// hides a newly created entity until it expires.
	NullTTL time.Duration `yaml:"null_ttl"`
	// LowWater is the remaining-TTL threshold below which a read hit
	// extends a live record back to ExistsTTL.
	LowWater time.Duration `yaml:"low_water"`
	// OpTimeout bounds every cache round trip.
	OpTimeout time.Duration `yaml:"op_timeout"`
	// LoadTimeout bounds every backing-store load on a miss.
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// DefaultConfig returns the observed production values.
func DefaultConfig() Config {
	return Config{
		ExistsTTL:   4320 * time.Second,
		NullTTL:     60 * time.Second,
		LowWater:    60 * time.Second,
		OpTimeout:   500 * time.Millisecond,
		LoadTimeout: 2 * time.Second,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ExistsTTL, validation.Required, validation.Min(MinExistsTTL)),
		validation.Field(&c.NullTTL, validation.Required, validation.Max(c.ExistsTTL).Exclusive()),
		validation.Field(&c.LowWater, validation.Required, validation.Max(c.ExistsTTL).Exclusive()),
		validation.Field(&c.OpTimeout, validation.Required),
		validation.Field(&c.LoadTimeout, validation.Required),
	)
}
