// Package otp derives time-based one-time passwords from an entry's
// stored configuration.
//
// Three layouts are understood, checked in order:
//   - an "otp" field holding an otpauth://totp/ URL
//   - KeePass native "TimeOtp-Secret-Base32" with optional
//     "TimeOtp-Period", "TimeOtp-Length" and "TimeOtp-Algorithm"
//   - the KeeOtp plugin pair "TOTP Seed" and "TOTP Settings" ("period;digits")
package otp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
)

// Field names of the alternative layouts
const (
	FieldTimeOtpSecret    = "TimeOtp-Secret-Base32"
	FieldTimeOtpPeriod    = "TimeOtp-Period"
	FieldTimeOtpLength    = "TimeOtp-Length"
	FieldTimeOtpAlgorithm = "TimeOtp-Algorithm"
	FieldLegacySeed       = "TOTP Seed"
	FieldLegacySettings   = "TOTP Settings"
)

const (
	defaultPeriod = 30
	defaultDigits = 6
	maxPeriod     = 24 * 60 * 60
)

// MaxTime is the latest unix time a code can be computed for
const MaxTime = math.MaxInt64

// Config is a parsed TOTP configuration
type Config struct {
	Secret    string
	Period    uint
	Digits    otp.Digits
	Algorithm otp.Algorithm
}

// Value is the code valid at a point in time
type Value struct {
	Code     string
	ValidFor time.Duration
	Period   time.Duration
}

// ValueAt computes the code for entry at unix time t
func ValueAt(entry *domain.Entry, t uint64) (Value, error) {
	cfg, err := FromEntry(entry)
	if err != nil {
		return Value{}, err
	}
	return cfg.ValueAt(t)
}

// ValueAt computes the code at unix time t. Times past MaxTime wrap
// domain.ErrInvalidInput.
func (c Config) ValueAt(t uint64) (Value, error) {
	if err := CheckTime(t); err != nil {
		return Value{}, err
	}
	code, err := totp.GenerateCodeCustom(c.Secret, time.Unix(int64(t), 0).UTC(), totp.ValidateOpts{
		Period:    c.Period,
		Digits:    c.Digits,
		Algorithm: c.Algorithm,
	})
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	period := uint64(c.Period)
	return Value{
		Code:     code,
		ValidFor: time.Duration(period-t%period) * time.Second,
		Period:   time.Duration(period) * time.Second,
	}, nil
}

// CheckTime rejects unix times past MaxTime
func CheckTime(t uint64) error {
	if t > MaxTime {
		return fmt.Errorf("%w: time %d is out of range", domain.ErrInvalidInput, t)
	}
	return nil
}

// FromEntry reads the TOTP configuration stored on entry. Missing or
// malformed configuration wraps domain.ErrConfig.
func FromEntry(entry *domain.Entry) (Config, error) {
	if raw, ok := fieldText(entry, domain.FieldOTP); ok {
		return ParseURL(raw)
	}
	if secret, ok := fieldText(entry, FieldTimeOtpSecret); ok {
		return fromTimeOtp(entry, secret)
	}
	if seed, ok := fieldText(entry, FieldLegacySeed); ok {
		settings, _ := fieldText(entry, FieldLegacySettings)
		return fromLegacy(seed, settings)
	}
	return Config{}, fmt.Errorf("%w: entry has no otp configuration", domain.ErrConfig)
}

// ParseURL parses an otpauth://totp/ URL
func ParseURL(raw string) (Config, error) {
	key, err := otp.NewKeyFromURL(strings.TrimSpace(raw))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	if key.Type() != "totp" {
		return Config{}, fmt.Errorf("%w: unsupported otp type %q", domain.ErrConfig, key.Type())
	}

	cfg := Config{
		Secret:    key.Secret(),
		Period:    uint(key.Period()),
		Digits:    key.Digits(),
		Algorithm: key.Algorithm(),
	}
	return cfg, cfg.validate()
}

func fromTimeOtp(entry *domain.Entry, secret string) (Config, error) {
	cfg := Config{Secret: secret, Period: defaultPeriod, Digits: defaultDigits, Algorithm: otp.AlgorithmSHA1}

	if s, ok := fieldText(entry, FieldTimeOtpPeriod); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("%w: bad period %q", domain.ErrConfig, s)
		}
		cfg.Period = uint(n)
	}
	if s, ok := fieldText(entry, FieldTimeOtpLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return Config{}, fmt.Errorf("%w: bad length %q", domain.ErrConfig, s)
		}
		cfg.Digits = otp.Digits(n)
	}
	if s, ok := fieldText(entry, FieldTimeOtpAlgorithm); ok {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "HMAC-SHA-1":
			cfg.Algorithm = otp.AlgorithmSHA1
		case "HMAC-SHA-256":
			cfg.Algorithm = otp.AlgorithmSHA256
		case "HMAC-SHA-512":
			cfg.Algorithm = otp.AlgorithmSHA512
		default:
			return Config{}, fmt.Errorf("%w: unsupported algorithm %q", domain.ErrConfig, s)
		}
	}
	return cfg, cfg.validate()
}

// fromLegacy reads the KeeOtp layout. Settings look like "30;6"; an
// empty value selects the defaults.
func fromLegacy(seed, settings string) (Config, error) {
	cfg := Config{Secret: seed, Period: defaultPeriod, Digits: defaultDigits, Algorithm: otp.AlgorithmSHA1}

	if settings = strings.TrimSpace(settings); settings != "" {
		parts := strings.Split(settings, ";")
		if len(parts) != 2 {
			return Config{}, fmt.Errorf("%w: bad TOTP settings %q", domain.ErrConfig, settings)
		}
		period, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("%w: bad TOTP period %q", domain.ErrConfig, parts[0])
		}
		digits, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Config{}, fmt.Errorf("%w: bad TOTP digits %q", domain.ErrConfig, parts[1])
		}
		cfg.Period = uint(period)
		cfg.Digits = otp.Digits(digits)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("%w: empty secret", domain.ErrConfig)
	}
	if c.Period == 0 || c.Period > maxPeriod {
		return fmt.Errorf("%w: period %d out of range", domain.ErrConfig, c.Period)
	}
	if c.Digits < 6 || c.Digits > 10 {
		return fmt.Errorf("%w: %d digits not supported", domain.ErrConfig, int(c.Digits))
	}
	return nil
}

// fieldText reads a field as text whether or not it is protected. The
// revealed bytes are cleared after conversion.
func fieldText(entry *domain.Entry, name string) (string, bool) {
	v, ok := entry.Get(name)
	if !ok {
		return "", false
	}
	switch v.Kind() {
	case domain.KindUnprotected:
		return v.Text()
	case domain.KindProtected:
		if v.Secret() == nil {
			return "", false
		}
		b := v.Secret().Reveal()
		defer crypto.ClearBytes(b)
		return string(b), true
	default:
		return "", false
	}
}
