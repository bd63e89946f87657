// Package validation provides centralized input validation for the record
// identity fields accepted by the store.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xtxerr/healthmon/internal/errors"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for identity fields.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
	AllowColons  bool
}

// HostnameRules returns the rules for hostnames. Dots cover FQDNs and IPv4,
// colons cover IPv6 literals.
func HostnameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    253,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
		AllowColons:  true,
	}
}

// MetricTypeRules returns the rules for metric type tags.
func MetricTypeRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    64,
		AllowDots:    false,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// SourceRules returns the rules for collector identities.
func SourceRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    128,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..'")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name cannot start with '.'")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	case ':':
		return rules.AllowColons
	}
	return false
}

// =============================================================================
// Record Fields
// =============================================================================

// ValidateHostname validates the originating host of a record.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname must not be empty: %w", errors.ErrInvalidHostname)
	}
	if err := ValidateName(hostname, HostnameRules()); err != nil {
		return fmt.Errorf("hostname %q: %v: %w", hostname, err, errors.ErrInvalidHostname)
	}
	return nil
}

// ValidateMetricType validates a metric type tag.
func ValidateMetricType(metricType string) error {
	if metricType == "" {
		return fmt.Errorf("metric type must not be empty: %w", errors.ErrInvalidMetricType)
	}
	if err := ValidateName(metricType, MetricTypeRules()); err != nil {
		return fmt.Errorf("metric type %q: %v: %w", metricType, err, errors.ErrInvalidMetricType)
	}
	return nil
}

// ValidateSource validates a collector identity. Empty is allowed and is
// replaced by the default source at insert time.
func ValidateSource(source string) error {
	if source == "" {
		return nil
	}
	if err := ValidateName(source, SourceRules()); err != nil {
		return errors.NewValidation("source", err.Error())
	}
	return nil
}

// ValidateStatus validates a free-form status string.
func ValidateStatus(status string) error {
	if len(status) > 64 {
		return errors.NewValidation("status", "maximum 64 characters allowed")
	}
	for i, r := range status {
		if r < 32 || r == 127 {
			return errors.NewValidation("status", fmt.Sprintf("control character at position %d", i))
		}
	}
	return nil
}
