package domain

import "fmt"

const (
	maxDomainLength = 253
	maxLabelLength  = 63
)

// ValidateDomainName performs syntactic validation of a DNS name in the
// RFC 1035 shape: dot-separated labels of letters, digits, and interior
// hyphens, with at least two labels. Internationalized names are accepted
// only in their punycode (ASCII) form; no public suffix list is consulted.
func ValidateDomainName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidDomain)
	}
	if len(name) > maxDomainLength {
		return fmt.Errorf("name exceeds %d characters: %w", maxDomainLength, ErrInvalidDomain)
	}

	labels := 0
	start := 0
	for i := 0; i <= len(name); i++ {
		if i < len(name) && name[i] != '.' {
			continue
		}

		label := name[start:i]
		if err := validateLabel(label); err != nil {
			return err
		}

		labels++
		start = i + 1
	}

	if labels < 2 {
		return fmt.Errorf("%q has no label separator: %w", name, ErrInvalidDomain)
	}

	return nil
}

func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("empty label: %w", ErrInvalidDomain)
	}
	if len(label) > maxLabelLength {
		return fmt.Errorf("label %q exceeds %d characters: %w", label, maxLabelLength, ErrInvalidDomain)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("label %q has leading or trailing hyphen: %w", label, ErrInvalidDomain)
	}

	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return fmt.Errorf("label %q contains invalid character %q: %w", label, string(c), ErrInvalidDomain)
		}
	}

	return nil
}
