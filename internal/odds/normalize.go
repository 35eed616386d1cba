package odds

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedFormat is returned for a Format outside decimal, fractional and american
	ErrUnsupportedFormat = errors.New("unsupported odds format")
	// ErrInvalidOdds is returned when a value cannot be interpreted in its format
	ErrInvalidOdds = errors.New("invalid odds value")
)

// NormalizeToDecimal converts a price to decimal odds
func NormalizeToDecimal(p Price) (float64, error) {
	switch p.Format {
	case FormatDecimal:
		return p.Value, nil
	case FormatFractional:
		ratio, err := fractionalRatio(p)
		if err != nil {
			return 0, err
		}
		return ratio + 1, nil
	case FormatAmerican:
		return americanToDecimal(p.Value)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, p.Format)
	}
}

func fractionalRatio(p Price) (float64, error) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return p.Value, nil
	}

	numText, denText, found := strings.Cut(text, "/")
	if !found {
		// bare ratio sent as text, e.g. "2.5"
		v, err := decimal.NewFromString(text)
		if err != nil {
			return 0, fmt.Errorf("%w: fractional %q: %v", ErrInvalidOdds, text, err)
		}
		return v.InexactFloat64(), nil
	}

	num, err := decimal.NewFromString(strings.TrimSpace(numText))
	if err != nil {
		return 0, fmt.Errorf("%w: fractional numerator %q: %v", ErrInvalidOdds, numText, err)
	}
	den, err := decimal.NewFromString(strings.TrimSpace(denText))
	if err != nil {
		return 0, fmt.Errorf("%w: fractional denominator %q: %v", ErrInvalidOdds, denText, err)
	}
	if den.IsZero() {
		return 0, fmt.Errorf("%w: fractional %q has zero denominator", ErrInvalidOdds, text)
	}

	return num.DivRound(den, 16).InexactFloat64(), nil
}

func americanToDecimal(v float64) (float64, error) {
	switch {
	case v > 0:
		return v/100 + 1, nil
	case v < 0:
		return 100/math.Abs(v) + 1, nil
	default:
		return 0, fmt.Errorf("%w: american odds cannot be zero", ErrInvalidOdds)
	}
}

// ImpliedProbability returns 1/decimal, or 0 for non-positive odds
func ImpliedProbability(decimalOdds float64) float64 {
	if decimalOdds <= 0 {
		return 0
	}
	return 1 / decimalOdds
}

// ValidDecimal reports whether d is a usable decimal price (finite and above 1.0)
func ValidDecimal(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 1.0
}
