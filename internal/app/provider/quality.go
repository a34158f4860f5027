package provider

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// StreamQuality is the quality songs are streamed in.
type StreamQuality string

const (
	QualityLow    StreamQuality = "LOW"
	QualityMedium StreamQuality = "MEDIUM"
	QualityHigh   StreamQuality = "HIGH"
)

// ParseStreamQuality parses a quality name case-insensitively.
func ParseStreamQuality(s string) (StreamQuality, error) {
	switch q := StreamQuality(strings.ToUpper(strings.TrimSpace(s))); q {
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	default:
		return "", errors.Newf("value has to be LOW, MEDIUM or HIGH: %q", s)
	}
}

// BitrateKbps returns the nominal bitrate for the quality.
func (q StreamQuality) BitrateKbps() int {
	switch q {
	case QualityLow:
		return 128
	case QualityMedium:
		return 160
	default:
		return 320
	}
}
