package eval

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Mode is the typing mode of an execution.
type Mode uint8

const (
	// Legacy raises typed errors for data-shape mismatches.
	Legacy Mode = iota

	// Permissive converts data-shape mismatches to MISSING.
	Permissive
)

func (m Mode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "legacy"
}

// ParseMode converts "legacy" or "permissive" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "":
		return Legacy, nil
	case "permissive":
		return Permissive, nil
	}
	return 0, errors.Newf("unknown typing mode %q", s)
}
