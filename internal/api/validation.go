package api

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	maxPackageNameLen = 214
	defaultHistory    = 50
	maxHistory        = 500
)

// validateStartRunRequest checks the shape of a run request. Tool and
// scenario names are resolved by the session layer.
func validateStartRunRequest(req startRunRequest) error {
	pkg := strings.TrimSpace(req.Package)
	if pkg == "" {
		return fmt.Errorf("package is required")
	}
	if len(pkg) > maxPackageNameLen {
		return fmt.Errorf("package must not exceed %d characters", maxPackageNameLen)
	}
	if strings.ContainsAny(pkg, " \t\n\"';&|$`") {
		return fmt.Errorf("package contains invalid characters")
	}
	return nil
}

// parseNonNegative reads an optional integer query parameter.
func parseNonNegative(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func parseLimit(raw string) (int, error) {
	n, err := parseNonNegative(raw, "limit", defaultHistory)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > maxHistory {
		return maxHistory, nil
	}
	return n, nil
}
