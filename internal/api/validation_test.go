package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStartRunRequest(t *testing.T) {
	tests := []struct {
		name    string
		pkg     string
		wantErr string
	}{
		{name: "plain", pkg: "left-pad"},
		{name: "scoped", pkg: "@types/node"},
		{name: "padded", pkg: "  react  "},
		{name: "empty", pkg: "", wantErr: "package is required"},
		{name: "blank", pkg: "   ", wantErr: "package is required"},
		{name: "too long", pkg: strings.Repeat("a", maxPackageNameLen+1), wantErr: "must not exceed"},
		{name: "inner space", pkg: "left pad", wantErr: "invalid characters"},
		{name: "shell", pkg: "x$(id)", wantErr: "invalid characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStartRunRequest(startRunRequest{Package: tt.pkg})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseNonNegative(t *testing.T) {
	n, err := parseNonNegative("", "since", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = parseNonNegative("12", "since", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parseNonNegative("-1", "since", 0)
	assert.Error(t, err)

	_, err = parseNonNegative("x", "since", 0)
	assert.Error(t, err)
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit("")
	require.NoError(t, err)
	assert.Equal(t, defaultHistory, n)

	n, err = parseLimit("0")
	require.NoError(t, err)
	assert.Equal(t, maxHistory, n)

	n, err = parseLimit("100000")
	require.NoError(t, err)
	assert.Equal(t, maxHistory, n)
}
