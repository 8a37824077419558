package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVariables(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		overrides map[string]string
		want      map[string]any
		wantErr   bool
	}{
		{
			name: "empty",
			want: nil,
		},
		{
			name: "json object",
			raw:  `{"id":"1","first":10}`,
			want: map[string]any{"id": "1", "first": float64(10)},
		},
		{
			name:      "overrides decode json",
			raw:       `{"first":10}`,
			overrides: map[string]string{"first": "20", "flag": "true", "name": "gopher"},
			want:      map[string]any{"first": float64(20), "flag": true, "name": "gopher"},
		},
		{
			name:    "invalid json",
			raw:     `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVariables(tt.raw, tt.overrides)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRequireURL(t *testing.T) {
	require.Error(t, (&globalFlags{}).requireURL())
	require.NoError(t, (&globalFlags{url: "ws://localhost/graphql"}).requireURL())
}

func TestClientOptions(t *testing.T) {
	flags := &globalFlags{
		headers:     map[string]string{"X-Api-Key": "k"},
		initHeaders: map[string]string{"Authorization": "Bearer t"},
	}

	// Logger, one upgrade header and the init headers.
	require.Len(t, flags.clientOptions(), 3)
}

func TestVersionCmd(t *testing.T) {
	cmd := versionCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "dev", strings.TrimSpace(out.String()))
}
