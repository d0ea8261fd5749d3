package barcodes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
		stats Stats
	}{
		{
			name:  "one per row",
			input: "A1\nB2\nC3\n",
			want:  []string{"A1", "B2", "C3"},
			stats: Stats{Rows: 3},
		},
		{
			name:  "first column only",
			input: "A1,Projector\nB2,Tripod,spare\n",
			want:  []string{"A1", "B2"},
			stats: Stats{Rows: 2},
		},
		{
			name:  "trims and skips blanks",
			input: "  A1  \n,\n\"\"\nB2\n",
			want:  []string{"A1", "B2"},
			stats: Stats{Rows: 4, Blank: 2},
		},
		{
			name:  "repeats kept once",
			input: "A1\nB2\nA1\n",
			want:  []string{"A1", "B2"},
			stats: Stats{Rows: 3, Repeated: 1},
		},
		{
			name:  "byte order mark",
			input: "\ufeffA1\r\nB2\r\n",
			want:  []string{"A1", "B2"},
			stats: Stats{Rows: 2},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
			stats: Stats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats, err := Read(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.stats, stats)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.csv")
	require.NoError(t, os.WriteFile(path, []byte("100234\n100235\n"), 0600))

	got, stats, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"100234", "100235"}, got)
	assert.Equal(t, 2, stats.Rows)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "failed to open CSV file")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
