package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginalPhotoName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "front view.JPG", want: "front view.JPG"},
		{name: "trims spaces", input: "  roof.png  ", want: "roof.png"},
		{name: "drops windows path", input: `C:\Users\inspector\Desktop\bench.jpg`, want: "bench.jpg"},
		{name: "drops unix path", input: "../../etc/stop.jpg", want: "stop.jpg"},
		{name: "replaces header breakers", input: `shelter"; filename=x.jpg`, want: "shelter__ filename=x.jpg"},
		{name: "strips zero-width", input: "BS\u200B-001\uFEFF.webp", want: "BS-001.webp"},
		{name: "strips control", input: "bin\r\n.png", want: "bin.png"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := OriginalPhotoName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOriginalPhotoNameRejects(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "..", "/", ".hidden.jpg", "\u200B\u200C"} {
		_, err := OriginalPhotoName(input)
		assert.Error(t, err, "%q", input)
	}
}

func TestOriginalPhotoNameTruncatesByRune(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("é", 300) + ".jpg"
	got, err := OriginalPhotoName(input)
	require.NoError(t, err)
	assert.Equal(t, maxOriginalNameRunes, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}
