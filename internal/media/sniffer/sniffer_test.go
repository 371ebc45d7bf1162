package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		format Format
		ext    string
		raster bool
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, FormatJPEG, "jpg", true},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}, FormatPNG, "png", true},
		{"gif", []byte("GIF89a\x01\x00"), FormatGIF, "gif", true},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWEBP, "webp", true},
		{"avif", []byte("\x00\x00\x00\x1cftypavif\x00\x00\x00\x00"), FormatAVIF, "avif", true},
		{"svg", []byte("  <svg xmlns=\"http://www.w3.org/2000/svg\"></svg>"), FormatSVG, "svg", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Detect(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.format, result.Format)
			assert.Equal(t, tc.ext, result.Ext())
			assert.Equal(t, tc.raster, result.Raster())
		})
	}
}

func TestDetectUnknown(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("plain text"), []byte("<?xml version=\"1.0\"?><note/>")} {
		_, err := Detect(data)
		assert.ErrorIs(t, err, ErrUnknownFormat)
	}
}
