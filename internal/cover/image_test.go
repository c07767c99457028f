package cover

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	var pngBuf, jpegBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 3, 2))))
	require.NoError(t, jpeg.Encode(&jpegBuf, image.NewRGBA(image.Rect(0, 0, 16, 8)), nil))

	img, err := Probe(pngBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, pngBuf.Bytes(), img.Data)

	img, err = Probe(jpegBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIME)
	assert.Equal(t, 16, img.Width)
	assert.Equal(t, 8, img.Height)
}

func TestProbeErrors(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"text":      []byte("hello world"),
		"truncated": {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Probe(data)
			assert.ErrorIs(t, err, ErrCover)
		})
	}
}
