package cover

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Image is a picture ready to be embedded.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Probe detects the type and dimensions of an image.
func Probe(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, newError("probe", 0, fmt.Errorf("empty image"))
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, newError("probe", 0, fmt.Errorf("unexpected content type %s", mime.String()))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, newError("probe", 0, err)
	}
	return &Image{
		Data:   data,
		MIME:   mime.String(),
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
