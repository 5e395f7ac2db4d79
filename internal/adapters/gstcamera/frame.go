package gstcamera

import (
	"image"

	"github.com/cockroachdb/errors"
)

// rgbToImage copies a packed RGB buffer into an RGBA image. Rows may carry
// padding; the stride is derived from the buffer length.
func rgbToImage(data []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Newf("invalid frame size %dx%d", width, height)
	}
	stride := len(data) / height
	if stride < width*3 {
		return nil, errors.Newf("short frame: %d bytes for %dx%d", len(data), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := data[y*stride : y*stride+width*3]
		out := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			out[x*4] = row[x*3]
			out[x*4+1] = row[x*3+1]
			out[x*4+2] = row[x*3+2]
			out[x*4+3] = 0xff
		}
	}
	return img, nil
}
