package faceapi

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const jpegQuality = 85

// encodeFrame downscales img so its longer side is at most maxSide and
// encodes it as JPEG.
func encodeFrame(img image.Image, maxSide int) ([]byte, error) {
	b := img.Bounds()
	w, h := targetDimensions(b.Dx(), b.Dy(), maxSide)
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func targetDimensions(w, h, maxSide int) (int, int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return w, h
	}
	if w >= h {
		h = h * maxSide / w
		w = maxSide
	} else {
		w = w * maxSide / h
		h = maxSide
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
