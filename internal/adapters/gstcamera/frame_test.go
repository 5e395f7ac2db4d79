package gstcamera

import (
	"image/color"
	"testing"
)

func TestRGBToImage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		width   int
		height  int
		wantErr bool
	}{
		{name: "packed", data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, width: 2, height: 2},
		{name: "padded rows", data: []byte{1, 2, 3, 4, 5, 6, 0, 0, 7, 8, 9, 10, 11, 12, 0, 0}, width: 2, height: 2},
		{name: "short", data: []byte{1, 2, 3}, width: 2, height: 2, wantErr: true},
		{name: "zero size", data: nil, width: 0, height: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := rgbToImage(tt.data, tt.width, tt.height)
			if (err != nil) != tt.wantErr {
				t.Fatalf("rgbToImage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			want := color.RGBA{R: 10, G: 11, B: 12, A: 0xff}
			if got := img.RGBAAt(1, 1); got != want {
				t.Errorf("pixel (1,1) = %v, want %v", got, want)
			}
			if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 1, G: 2, B: 3, A: 0xff}) {
				t.Errorf("pixel (0,0) = %v", got)
			}
		})
	}
}

func TestRGBCaps(t *testing.T) {
	got := rgbCaps(Config{Width: 320, Height: 240, FPS: 10})
	want := "video/x-raw,format=RGB,width=320,height=240,framerate=10/1"
	if got != want {
		t.Errorf("rgbCaps() = %q, want %q", got, want)
	}
}
