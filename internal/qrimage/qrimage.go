// Package qrimage renders scan URLs as QR code PNGs.
package qrimage

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

const (
	minSize     = 64
	maxSize     = 1024
	defaultSize = 320
)

// Render encodes url as a PNG of size x size pixels at medium error correction.
// Sizes outside [64, 1024] are clamped; zero means the default.
func Render(url string, size int) ([]byte, error) {
	if url == "" {
		return nil, errors.New("qrimage: empty content")
	}
	switch {
	case size == 0:
		size = defaultSize
	case size < minSize:
		size = minSize
	case size > maxSize:
		size = maxSize
	}
	return qrcode.Encode(url, qrcode.Medium, size)
}
