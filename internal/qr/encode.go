package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// ImageSize is the edge length in pixels of generated codes.
const ImageSize = 256

// Encode renders the payload as a scannable PNG. The highest error
// correction level is used so codes survive partial occlusion and glare.
// Deterministic for a given payload.
func Encode(p Payload) ([]byte, error) {
	data, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(data), qrcode.Highest, ImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
