// Package qr reads the badge request QR code printed on exported PDFs
package qr

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"net/url"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoQRCode is returned when an image holds no decodable QR code
var ErrNoQRCode = errors.New("no QR code found")

// Rect is a crop region in pixels of the rasterized page
type Rect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// DefaultCrop is where the QR code sits on an A4 export rendered at
// 2100x2970 pixels
var DefaultCrop = Rect{Left: 600, Top: 850, Width: 900, Height: 900}

func (r Rect) bounds(origin image.Point) image.Rectangle {
	topLeft := origin.Add(image.Pt(r.Left, r.Top))
	return image.Rectangle{Min: topLeft, Max: topLeft.Add(image.Pt(r.Width, r.Height))}
}

// Crop - copies r out of img into a new image anchored at 0,0. The region
// must lie inside the image.
func Crop(img image.Image, r Rect) (image.Image, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("invalid crop size %dx%d", r.Width, r.Height)
	}
	region := r.bounds(img.Bounds().Min)
	if !region.In(img.Bounds()) {
		return nil, fmt.Errorf("crop %v exceeds image bounds %v", region, img.Bounds())
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(dst, dst.Bounds(), img, region.Min, draw.Src)
	return dst, nil
}

// Decode - returns the text of the QR code in img
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to binarize image: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoQRCode, err)
	}
	return result.GetText(), nil
}

// RequestID - returns the last path segment of a badge request URL
func RequestID(payload string) (string, error) {
	path := payload
	if u, err := url.Parse(payload); err == nil && u.Path != "" {
		path = u.Path
	}
	id := path[strings.LastIndex(path, "/")+1:]
	if id == "" {
		return "", fmt.Errorf("no request id in %q", payload)
	}
	return id, nil
}
