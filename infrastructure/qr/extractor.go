package qr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Extractor turns an exported PDF into the payload of its QR code
type Extractor struct {
	rasterizer Rasterizer
	crop       Rect
	logger     *logrus.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithCrop overrides DefaultCrop
func WithCrop(r Rect) Option {
	return func(e *Extractor) {
		e.crop = r
	}
}

// NewExtractor - creates new extractor using r to render pages
func NewExtractor(r Rasterizer, logger *logrus.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := &Extractor{
		rasterizer: r,
		crop:       DefaultCrop,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromPDF - rasterizes, crops and decodes the QR code of pdfPath
func (e *Extractor) FromPDF(ctx context.Context, pdfPath string) (string, error) {
	log := e.logger.WithField("pdf", pdfPath)

	page, err := e.rasterizer.Rasterize(ctx, pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to rasterize %s: %w", pdfPath, err)
	}
	log.Debugf("Rendered page at %v", page.Bounds())

	region, err := Crop(page, e.crop)
	if err != nil {
		return "", err
	}

	payload, err := Decode(region)
	if err != nil {
		log.WithError(err).Warn("QR code reading failed")
		return "", err
	}
	log.WithField("payload", payload).Info("QR code decoded")
	return payload, nil
}
