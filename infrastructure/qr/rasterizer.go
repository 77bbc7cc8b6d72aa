package qr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Rasterizer renders the first page of a PDF
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string) (image.Image, error)
}

// PdftoppmRasterizer renders through poppler's pdftoppm
type PdftoppmRasterizer struct {
	// Binary defaults to pdftoppm on PATH
	Binary string
	// Density in dpi, 100 when zero
	Density int
	// Width and Height scale the page, A4 at 2100x2970 when zero
	Width  int
	Height int
	// ScratchDir holds the intermediate PNG, os.TempDir() when empty
	ScratchDir string
}

func (p PdftoppmRasterizer) args(pdfPath, outPrefix string) []string {
	density, width, height := p.Density, p.Width, p.Height
	if density <= 0 {
		density = 100
	}
	if width <= 0 || height <= 0 {
		width, height = 2100, 2970
	}
	return []string{
		"-png",
		"-singlefile",
		"-f", "1",
		"-l", "1",
		"-r", strconv.Itoa(density),
		"-scale-to-x", strconv.Itoa(width),
		"-scale-to-y", strconv.Itoa(height),
		pdfPath,
		outPrefix,
	}
}

// Rasterize - renders page 1 of pdfPath and decodes the resulting PNG
func (p PdftoppmRasterizer) Rasterize(ctx context.Context, pdfPath string) (image.Image, error) {
	binary := p.Binary
	if binary == "" {
		binary = "pdftoppm"
	}
	dir := p.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	outPrefix := filepath.Join(dir, "qr-"+uuid.New().String())
	outFile := outPrefix + ".png"
	defer os.Remove(outFile)

	args := p.args(pdfPath, outPrefix)
	out, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("command failed: %s %s: %w: %s", binary, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(outFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open rendered page: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}
	return img, nil
}
