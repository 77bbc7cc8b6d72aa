package diagnostics

import (
	"context"
	"errors"
	"io"
	"testing"

	"oeb_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shotPage struct {
	data []byte
	err  error
}

func (p *shotPage) QueryAll(context.Context, string) ([]interfaces.Element, error) { return nil, nil }

func (p *shotPage) Screenshot(context.Context) ([]byte, error) { return p.data, p.err }

type blindPage struct{}

func (blindPage) QueryAll(context.Context, string) ([]interfaces.Element, error) { return nil, nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFileName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "Download QR PDF", want: "download_qr_pdf"},
		{title: `Badge "automated" can't be awarded`, want: "badge_automated_cant_be_awarded"},
		{title: "Ümlaut/Path", want: "_mlaut_path"},
		{title: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.title))
		})
	}
}

func TestCapture(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewCapturer(fs, "/out/screenshots", quietLogger())

	path, err := c.Capture(context.Background(), &shotPage{data: []byte("png")}, "Issuer Flow")
	require.NoError(t, err)
	assert.Equal(t, "/out/screenshots/issuer_flow.png", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestCapture_PageWithoutScreenshots(t *testing.T) {
	fs := afero.NewMemMapFs()
	path, err := NewCapturer(fs, "", quietLogger()).Capture(context.Background(), blindPage{}, "x")
	require.NoError(t, err)
	assert.Empty(t, path)

	// the directory is still created
	ok, err := afero.DirExists(fs, DefaultDir)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCapture_ScreenshotFails(t *testing.T) {
	boom := errors.New("target closed")
	_, err := NewCapturer(afero.NewMemMapFs(), "/s", quietLogger()).
		Capture(context.Background(), &shotPage{err: boom}, "x")
	assert.ErrorIs(t, err, boom)
}
