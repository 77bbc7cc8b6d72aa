package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaywrightLaunchOptions_KeepArtifactsOutOfDownloadDir(t *testing.T) {
	opts := playwrightLaunchOptions(Options{Backend: BackendPlaywright, Headless: true, DownloadDir: "/tmp/downloads"})

	assert.Nil(t, opts.DownloadsPath)
	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)
	assert.Contains(t, opts.Args, "--disable-dev-shm-usage")
}
