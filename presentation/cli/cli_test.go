package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const badgePage = `<html><body>
<form>
  <div class="field"><label>Title</label><input name="title"></div>
  <div class="field"><label>Description</label><textarea name="description"></textarea></div>
  <button type="submit"><span> Save </span></button>
  <button type="button"><span>Save</span></button>
</form>
<ul class="badges">
  <li><span>automated test title</span><a>Edit</a><a>Delete</a></li>
  <li><span>Other badge</span><a>Edit</a></li>
</ul>
</body></html>`

func run(t *testing.T, fs afero.Fs, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand(fs)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func savePage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(badgePage), 0600))
	return path
}

func TestLocate(t *testing.T) {
	page := savePage(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "css", args: []string{"--css", "label"}, want: "Title\nDescription\n"},
		{name: "submit button", args: []string{"--submit", "Save", "--unique"}, want: "Save\n"},
		{name: "containing text", args: []string{"--outer", "li", "--text", "AUTOMATED TEST TITLE", "-i"}, want: "automated test titleEditDelete\n"},
		{name: "tag with text", args: []string{"--tag", "label", "--text", "Title"}, want: "Title\n"},
		{name: "with parent", args: []string{"--parent", ".badges li", "--child", "a"}, want: "Edit\nDelete\nEdit\n"},
		{name: "parent of", args: []string{"--tag", "label", "--text", "Description", "--parent-of", "--unique"}, want: "Description\n"},
		{name: "sibling", args: []string{"--tag", "span", "--text", "automated test title", "--sibling", "a"}, want: "Edit\nDelete\n"},
		{name: "no match", args: []string{"--tag", "label", "--text", "Missing"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, afero.NewMemMapFs(), append([]string{"locate", "--html", page}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestLocate_Errors(t *testing.T) {
	page := savePage(t)

	_, _, err := run(t, afero.NewMemMapFs(), "locate", "--html", page)
	assert.ErrorContains(t, err, "is required")

	_, _, err = run(t, afero.NewMemMapFs(), "locate", "--html", page, "--css", "a", "--tag", "li")
	assert.ErrorContains(t, err, "only one base locator")

	_, _, err = run(t, afero.NewMemMapFs(), "locate", "--html", page, "--parent", "li")
	assert.ErrorContains(t, err, "go together")

	_, _, err = run(t, afero.NewMemMapFs(), "locate", "--html", page, "--css", "button", "--unique")
	assert.ErrorContains(t, err, "expected one")
}

func TestWaitDownload(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/report-7.pdf", []byte("%PDF"), 0644))

	out, stderr, err := run(t, fs, "wait-download", "--pattern", `^report-\d+\.pdf$`, "--dir", "/dl", "--timeout", "1s", "--metrics")
	require.NoError(t, err)
	assert.Equal(t, "/dl/report-7.pdf\n", out)
	assert.Contains(t, stderr, `oeb_download_wait_seconds_count{outcome="ok"} 1`)
}

func TestWaitDownload_Timeout(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dl", 0755))

	_, _, err := run(t, fs, "wait-download", "--pattern", `\.pdf$`, "--dir", "/dl", "--timeout", "200ms")
	assert.ErrorContains(t, err, "200ms")
}

func TestWaitDownload_ClearRemovesStaleExports(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/old.pdf", []byte("%PDF"), 0644))

	_, _, err := run(t, fs, "wait-download", "--pattern", `\.pdf$`, "--dir", "/dl", "--timeout", "200ms", "--clear")
	require.Error(t, err)
	exists, err := afero.Exists(fs, "/dl/old.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTeardown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/o/token":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "t"})
		case r.URL.Path == "/v2/badgeclasses":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": []interface{}{}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("OEB_BACKEND_URL", srv.URL)
	t.Setenv("OEB_USERNAME", "fixture@example.org")
	t.Setenv("OEB_PASSWORD", "pw")

	out, _, err := run(t, afero.NewMemMapFs(), "teardown")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 badges, revoked 0 assertions\n", out)
}

func TestTeardown_RequiresCredentials(t *testing.T) {
	t.Setenv("OEB_USERNAME", "")
	t.Setenv("OEB_PASSWORD", "")

	_, _, err := run(t, afero.NewMemMapFs(), "teardown")
	assert.ErrorContains(t, err, "OEB_USERNAME")
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := run(t, afero.NewMemMapFs(), "--log-level", "shouting", "locate", "--html", "x", "--css", "a")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "shouting"))
}
