package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is a posts API whose GET payload and failure mode tests control.
type fakeRemote struct {
	*httptest.Server

	posts  atomic.Value // string
	fail   atomic.Bool
	posted atomic.Int32
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()

	r := &fakeRemote{}
	r.posts.Store(`[]`)

	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		switch req.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, r.posts.Load().(string))
		case http.MethodPost:
			r.posted.Add(1)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":101,"userId":1,"title":"echo","body":"echo"}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(r.Close)

	return r
}

type harness struct {
	t      *testing.T
	dir    string
	db     string
	remote *fakeRemote
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		dir:    t.TempDir(),
		remote: newFakeRemote(t),
	}
	h.db = filepath.Join(h.dir, "data", "quotes.db")

	t.Setenv("APP_ENVIRONMENT", "")
	t.Setenv("APP_SERVICES_REMOTE_BASE_URL", h.remote.URL)
	t.Setenv("APP_CLIENT_RETRY_MAX_ATTEMPTS", "1")

	return h
}

func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()

	var out, errOut bytes.Buffer

	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--config-dir", h.dir, "--backend", "sqlite", "--db", h.db}, args...))
	err = cmd.Execute()

	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()

	out, errOut, err := h.run(args...)
	require.NoError(h.t, err, errOut)

	return out
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()

	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

type exported struct {
	ID       *int64 `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (h *harness) export() []exported {
	h.t.Helper()

	var quotes []exported
	require.NoError(h.t, json.Unmarshal([]byte(h.mustRun("export")), &quotes))

	return quotes
}

func TestAddAndExport(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("add", "--text", "Ship it.", "--category", "work")
	assert.Equal(t, "added \"Ship it.\" (work)\n", out)

	quotes := h.export()
	require.Len(t, quotes, 5)
	assert.Equal(t, "Ship it.", quotes[4].Text)
	assert.Nil(t, quotes[4].ID)

	assert.Equal(t, int32(1), h.remote.posted.Load(), "new quotes are posted before exit")
}

func TestAdd_RejectsBlankText(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("add", "--text", "  ", "--category", "work")
	require.Error(t, err)
	assert.Len(t, h.export(), 4)
}

func TestExport_ToFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "quotes.json")

	out, errOut, err := h.run("export", "--out", path)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "exported 4 quotes")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"), "indented by two spaces")
}

func TestImport(t *testing.T) {
	h := newHarness(t)
	file := h.writeFile("in.json", `[
		{"text":"First.","category":"a"},
		{"text":"Second.","category":"b"},
		{"text":"First.","category":"a"}
	]`)

	assert.Equal(t, "imported 2 quotes (6 total)\n", h.mustRun("import", file))
	assert.Equal(t, "imported 0 quotes (6 total)\n", h.mustRun("import", file))
}

func TestImport_Invalid(t *testing.T) {
	h := newHarness(t)

	tests := map[string]string{
		"not an array":   `{"text":"x"}`,
		"missing text":   `[{"category":"a"}]`,
		"numeric fields": `[{"text":1,"category":"a"}]`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := h.run("import", h.writeFile("bad.json", content))
			require.Error(t, err)
		})
	}

	_, _, err := h.run("import", filepath.Join(h.dir, "missing.json"))
	require.Error(t, err)

	assert.Len(t, h.export(), 4, "failed imports change nothing")
}

func TestCategoriesAndRandom(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "* all\n  motivation\n  success\n  wisdom\n", h.mustRun("categories"))

	out := h.mustRun("categories", "--select", "wisdom")
	assert.Contains(t, out, "* wisdom\n")
	assert.Contains(t, out, "  all\n")

	assert.Equal(t, "\"The best way to predict the future is to create it.\" (wisdom)\n", h.mustRun("random"))
	assert.Contains(t, h.mustRun("random", "--category", "success"), "(success)")

	_, _, err := h.run("categories", "--select", "poetry")
	require.Error(t, err)

	_, _, err = h.run("random", "--category", "poetry")
	require.Error(t, err)
}

func TestSync_MergesRemote(t *testing.T) {
	h := newHarness(t)
	h.remote.posts.Store(`[{"id":1,"userId":1,"title":"remote one","body":"x"},{"id":2,"userId":1,"title":" ","body":"x"}]`)

	assert.Equal(t, "fetched 1, added 1, conflicts 0\n", h.mustRun("sync"))
	assert.Equal(t, "fetched 1, added 0, conflicts 0\n", h.mustRun("sync"))

	quotes := h.export()
	require.Len(t, quotes, 5)
	assert.Equal(t, "remote one", quotes[4].Text)
	assert.Equal(t, "Server", quotes[4].Category)
}

func TestSync_Conflicts(t *testing.T) {
	h := newHarness(t)
	h.mustRun("import", h.writeFile("in.json", `[{"id":1,"text":"local one","category":"mine"}]`))
	h.remote.posts.Store(`[{"id":1,"userId":1,"title":"remote one","body":"x"}]`)

	out, _, err := h.run("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--prefer")
	assert.Contains(t, out, "conflict 1\n  server: \"remote one\" (Server)\n  local:  \"local one\" (mine)\n")

	_, _, err = h.run("sync", "--prefer", "both")
	require.Error(t, err)

	out = h.mustRun("sync", "--prefer", "local")
	assert.Contains(t, out, "resolved 1 conflicts using local version")
	assert.Equal(t, "local one", h.export()[4].Text)

	h.mustRun("sync", "--prefer", "server")

	quotes := h.export()
	require.Len(t, quotes, 5)
	assert.Equal(t, "remote one", quotes[4].Text)
	assert.Equal(t, "Server", quotes[4].Category)
}

func TestSync_RemoteDown(t *testing.T) {
	h := newHarness(t)
	h.remote.fail.Store(true)

	_, _, err := h.run("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
	assert.Len(t, h.export(), 4)
}

func TestPush(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "posted 4 of 4 local quotes\n", h.mustRun("push"))
	assert.Equal(t, int32(4), h.remote.posted.Load())

	h.remote.fail.Store(true)

	out, _, err := h.run("push")
	require.Error(t, err)
	assert.Equal(t, "posted 0 of 4 local quotes\n", out)
}

func TestMemoryBackendWarns(t *testing.T) {
	h := newHarness(t)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--config-dir", h.dir, "--backend", "memory", "categories"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "memory backend")
}
