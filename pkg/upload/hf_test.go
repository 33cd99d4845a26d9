package upload

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethpandaops/hfuploadoor/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHub records calls made against a minimal Hub API.
type fakeHub struct {
	whoamiCalls    int
	createCalls    int
	commitAttempts int
	commits        []fakeCommit
	createStatus int    // 0 means 200
	createBody   string // error body when createStatus is set
	commitStatus int    // 0 means 200, applied to every commit
}

type fakeCommit struct {
	repoID  string
	path    string
	summary string
}

func (h *fakeHub) handler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/whoami-v2":
			h.whoamiCalls++

			_, _ = w.Write([]byte(`{"name":"alice"}`))
		case r.URL.Path == "/api/repos/create":
			h.createCalls++

			if h.createStatus != 0 {
				w.WriteHeader(h.createStatus)
				_, _ = w.Write([]byte(h.createBody))

				return
			}

			_, _ = w.Write([]byte(`{}`))
		case strings.HasPrefix(r.URL.Path, "/api/datasets/"):
			h.commitAttempts++

			if h.commitStatus != 0 {
				w.WriteHeader(h.commitStatus)
				_, _ = w.Write([]byte(`{"error":"internal error"}`))

				return
			}

			// /api/datasets/<ns>/<name>/commit/<revision>
			trimmed := strings.TrimPrefix(r.URL.Path, "/api/datasets/")
			repoID := trimmed[:strings.Index(trimmed, "/commit/")]

			scanner := bufio.NewScanner(r.Body)

			var op struct {
				Key   string `json:"key"`
				Value struct {
					Summary string `json:"summary"`
					Path    string `json:"path"`
				} `json:"value"`
			}

			commit := fakeCommit{repoID: repoID}

			for scanner.Scan() {
				require.NoError(t, json.Unmarshal(scanner.Bytes(), &op))

				switch op.Key {
				case "header":
					commit.summary = op.Value.Summary
				case "file":
					commit.path = op.Value.Path
				}
			}

			h.commits = append(h.commits, commit)

			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newHFUploader(srvURL, username, commitPrefix string) Uploader {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	return NewHFUploader(log, &config.HFConfig{
		Token:    "hf_secret",
		Username: username,
		RepoName: "longbench-results",
		Endpoint: srvURL,
	}, commitPrefix)
}

// chdir changes into dir and restores the previous working directory
// when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

// writeResultsDir creates results/a.txt and results/sub/b.txt under a
// fresh working directory and chdirs into it.
func writeResultsDir(t *testing.T) {
	t.Helper()
	chdir(t, t.TempDir())

	require.NoError(t, os.MkdirAll(filepath.Join("results", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("results", "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("results", "sub", "b.txt"), []byte("bbb"), 0o644))
}

func TestHFUploader_UploadsAllFiles(t *testing.T) {
	writeResultsDir(t)

	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	u := newHFUploader(srv.URL, "alice", "Update from github (commit id) 8cec1fab")
	ctx := context.Background()

	require.NoError(t, u.EnsureTarget(ctx))
	require.NoError(t, u.Upload(ctx, "./results"))

	// Username was configured, so identity lookup never happened.
	assert.Equal(t, 0, hub.whoamiCalls)
	assert.Equal(t, 1, hub.createCalls)

	require.Len(t, hub.commits, 2)
	assert.Equal(t, "alice/longbench-results", hub.commits[0].repoID)
	assert.Equal(t, "results/a.txt", hub.commits[0].path)
	assert.Equal(t, "Update from github (commit id) 8cec1fab - results/a.txt", hub.commits[0].summary)
	assert.Equal(t, "results/sub/b.txt", hub.commits[1].path)
	assert.Equal(t, "Update from github (commit id) 8cec1fab - results/sub/b.txt", hub.commits[1].summary)

	// A second run re-uploads everything, no dedup.
	require.NoError(t, u.Upload(ctx, "./results"))
	assert.Len(t, hub.commits, 4)
}

func TestHFUploader_ResolvesUsernameFromToken(t *testing.T) {
	writeResultsDir(t)

	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	u := newHFUploader(srv.URL, "", "update")
	ctx := context.Background()

	require.NoError(t, u.EnsureTarget(ctx))
	require.NoError(t, u.Upload(ctx, "./results"))

	// Resolved once, cached for the upload loop.
	assert.Equal(t, 1, hub.whoamiCalls)

	require.Len(t, hub.commits, 2)
	assert.Equal(t, "alice/longbench-results", hub.commits[0].repoID)
}

func TestHFUploader_WhoamiFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
	}))
	defer srv.Close()

	u := newHFUploader(srv.URL, "", "update")

	err := u.EnsureTarget(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving username")
}

func TestHFUploader_RepoConflictTolerated(t *testing.T) {
	writeResultsDir(t)

	hub := &fakeHub{
		createStatus: http.StatusConflict,
		createBody:   `{"error":"You already created this dataset repo"}`,
	}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	u := newHFUploader(srv.URL, "alice", "update")
	ctx := context.Background()

	require.NoError(t, u.EnsureTarget(ctx))
	require.NoError(t, u.Upload(ctx, "./results"))
	assert.Len(t, hub.commits, 2)
}

func TestHFUploader_RepoCreationErrorAborts(t *testing.T) {
	hub := &fakeHub{
		createStatus: http.StatusInternalServerError,
		createBody:   `{"error":"internal error"}`,
	}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	u := newHFUploader(srv.URL, "alice", "update")

	err := u.EnsureTarget(context.Background())
	require.Error(t, err)
	assert.Empty(t, hub.commits)
}

func TestHFUploader_EmptyDirUploadsNothing(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.MkdirAll("results", 0o755))

	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	u := newHFUploader(srv.URL, "alice", "update")

	require.NoError(t, u.Upload(context.Background(), "./results"))
	assert.Empty(t, hub.commits)
}

func TestHFUploader_MissingDirIsFatal(t *testing.T) {
	chdir(t, t.TempDir())

	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	u := newHFUploader(srv.URL, "alice", "update")

	err := u.Upload(context.Background(), "./results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results directory not found")
}

func TestHFUploader_UploadFailureAbortsLoop(t *testing.T) {
	writeResultsDir(t)

	hub := &fakeHub{commitStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	u := newHFUploader(srv.URL, "alice", "update")

	err := u.Upload(context.Background(), "./results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results/a.txt")

	// The failing first file stopped the walk before the second one.
	assert.Equal(t, 1, hub.commitAttempts)
}
