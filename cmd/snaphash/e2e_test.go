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
	"testing"
	"time"

	"github.com/binwatch/snaphash/internal"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/klauspost/compress/zip"
)

// Serve file endpoints in-process so tests never shell out to git.
func init() {
	client.InstallProtocol("file", server.NewClient(server.DefaultLoader))
}

const e2eEngineID = "f40e976bed3eb0ad833f93958173e53e859f2753"

type e2eEnv struct {
	cfgPath    string
	ledgerPath string
	release    string // commit hash of the release with an engine file
}

// setupE2E builds a source repo with one release commit, a release feed and
// an artifact server around it, and writes a config file pointing at all
// three.
func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	dir := t.TempDir()

	repoDir := filepath.Join(dir, "source")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}
	release := commitEngineFile(t, repoDir, e2eEngineID+"\n")

	feed := struct {
		Releases []internal.Release `json:"releases"`
	}{Releases: []internal.Release{{
		Hash:           release,
		Channel:        "stable",
		Version:        "3.24.0",
		DartSDKVersion: "3.5.0",
		ReleaseDate:    "2024-08-06T18:20:24.000Z",
	}}}
	releasesSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(feed)
	}))
	t.Cleanup(releasesSrv.Close)

	archive := zipArchive(t, map[string][]byte{
		"out/gen_snapshot": framed(testToken),
	})
	artifactSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+e2eEngineID+"/linux-x64.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(archive)
	}))
	t.Cleanup(artifactSrv.Close)

	env := &e2eEnv{
		cfgPath:    filepath.Join(dir, "snaphash.yaml"),
		ledgerPath: filepath.Join(dir, "snapshot_hashes.csv"),
		release:    release,
	}

	cfg := &internal.Config{
		ReleasesURL: releasesSrv.URL,
		RepoURL:     filepath.Join(repoDir, ".git"),
		CloneDir:    filepath.Join(dir, "clone"),
		EnginePath:  "bin/internal/engine.version",
		ArtifactURL: artifactSrv.URL + "/%s/linux-x64.zip",
		BinaryName:  "gen_snapshot",
		LedgerPath:  env.ledgerPath,
	}
	if err := internal.SaveConfig(env.cfgPath, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	return env
}

func commitEngineFile(t *testing.T, dir, content string) string {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init fixture: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("fixture worktree: %v", err)
	}

	rel := "bin/internal/engine.version"
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write engine file: %v", err)
	}

	if _, err := wt.Add(rel); err != nil {
		t.Fatalf("stage: %v", err)
	}
	hash, err := wt.Commit("add engine version", &git.CommitOptions{
		Author: &object.Signature{Name: "fixture", Email: "fixture@test", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

func zipArchive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()

	root := NewRootCmd("test")
	root.SetArgs(args)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)

	if err := root.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestE2ECollect(t *testing.T) {
	env := setupE2E(t)

	out := runRoot(t, "--config", env.cfgPath)
	if !strings.Contains(out, "Added 1 new snapshot hashes") {
		t.Errorf("summary = %q", out)
	}

	data, err := os.ReadFile(env.ledgerPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("ledger lines = %d, want header plus one record", len(lines))
	}
	want := strings.Join([]string{
		"stable", "3.24.0", "3.5.0", "2024-08-06T18:20:24.000Z",
		env.release, e2eEngineID, testToken,
	}, ",")
	if lines[1] != want {
		t.Errorf("record = %q, want %q", lines[1], want)
	}
}

func TestE2ERerunFindsNothing(t *testing.T) {
	env := setupE2E(t)

	runRoot(t, "--config", env.cfgPath)
	before, err := os.ReadFile(env.ledgerPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}

	out := runRoot(t, "--config", env.cfgPath)
	if !strings.Contains(out, "No new snapshot hashes found.") {
		t.Errorf("rerun summary = %q", out)
	}

	after, err := os.ReadFile(env.ledgerPath)
	if err != nil {
		t.Fatalf("reread ledger: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("rerun changed the ledger")
	}
}

func TestE2EDryRun(t *testing.T) {
	env := setupE2E(t)

	out := runRoot(t, "--config", env.cfgPath, "--dry-run")
	if !strings.Contains(out, "+stable,3.24.0") {
		t.Errorf("dry run diff missing new record: %q", out)
	}
	if !strings.Contains(out, "ledger not written") {
		t.Errorf("dry run summary = %q", out)
	}

	if _, err := os.Stat(env.ledgerPath); err == nil {
		t.Error("dry run created the ledger")
	} else if !os.IsNotExist(err) {
		t.Fatalf("stat ledger: %v", err)
	}
}

func TestE2ECollectJSON(t *testing.T) {
	env := setupE2E(t)

	out := runRoot(t, "--config", env.cfgPath, "--json")
	for _, want := range []string{`"added": 1`, `"written": true`, `"snapshot_hash": "` + testToken + `"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestE2ELedgerAfterCollect(t *testing.T) {
	env := setupE2E(t)

	runRoot(t, "--config", env.cfgPath)

	out := runRoot(t, "ledger", "--config", env.cfgPath)
	if !strings.Contains(out, testToken) {
		t.Errorf("ledger output missing recorded hash: %q", out)
	}
	if !strings.Contains(out, "1 of 1 records") {
		t.Errorf("ledger summary = %q", out)
	}
}
