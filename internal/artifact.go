package internal

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

const DefaultHTTPTimeout = 5 * time.Minute

// ErrNoSnapshotHash marks an artifact that was retrieved intact but yielded
// nothing: the target binary is absent from the archive or carries no
// token. Some builds legitimately ship without one.
var ErrNoSnapshotHash = errors.New("no snapshot hash in artifact")

// ArtifactClient retrieves one build artifact at a time, extracts it, and
// scans the target binary. Everything it writes to disk lives in a per-call
// temp directory that is removed before returning, win or lose.
type ArtifactClient struct {
	client      *http.Client
	urlTemplate string
	binaryName  string
	workDir     string
	logger      *log.Logger
}

// NewArtifactClient builds a client around urlTemplate, which must contain
// a single %s slot for the build id. An empty workDir falls back to the
// system temp directory; a nil logger silences progress narration.
func NewArtifactClient(client *http.Client, urlTemplate, binaryName, workDir string, logger *log.Logger) *ArtifactClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ArtifactClient{
		client:      client,
		urlTemplate: urlTemplate,
		binaryName:  binaryName,
		workDir:     workDir,
		logger:      logger,
	}
}

// SnapshotHash downloads the artifact for buildID and returns the snapshot
// hash embedded in its binary.
func (c *ArtifactClient) SnapshotHash(ctx context.Context, buildID string) (string, error) {
	tmpDir, err := os.MkdirTemp(c.workDir, "snaphash-artifact-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	url := fmt.Sprintf(c.urlTemplate, buildID)
	archivePath := filepath.Join(tmpDir, filepath.Base(url))
	if err := downloadFile(ctx, c.client, url, archivePath, c.progressFunc(buildID)); err != nil {
		return "", fmt.Errorf("download artifact: %w", err)
	}

	extractDir := filepath.Join(tmpDir, "extracted")
	if err := extractArchive(archivePath, extractDir); err != nil {
		return "", fmt.Errorf("extract artifact: %w", err)
	}

	binPath, err := findFile(extractDir, c.binaryName)
	if err != nil {
		return "", err
	}

	hash, ok := ExtractFile(binPath)
	if !ok {
		return "", fmt.Errorf("%w: %s carries no token", ErrNoSnapshotHash, c.binaryName)
	}

	return hash, nil
}

// progressFunc narrates one download at debug level, one line per quarter
// of the payload. Transfers with an unknown length stay silent.
func (c *ArtifactClient) progressFunc(buildID string) func(written, total int64) {
	var lastStep int64 = -1
	return func(written, total int64) {
		if total <= 0 {
			return
		}
		step := written * 4 / total
		if step <= lastStep {
			return
		}
		lastStep = step
		c.logger.Debug("downloading artifact",
			"engine", shortHash(buildID), "percent", written*100/total)
	}
}

func extractArchive(archivePath, destDir string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return extractTarGz(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := sanitizePath(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", f.Name, err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s in archive: %w", f.Name, err)
		}
		err = writeExtracted(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}

		target, err := sanitizePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create dir %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", hdr.Name, err)
			}
			if err := writeExtracted(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
		}
	}
}

func writeExtracted(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// sanitizePath rejects entries that would escape destDir. The root itself
// passes: tarballs packed with `tar -C dir .` open with a "./" entry.
func sanitizePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	root := filepath.Clean(destDir)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	return target, nil
}

// findFile locates the first file named name anywhere under root.
func findFile(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk extracted tree: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s not in archive", ErrNoSnapshotHash, name)
	}
	return found, nil
}
