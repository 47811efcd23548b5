// Package fs mirrors crawled documentation pages to a directory of
// markdown files.
package fs

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/idedocs"
	"gopkg.in/yaml.v3"
)

var _ idedocs.PageStore = (*FileStore)(nil)

// FileStore implements idedocs.PageStore. Pages are written below
// baseDir/name.tmp and replace baseDir/name on Commit.
type FileStore struct {
	baseDir string
	name    string

	// Version is recorded in the frontmatter of every page when set.
	Version string

	// Now returns the crawl date. Defaults to time.Now.
	Now func() time.Time
}

// NewFileStore returns a FileStore mirroring into baseDir/name.
func NewFileStore(baseDir, name string) *FileStore {
	return &FileStore{baseDir: baseDir, name: name}
}

func (s *FileStore) tempDir() string  { return filepath.Join(s.baseDir, s.name+".tmp") }
func (s *FileStore) finalDir() string { return filepath.Join(s.baseDir, s.name) }

// Save writes page to the pending mirror. Pages of different hosts are
// kept in separate directories.
func (s *FileStore) Save(ctx context.Context, page *idedocs.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := URLToPath(page.URL)
	if err != nil {
		return err
	}
	full := filepath.Join(s.tempDir(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	content, err := s.format(page)
	if err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

// Commit replaces the mirror with the saved pages.
func (s *FileStore) Commit() error {
	if _, err := os.Stat(s.tempDir()); os.IsNotExist(err) {
		return idedocs.Errorf(idedocs.EINVALID, "no pages saved")
	}
	if err := os.RemoveAll(s.finalDir()); err != nil {
		return err
	}
	return os.Rename(s.tempDir(), s.finalDir())
}

// Abort discards the saved pages.
func (s *FileStore) Abort() error {
	return os.RemoveAll(s.tempDir())
}

type frontmatter struct {
	Source  string `yaml:"source"`
	Title   string `yaml:"title,omitempty"`
	Version string `yaml:"version,omitempty"`
	Crawled string `yaml:"crawled"`
}

func (s *FileStore) format(page *idedocs.Page) ([]byte, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	fm, err := yaml.Marshal(frontmatter{
		Source:  page.URL,
		Title:   page.Title,
		Version: s.Version,
		Crawled: now().UTC().Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	b.WriteString(page.Content)
	if !strings.HasSuffix(page.Content, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// URLToPath maps a page URL to a slash-separated relative file path under
// a directory named after its host.
// Example: https://zed.dev/docs/themes → zed.dev/docs/themes.md
func URLToPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", idedocs.Errorf(idedocs.EINVALID, "invalid page URL %q", rawURL)
	}
	if u.Host == "" {
		return "", idedocs.Errorf(idedocs.EINVALID, "page URL %q has no host", rawURL)
	}

	p := path.Clean("/" + u.Path)
	switch {
	case p == "/":
		p = "/index.md"
	case strings.HasSuffix(u.Path, "/"):
		p += "/index.md"
	case strings.HasSuffix(p, ".html"), strings.HasSuffix(p, ".htm"):
		p = strings.TrimSuffix(strings.TrimSuffix(p, ".html"), ".htm") + ".md"
	default:
		p += ".md"
	}
	return strings.ReplaceAll(u.Host, ":", "_") + p, nil
}
