// Package registry acquires and parses the official house coordinate
// registry (NRW "Gebäudereferenzen", gebref).
package registry

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
	"github.com/sells-group/gebref-geocoder/internal/fetcher"
)

const etagFile = ".etag"

// Acquirer makes sure a local copy of the registry text file exists.
type Acquirer struct {
	URL      string
	CacheDir string
	FileName string
	Fetcher  fetcher.Fetcher
	Log      *zap.Logger
}

// Result describes what Ensure did.
type Result struct {
	Path       string
	Downloaded bool
	NotChanged bool
	// ModTime is the modification time of the registry file on disk.
	ModTime time.Time
}

// Ensure returns the path of the registry text file. Without refresh and with
// a cached file present no network I/O happens. Otherwise the archive is
// fetched and unpacked into CacheDir. When refreshing with a stored ETag the
// server may answer 304, in which case the cached file is kept.
func (a *Acquirer) Ensure(ctx context.Context, refresh bool) (*Result, error) {
	log := a.logger().With(zap.String("component", "registry.acquire"))
	target := filepath.Join(a.CacheDir, a.FileName)

	cached, err := a.cachedPath(target)
	if err != nil {
		return nil, err
	}
	if cached != "" && !refresh {
		log.Debug("using cached registry", zap.String("path", cached))
		return newResult(cached, false, false), nil
	}

	if a.Fetcher == nil {
		return nil, &apperr.DownloadError{URL: a.URL, Err: eris.New("no fetcher configured")}
	}

	etag := ""
	if cached != "" {
		etag = a.readETag()
	}

	if err := os.MkdirAll(a.CacheDir, 0o755); err != nil {
		return nil, &apperr.DownloadError{URL: a.URL, Err: eris.Wrap(err, "create cache dir")}
	}

	log.Info("downloading official address dataset",
		zap.String("url", a.URL),
		zap.Bool("refresh", refresh),
		zap.Bool("conditional", etag != ""),
	)

	body, newETag, changed, err := a.Fetcher.DownloadIfChanged(ctx, a.URL, etag)
	if err != nil {
		return nil, asDownloadError(a.URL, err)
	}
	if !changed {
		log.Info("registry not modified on server, keeping cache", zap.String("path", cached))
		return newResult(cached, false, true), nil
	}

	zipPath := a.archivePath()
	_, err = fetcher.WriteAtomic(zipPath, body)
	if cerr := body.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, asDownloadError(a.URL, eris.Wrap(err, "save archive"))
	}

	files, err := fetcher.ExtractZIP(zipPath, a.CacheDir)
	if err != nil {
		return nil, asDownloadError(a.URL, eris.Wrap(err, "extract archive"))
	}
	log.Info("registry archive extracted", zap.Int("files", len(files)), zap.String("dir", a.CacheDir))

	found, err := a.cachedPath(target)
	if err != nil {
		return nil, err
	}
	if found == "" {
		return nil, &apperr.DownloadError{URL: a.URL, Err: eris.Errorf("archive contains no %s", a.FileName)}
	}

	if newETag != "" {
		if err := os.WriteFile(filepath.Join(a.CacheDir, etagFile), []byte(newETag), 0o644); err != nil {
			log.Warn("could not store etag", zap.Error(err))
		}
	}

	return newResult(found, true, false), nil
}

func newResult(path string, downloaded, notChanged bool) *Result {
	r := &Result{Path: path, Downloaded: downloaded, NotChanged: notChanged}
	if fi, err := os.Stat(path); err == nil {
		r.ModTime = fi.ModTime().UTC()
	}
	return r
}

// cachedPath returns target if it exists, else a same-named file anywhere
// below CacheDir, else "".
func (a *Acquirer) cachedPath(target string) (string, error) {
	if _, err := os.Stat(target); err == nil {
		return target, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", eris.Wrapf(err, "registry: stat %s", target)
	}
	if _, err := os.Stat(a.CacheDir); err != nil {
		return "", nil
	}
	found, err := fetcher.FindFile(a.CacheDir, a.FileName)
	if err != nil {
		return "", nil
	}
	return found, nil
}

// archivePath is the ZIP location next to the cache dir, named after the URL.
func (a *Acquirer) archivePath() string {
	name := "registry.zip"
	if u, err := url.Parse(a.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		name += ".zip"
	}
	return filepath.Join(filepath.Dir(filepath.Clean(a.CacheDir)), name)
}

func (a *Acquirer) readETag() string {
	data, err := os.ReadFile(filepath.Join(a.CacheDir, etagFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (a *Acquirer) logger() *zap.Logger {
	if a.Log != nil {
		return a.Log
	}
	return zap.L()
}

func asDownloadError(rawURL string, err error) error {
	if apperr.IsDownload(err) {
		return err
	}
	return &apperr.DownloadError{URL: rawURL, Err: err}
}
