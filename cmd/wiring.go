package main

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/config"
	"github.com/sells-group/gebref-geocoder/internal/fetcher"
	"github.com/sells-group/gebref-geocoder/internal/join"
	"github.com/sells-group/gebref-geocoder/internal/pipeline"
	"github.com/sells-group/gebref-geocoder/internal/registry"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

// newAcquirer builds the registry acquirer for the configured URL.
func newAcquirer(c *config.Config, log *zap.Logger) (*registry.Acquirer, error) {
	f, err := fetcher.ForURL(c.Registry.URL, fetcher.Options{
		HTTP: fetcher.HTTPOptions{
			UserAgent:   c.Fetch.UserAgent,
			Timeout:     time.Duration(c.Fetch.TimeoutSecs) * time.Second,
			MaxAttempts: c.Fetch.MaxAttempts,
			RatePerSec:  c.Fetch.RatePerSec,
		},
		FTP: fetcher.FTPOptions{
			Timeout: time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		},
	})
	if err != nil {
		return nil, err
	}
	return &registry.Acquirer{
		URL:      c.Registry.URL,
		CacheDir: c.Registry.CacheDir,
		FileName: c.Registry.FileName,
		Fetcher:  f,
		Log:      log,
	}, nil
}

func newPipeline(c *config.Config, acq pipeline.Acquirer, log *zap.Logger) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Log:      log,
		Acquirer: acq,
		Registry: registry.LoadOptions{Encoding: c.Registry.Encoding},
		Policy:   join.Policy(c.Join.DuplicatePolicy),
		Output: table.WriteOptions{
			Delimiter: delimiter(c.Output.Delimiter),
			Encoding:  c.Output.Encoding,
		},
		Formats: c.Output.GeometryFormats,
	}
}

func openInput(c *config.Config, path, sheet string) table.Source {
	if sheet == "" {
		sheet = c.Input.Sheet
	}
	return table.OpenSource(path, table.SourceOptions{
		Delimiter: delimiter(c.Input.Delimiter),
		Encoding:  c.Input.Encoding,
		Sheet:     sheet,
	})
}

// delimiter returns the first rune of s, or 0 to keep the reader default.
func delimiter(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}
