package pipeline

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
)

// Summary is the run report written as YAML into the output directory.
type Summary struct {
	RunID      string        `yaml:"run_id"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	Input      string        `yaml:"input"`
	Columns    Columns       `yaml:"columns"`
	Policy     string        `yaml:"duplicate_policy"`
	Registry   RegistryInfo  `yaml:"registry"`
	Counts     Counts        `yaml:"counts"`
	Files      []string      `yaml:"files"`
	Phases     []PhaseResult `yaml:"phases"`

	SummaryPath string `yaml:"-"`
}

// Columns records the user column bindings.
type Columns struct {
	Street       string `yaml:"street"`
	HouseNumber  string `yaml:"house_number"`
	Suffix       string `yaml:"suffix"`
	Municipality string `yaml:"municipality"`
}

// RegistryInfo describes the registry file used by the run.
type RegistryInfo struct {
	Path          string    `yaml:"path"`
	Downloaded    bool      `yaml:"downloaded"`
	Modified      time.Time `yaml:"modified,omitempty"`
	Rows          int       `yaml:"rows"`
	DuplicateKeys int       `yaml:"duplicate_keys"`
}

// Counts are row counts. Matched counts input rows, MatchedRows counts output
// rows and differs from Matched only with the "all" duplicate policy.
type Counts struct {
	InputRows         int `yaml:"input_rows"`
	Matched           int `yaml:"matched"`
	MatchedRows       int `yaml:"matched_rows"`
	Unmatched         int `yaml:"unmatched"`
	SkippedGeometries int `yaml:"skipped_geometries"`
}

// PhaseResult is the outcome of one pipeline step.
type PhaseResult struct {
	Name       string `yaml:"name"`
	Status     string `yaml:"status"`
	DurationMs int64  `yaml:"duration_ms"`
	Error      string `yaml:"error,omitempty"`
}

// WriteSummary marshals s to path.
func WriteSummary(path string, s *Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &apperr.IOError{Path: path, Err: err}
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read summary %s", path)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse summary")
	}
	s.SummaryPath = path
	return &s, nil
}
