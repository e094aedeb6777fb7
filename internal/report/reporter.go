// Package report renders the resolved injection points of a target and the
// knowledge resumed for it.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/0x6d61/sqltarget/internal/engine"
)

// Reporter generates output in a specific format.
type Reporter interface {
	// Format returns the format name (e.g., "text", "json").
	Format() string

	// Generate writes the formatted result to w.
	Generate(ctx context.Context, result *Result, w io.Writer) error
}

// New creates a reporter by format name ("text", "json" or "yaml").
// The format name is case-insensitive.
func New(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "text":
		return &TextReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	case "yaml", "yml":
		return &YAMLReporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}

// Result is what was resolved for one target.
type Result struct {
	URL         string
	Method      string
	Data        string
	PostHint    engine.BodyHint
	Params      *engine.ParameterSet
	Fingerprint engine.Fingerprint
	Injections  []*engine.InjectionRecord
	// Err is set when the target could not be resolved.
	Err error
}

// NewResult captures the state of cfg and kb after target setup.
func NewResult(cfg *engine.RunConfig, kb *engine.KnowledgeBase, err error) *Result {
	r := &Result{
		URL:    cfg.URL,
		Method: cfg.Method,
		Data:   cfg.Data,
		Params: cfg.Params,
		Err:    err,
	}
	if kb != nil {
		r.PostHint = kb.PostHint
		r.Fingerprint = kb.Fingerprint
		r.Injections = kb.Injections
	}
	return r
}

// document is the structure shared by the JSON and YAML reporters.
type document struct {
	SchemaVersion string          `json:"schema_version" yaml:"schema_version"`
	Tool          string          `json:"tool" yaml:"tool"`
	Target        docTarget       `json:"target" yaml:"target"`
	Places        []docPlace      `json:"places" yaml:"places"`
	Fingerprint   *docFingerprint `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Injections    []docInjection  `json:"injections" yaml:"injections"`
	Summary       docSummary      `json:"summary" yaml:"summary"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type docTarget struct {
	URL      string `json:"url" yaml:"url"`
	Method   string `json:"method" yaml:"method"`
	Data     string `json:"data,omitempty" yaml:"data,omitempty"`
	PostHint string `json:"post_hint,omitempty" yaml:"post_hint,omitempty"`
}

type docPlace struct {
	Place      string     `json:"place" yaml:"place"`
	Parameters []docParam `json:"parameters" yaml:"parameters"`
}

type docParam struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

type docFingerprint struct {
	DBMS     string   `json:"dbms,omitempty" yaml:"dbms,omitempty"`
	Versions []string `json:"versions,omitempty" yaml:"versions,omitempty"`
	OS       string   `json:"os,omitempty" yaml:"os,omitempty"`
}

type docInjection struct {
	Place      string   `json:"place" yaml:"place"`
	Parameter  string   `json:"parameter" yaml:"parameter"`
	Techniques []string `json:"techniques" yaml:"techniques"`
}

type docSummary struct {
	Places     int `json:"places" yaml:"places"`
	Parameters int `json:"parameters" yaml:"parameters"`
	Injections int `json:"injections" yaml:"injections"`
}

func newDocument(result *Result) document {
	doc := document{
		SchemaVersion: "1.0",
		Tool:          "sqltarget",
		Target: docTarget{
			URL:      result.URL,
			Method:   result.Method,
			Data:     result.Data,
			PostHint: result.PostHint.String(),
		},
		Places:     make([]docPlace, 0),
		Injections: make([]docInjection, 0, len(result.Injections)),
	}

	for _, loc := range result.Params.Locations() {
		p := docPlace{Place: loc.String(), Parameters: make([]docParam, 0)}
		result.Params.Get(loc).Each(func(name, value string) {
			p.Parameters = append(p.Parameters, docParam{Name: name, Value: value})
		})
		doc.Places = append(doc.Places, p)
	}

	fp := result.Fingerprint
	if fp.DBMS != "" || fp.OS != "" {
		doc.Fingerprint = &docFingerprint{DBMS: fp.DBMS, Versions: fp.Versions, OS: fp.OS}
	}

	for _, inj := range result.Injections {
		techs := make([]string, 0, len(inj.Data))
		for _, t := range inj.Techniques() {
			techs = append(techs, string(t))
		}
		doc.Injections = append(doc.Injections, docInjection{
			Place:      inj.Place.String(),
			Parameter:  inj.Parameter,
			Techniques: techs,
		})
	}

	doc.Summary = docSummary{
		Places:     len(doc.Places),
		Parameters: result.Params.Count(),
		Injections: len(doc.Injections),
	}
	if result.Err != nil {
		doc.Error = result.Err.Error()
	}
	return doc
}
