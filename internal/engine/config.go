package engine

import (
	"fmt"
	"net/url"
	"strings"
)

// RunConfig holds the raw request of one target, the operator's
// restrictions, and the parameter universe derived from them.
type RunConfig struct {
	URL          string
	Method       string
	Data         string
	OriginalData string // body before url-decoding
	Cookie       string
	Agent        string
	Referer      string
	Headers      []Header

	TestParameters []string    // -p restriction; empty means all
	Techniques     []Technique // technique restriction; empty means all
	DBMS           string      // operator-declared back-end DBMS
	OS             string      // operator-declared back-end OS
	ParamDel       string      // GET/POST delimiter override
	CookieDel      string      // cookie delimiter override
	Direct         string      // direct database connection string, no HTTP
	TmpPath        string

	SessionFile     string
	FlushSession    bool
	OutputPath      string
	MultipleTargets bool

	// RawPlaces holds the raw content of every location seen in the request.
	RawPlaces map[Location]string
	// Params is the resolved, testable parameter universe.
	Params *ParameterSet
}

// DefaultRunConfig returns a config with GET as the method and empty
// parameter state.
func DefaultRunConfig() *RunConfig {
	cfg := &RunConfig{Method: "GET"}
	cfg.ResetParams()
	return cfg
}

// ResetParams drops the derived parameter universe.
func (c *RunConfig) ResetParams() {
	c.RawPlaces = make(map[Location]string)
	c.Params = NewParameterSet()
}

// Clone returns a copy with independent header and restriction slices. The
// derived parameter state is reset on the copy.
func (c *RunConfig) Clone() *RunConfig {
	out := *c
	out.Headers = append([]Header(nil), c.Headers...)
	out.TestParameters = append([]string(nil), c.TestParameters...)
	out.Techniques = append([]Technique(nil), c.Techniques...)
	out.ResetParams()
	return &out
}

// Hostname returns the target host used to name the output directory.
func (c *RunConfig) Hostname() string {
	if c.Direct != "" {
		return "direct"
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Hostname() == "" {
		return "target"
	}
	return u.Hostname()
}

// SetHeader replaces the first header with a case-insensitively equal name,
// or appends a new one.
func (c *RunConfig) SetHeader(name, value string) {
	for i, h := range c.Headers {
		if strings.EqualFold(h.Name, name) {
			c.Headers[i].Value = value
			return
		}
	}
	c.Headers = append(c.Headers, Header{Name: name, Value: value})
}

// KnowledgeBase is the per-target state discovered during a run or resumed
// from the session store.
type KnowledgeBase struct {
	PostHint         BodyHint
	ProcessUserMarks Decision
	PostSpaceToPlus  bool

	Fingerprint Fingerprint
	Injections  []*InjectionRecord

	AbsFilePaths        []string
	Chars               *Chars
	DynamicMarkings     []DynamicMarking
	BruteTables         []string
	BruteColumns        []string
	XPCmdshellAvailable bool
}

// Chars are the random boundary characters chosen for a target.
type Chars struct {
	Delimiter string `json:"delimiter"`
	Start     string `json:"start"`
	Stop      string `json:"stop"`
	At        string `json:"at"`
	Space     string `json:"space"`
	Dollar    string `json:"dollar"`
	Hash      string `json:"hash"`
}

// DynamicMarking surrounds a dynamic region of the page content.
type DynamicMarking struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// NewKnowledgeBase returns a fresh knowledge base seeded with the DBMS and
// OS the operator declared in cfg.
func NewKnowledgeBase(cfg *RunConfig) *KnowledgeBase {
	kb := &KnowledgeBase{}
	kb.Reset(cfg)
	return kb
}

// Reset clears all per-target state.
func (kb *KnowledgeBase) Reset(cfg *RunConfig) {
	*kb = KnowledgeBase{}
	if cfg != nil {
		kb.Fingerprint.DBMS = cfg.DBMS
		kb.Fingerprint.OS = cfg.OS
	}
}

// HasInjection reports whether a record for (place, parameter) is active.
func (kb *KnowledgeBase) HasInjection(place Location, parameter string) bool {
	for _, inj := range kb.Injections {
		if inj.Place == place && inj.Parameter == parameter {
			return true
		}
	}
	return false
}

// ParseTechniques parses technique codes such as "BEU" or "B,E,T".
func ParseTechniques(s string) ([]Technique, error) {
	var out []Technique
	seen := make(map[Technique]bool)
	for _, r := range strings.ToUpper(s) {
		if r == ',' || r == ' ' {
			continue
		}
		t := Technique(string(r))
		if _, ok := techniqueNames[t]; !ok {
			return nil, fmt.Errorf("engine: unknown technique %q", string(r))
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
