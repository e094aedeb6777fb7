// Package engine holds the data model shared by injection point resolution
// and session resume: request locations, resolved parameter sets, body
// hints, stored injection records and the target fingerprint.
package engine

import (
	"sort"
	"strings"
)

// MarkChar is the custom injection marking character. Operators place it in
// raw request text to select a test position by hand.
const MarkChar = "*"

// AsteriskMarker replaces literal MarkChar occurrences in structured bodies
// before automatic marking, so that they are not mistaken for test positions.
const AsteriskMarker = "__ASTERISK_MARK__"

// Location identifies where in the request a parameter lives.
type Location int

const (
	LocationQuery Location = iota
	LocationBody
	LocationCookie
	LocationUserAgent
	LocationReferer
	LocationHost
	LocationURI
	LocationCustomBody
	LocationCustomHeader
	LocationDirect
)

var locationNames = [...]string{
	"GET", "POST", "Cookie", "User-Agent", "Referer", "Host",
	"URI", "(custom) POST", "(custom) HEADER", "direct",
}

// String returns the place name used in prompts, reports and the session store.
func (l Location) String() string {
	if int(l) >= 0 && int(l) < len(locationNames) {
		return locationNames[l]
	}
	return "unknown"
}

// ParseLocation is the inverse of Location.String.
func ParseLocation(name string) (Location, bool) {
	for i, n := range locationNames {
		if strings.EqualFold(n, name) {
			return Location(i), true
		}
	}
	return 0, false
}

// MarshalText encodes the location by name.
func (l Location) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a location name. Unknown names decode to -1, which
// never matches a resolved location.
func (l *Location) UnmarshalText(text []byte) error {
	loc, ok := ParseLocation(string(text))
	if !ok {
		*l = Location(-1)
		return nil
	}
	*l = loc
	return nil
}

// BodyHint classifies the structure of a POST body.
type BodyHint int

const (
	HintNone BodyHint = iota
	HintJSON
	HintXML
	HintSOAP
	HintMultipart
)

// String returns the hint label used when naming manually marked body
// parameters (e.g. "JSON #1*").
func (h BodyHint) String() string {
	switch h {
	case HintJSON:
		return "JSON"
	case HintXML:
		return "XML"
	case HintSOAP:
		return "SOAP"
	case HintMultipart:
		return "MULTIPART"
	default:
		return ""
	}
}

// HeaderKind tags the request headers that are testable on their own.
type HeaderKind int

const (
	HeaderOther HeaderKind = iota
	HeaderUserAgent
	HeaderReferer
	HeaderHost
)

// Header is a single request header. Order matters, so headers are kept as
// a slice rather than a map.
type Header struct {
	Name  string
	Value string
}

// Decision is a cached tri-state operator answer.
type Decision int

const (
	DecisionUnset Decision = iota
	DecisionYes
	DecisionNo
)

// ParamDict is an insertion-ordered mapping of parameter name to value.
type ParamDict struct {
	names  []string
	values map[string]string
}

// NewParamDict returns an empty dict.
func NewParamDict() *ParamDict {
	return &ParamDict{values: make(map[string]string)}
}

// Set stores value under name. Overwriting keeps the original position.
func (d *ParamDict) Set(name, value string) {
	if _, ok := d.values[name]; !ok {
		d.names = append(d.names, name)
	}
	d.values[name] = value
}

// Get returns the value stored under name.
func (d *ParamDict) Get(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.values[name]
	return v, ok
}

// Has reports whether name is present.
func (d *ParamDict) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// Len returns the number of parameters. A nil dict is empty.
func (d *ParamDict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns parameter names in insertion order.
func (d *ParamDict) Names() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Each calls fn for every parameter in insertion order.
func (d *ParamDict) Each(fn func(name, value string)) {
	if d == nil {
		return
	}
	for _, n := range d.names {
		fn(n, d.values[n])
	}
}

// ParameterSet maps each location to its testable parameters. Locations
// keep the order in which they were first added.
type ParameterSet struct {
	order []Location
	dicts map[Location]*ParamDict
}

// NewParameterSet returns an empty set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{dicts: make(map[Location]*ParamDict)}
}

// Put installs d for loc, replacing any previous dict.
func (s *ParameterSet) Put(loc Location, d *ParamDict) {
	if _, ok := s.dicts[loc]; !ok {
		s.order = append(s.order, loc)
	}
	s.dicts[loc] = d
}

// Get returns the dict for loc, or nil.
func (s *ParameterSet) Get(loc Location) *ParamDict {
	if s == nil {
		return nil
	}
	return s.dicts[loc]
}

// Delete drops loc from the set.
func (s *ParameterSet) Delete(loc Location) {
	if _, ok := s.dicts[loc]; !ok {
		return
	}
	delete(s.dicts, loc)
	for i, l := range s.order {
		if l == loc {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Has reports whether parameter name exists at loc.
func (s *ParameterSet) Has(loc Location, name string) bool {
	return s.Get(loc).Has(name)
}

// Locations returns the locations in insertion order.
func (s *ParameterSet) Locations() []Location {
	if s == nil {
		return nil
	}
	out := make([]Location, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the total number of parameters across all locations.
func (s *ParameterSet) Count() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, d := range s.dicts {
		n += d.Len()
	}
	return n
}

// Technique is a single-letter injection technique code.
type Technique string

const (
	TechniqueBoolean Technique = "B"
	TechniqueError   Technique = "E"
	TechniqueUnion   Technique = "U"
	TechniqueStacked Technique = "S"
	TechniqueTime    Technique = "T"
	TechniqueInline  Technique = "Q"
)

var techniqueNames = map[Technique]string{
	TechniqueBoolean: "boolean-blind",
	TechniqueError:   "error-based",
	TechniqueUnion:   "union-based",
	TechniqueStacked: "stacked-queries",
	TechniqueTime:    "time-based",
	TechniqueInline:  "inline-query",
}

// Name returns the long technique name.
func (t Technique) Name() string {
	if n, ok := techniqueNames[t]; ok {
		return n
	}
	return "unknown"
}

// TechniqueData is what a technique discovered for one injection point.
type TechniqueData struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
	Vector  string `json:"vector,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// InjectionRecord is a confirmed injection point, either discovered in this
// run or resumed from the session store.
type InjectionRecord struct {
	Place       Location                    `json:"place"`
	Parameter   string                      `json:"parameter"`
	Prefix      string                      `json:"prefix,omitempty"`
	Suffix      string                      `json:"suffix,omitempty"`
	DBMS        string                      `json:"dbms,omitempty"`
	DBMSVersion string                      `json:"dbms_version,omitempty"`
	OS          string                      `json:"os,omitempty"`
	Data        map[Technique]TechniqueData `json:"data"`
}

// Techniques returns the techniques with data, sorted by code.
func (r *InjectionRecord) Techniques() []Technique {
	out := make([]Technique, 0, len(r.Data))
	for t := range r.Data {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Restrict narrows Data to the allowed techniques. It reports whether any
// data is left. An empty allowed list keeps everything.
func (r *InjectionRecord) Restrict(allowed []Technique) bool {
	if len(allowed) == 0 {
		return true
	}
	keep := make(map[Technique]TechniqueData)
	for _, t := range allowed {
		if d, ok := r.Data[t]; ok {
			keep[t] = d
		}
	}
	if len(keep) == 0 {
		return false
	}
	r.Data = keep
	return true
}

// UnknownDBMSVersion is the version placeholder when a banner carries no version.
const UnknownDBMSVersion = "Unknown"

// Fingerprint is the identified back-end: DBMS, its possible versions and
// the operating system.
type Fingerprint struct {
	DBMS     string
	Versions []string
	OS       string
}

// SetDBMS records the DBMS unless a different one is already set. It
// reports whether the value was applied.
func (f *Fingerprint) SetDBMS(name string, versions []string) bool {
	if f.DBMS != "" && !strings.EqualFold(f.DBMS, name) {
		return false
	}
	f.DBMS = name
	if len(versions) > 0 {
		f.Versions = versions
	}
	return true
}

// ForceDBMS overrides the DBMS after explicit confirmation.
func (f *Fingerprint) ForceDBMS(name string, versions []string) {
	f.DBMS = name
	f.Versions = versions
}
