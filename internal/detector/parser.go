// Package detector classifies request bodies, places custom injection marks
// in them and extracts name/value parameters from request locations.
package detector

import (
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/0x6d61/sqltarget/internal/engine"
)

const (
	defaultParamDel  = "&"
	defaultCookieDel = ";"

	ampMarker       = "__AMP__"
	semicolonMarker = "__SEMICOLON__"

	// dummyInjectionChars are characters operators tend to leave in values
	// from manual testing.
	dummyInjectionChars = ";()'"
)

var (
	// htmlEntityPattern matches entities such as &amp; that must not be
	// mistaken for parameter delimiters.
	htmlEntityPattern = regexp.MustCompile(`&(\w{1,4});`)
	entityRestore     = regexp.MustCompile(ampMarker + `(.+?)` + semicolonMarker)
)

// ExtractOptions controls ParamToDict.
type ExtractOptions struct {
	// TestParameters restricts extraction to these names when non-empty.
	TestParameters []string
	// ParamDel overrides the GET/POST delimiter ("&").
	ParamDel string
	// CookieDel overrides the cookie delimiter (";").
	CookieDel string
	// Quiet suppresses the tainted value warning (multi-target mode).
	Quiet bool
	Logger *slog.Logger
}

// ParamToDict splits the raw content of a location into an ordered
// name/value mapping. Query strings and bodies are "&"-delimited, cookies
// ";"-delimited. Header locations yield a single pair named after the
// header. Content that cannot be split yields an empty dict.
func ParamToDict(place engine.Location, raw string, opts ExtractOptions) *engine.ParamDict {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dict := engine.NewParamDict()

	switch place {
	case engine.LocationUserAgent, engine.LocationReferer, engine.LocationHost:
		if raw != "" {
			dict.Set(place.String(), raw)
		}
		return dict
	}

	if raw == "" {
		return dict
	}

	raw = strings.ReplaceAll(raw, ", ", ",")
	raw = htmlEntityPattern.ReplaceAllString(raw, ampMarker+"${1}"+semicolonMarker)

	delim := opts.ParamDel
	if delim == "" {
		delim = defaultParamDel
	}
	if place == engine.LocationCookie {
		delim = opts.CookieDel
		if delim == "" {
			delim = defaultCookieDel
		}
	}

	cookieRequested := place == engine.LocationCookie && containsFold(opts.TestParameters, engine.LocationCookie.String())

	for _, element := range strings.Split(raw, delim) {
		element = entityRestore.ReplaceAllString(element, "&${1};")
		parts := strings.Split(element, "=")
		if len(parts) < 2 {
			continue
		}
		name := strings.ReplaceAll(parts[0], " ", "")
		if name == "" {
			continue
		}
		if opts.ParamDel == "\n" {
			parts[len(parts)-1] = strings.TrimRight(parts[len(parts)-1], " \t\r")
		}

		if len(opts.TestParameters) > 0 && !contains(opts.TestParameters, name) && !cookieRequested {
			continue
		}
		value := strings.Join(parts[1:], "=")
		dict.Set(name, value)

		if !opts.Quiet {
			decoded := URLDecode(value, true, false)
			if strings.Trim(decoded, dummyInjectionChars) != decoded {
				logger.Warn("it appears you have provided tainted parameter values with characters used for manual testing",
					"place", place.String(), "parameter", name, "value", value)
			}
		}
	}

	if len(opts.TestParameters) > 0 && dict.Len() == 0 {
		logger.Warn("provided parameters are not inside the location",
			"parameters", strings.Join(opts.TestParameters, ", "), "place", place.String())
	}

	return dict
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Intersects reports whether a and b share an element, ignoring case.
func Intersects(a, b []string) bool {
	for _, v := range a {
		if containsFold(b, v) {
			return true
		}
	}
	return false
}
