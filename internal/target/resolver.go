// Package target prepares a single scan target: it resolves the testable
// injection points of the request, sets up the per-target output directory
// and session store, and merges what a previous run learned about it.
package target

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/0x6d61/sqltarget/internal/detector"
	"github.com/0x6d61/sqltarget/internal/engine"
	"github.com/0x6d61/sqltarget/internal/prompt"
)

const directConnection = "direct connection"

var (
	// uriInjectable matches URLs whose last path segment looks like a value,
	// e.g. http://site/article/12.
	uriInjectable = regexp.MustCompile(`(?i)//[^/]*/([^\.*?]+)\z`)

	// problematicHeaderMarks are header fragments where the mark character
	// appears naturally (Accept: */*, quality factors).
	problematicHeaderMarks = regexp.MustCompile(`(\bq=[^;']+)|(\*/\*)`)
)

// Header name aliases accepted in the -p restriction.
var (
	userAgentAliases = []string{"ua", "useragent", "user-agent"}
	refererAliases   = []string{"ref", "referer", "referrer"}
	hostAliases      = []string{"host"}
)

// markOptions names the command-line options a custom mark may come from.
var markOptions = map[engine.Location]string{
	engine.LocationURI:          "-u",
	engine.LocationCustomBody:   "--data",
	engine.LocationCustomHeader: "--headers/--user-agent/--referer/--cookie",
}

// Resolver determines the testable parameters of a target request.
type Resolver struct {
	Prompt prompt.Provider
	Logger *slog.Logger
}

// NewResolver returns a Resolver asking p for confirmations. A nil logger
// discards output.
func NewResolver(p prompt.Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{Prompt: p, Logger: logger}
}

// SetRequestParams fills cfg.RawPlaces and cfg.Params from the raw request
// held in cfg. Manually marked positions replace automatically extracted
// parameters of the same location, and the mark character is removed from
// the request options once the operator's decision about marks is known.
//
// It returns engine.ErrUserQuit when the operator quits at a prompt, a
// *engine.SyntaxError for a POST without data and a *engine.GenericError
// when nothing can be tested.
func (r *Resolver) SetRequestParams(cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	if cfg.RawPlaces == nil || cfg.Params == nil {
		cfg.ResetParams()
	}

	if cfg.Direct != "" {
		cfg.RawPlaces[engine.LocationDirect] = directConnection
		return nil
	}

	syncHeaders(cfg)
	opts := r.extractOptions(cfg)
	testable := false

	// GET
	if query := rawQuery(cfg.URL); query != "" {
		cfg.RawPlaces[engine.LocationQuery] = query
		if dict := detector.ParamToDict(engine.LocationQuery, query, opts); dict.Len() > 0 {
			cfg.Params.Put(engine.LocationQuery, dict)
			testable = true
		}
	}

	// POST
	if strings.EqualFold(cfg.Method, "POST") && cfg.Data == "" {
		return &engine.SyntaxError{Msg: "HTTP POST method depends on HTTP data value to be posted"}
	}

	if cfg.Data != "" {
		if cfg.Method == "" || strings.EqualFold(cfg.Method, "GET") {
			cfg.Method = "POST"
		}

		if err := r.markBody(cfg, kb); err != nil {
			return err
		}

		if kb.PostHint == engine.HintNone {
			if !strings.Contains(cfg.Data, engine.MarkChar) {
				cfg.RawPlaces[engine.LocationBody] = cfg.Data
				if dict := detector.ParamToDict(engine.LocationBody, cfg.Data, opts); dict.Len() > 0 {
					cfg.Params.Put(engine.LocationBody, dict)
					testable = true
				}
			}
		} else if !strings.Contains(cfg.Data, engine.MarkChar) {
			cfg.RawPlaces[engine.LocationBody] = cfg.Data
		}
	}

	if kb.PostHint != engine.HintNone && strings.Contains(cfg.Data, engine.MarkChar) {
		kb.ProcessUserMarks = engine.DecisionYes
	}

	if err := r.offerURIInjection(cfg, kb); err != nil {
		return err
	}

	found, err := r.resolveCustomMarks(cfg, kb, opts)
	if err != nil {
		return err
	}
	testable = testable || found

	if kb.ProcessUserMarks != engine.DecisionUnset {
		cfg.URL = detector.StripMarks(cfg.URL, engine.MarkChar)
		cfg.Data = detector.StripMarks(cfg.Data, engine.MarkChar)
		cfg.Agent = detector.StripMarks(cfg.Agent, engine.MarkChar)
		cfg.Referer = detector.StripMarks(cfg.Referer, engine.MarkChar)
		cfg.Cookie = detector.StripMarks(cfg.Cookie, engine.MarkChar)
	}

	// Cookie
	if cfg.Cookie != "" {
		cfg.RawPlaces[engine.LocationCookie] = cfg.Cookie
		if dict := detector.ParamToDict(engine.LocationCookie, cfg.Cookie, opts); dict.Len() > 0 {
			cfg.Params.Put(engine.LocationCookie, dict)
			testable = true
		}
	}

	// Headers
	for _, h := range cfg.Headers {
		var (
			place   engine.Location
			aliases []string
		)
		switch classifyHeader(h.Name) {
		case engine.HeaderUserAgent:
			place, aliases = engine.LocationUserAgent, userAgentAliases
		case engine.HeaderReferer:
			place, aliases = engine.LocationReferer, refererAliases
		case engine.HeaderHost:
			place, aliases = engine.LocationHost, hostAliases
		default:
			continue
		}

		cfg.RawPlaces[place] = detector.URLDecode(h.Value, false, true)
		if len(cfg.TestParameters) == 0 || detector.Intersects(cfg.TestParameters, aliases) {
			if dict := detector.ParamToDict(place, h.Value, opts); dict.Len() > 0 {
				cfg.Params.Put(place, dict)
				testable = true
			}
		}
	}

	if len(cfg.RawPlaces) == 0 {
		return &engine.GenericError{
			Kind: engine.NoParameters,
			Msg: "you did not provide any GET, POST and Cookie parameter, " +
				"neither an User-Agent, Referer or Host header value",
		}
	}
	if !testable {
		return &engine.GenericError{
			Kind: engine.NotTestable,
			Msg:  "all testable parameters you provided are not present within the given request data",
		}
	}

	r.Logger.Debug("resolved request parameters", "url", cfg.URL, "method", cfg.Method, "parameters", cfg.Params.Count())
	return nil
}

// markBody offers to mark every value of a structured body.
func (r *Resolver) markBody(cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	hint := detector.DetectBodyHint(cfg.Data)
	if hint == engine.HintNone {
		return nil
	}

	label := hint.String()
	switch hint {
	case engine.HintXML, engine.HintSOAP:
		label = "SOAP/XML"
	case engine.HintMultipart:
		label = "Multipart"
	}

	ok, err := prompt.Confirm(r.Prompt, prompt.Question{
		Message:   fmt.Sprintf("%s like data found in %s data. Do you want to process it?", label, cfg.Method),
		Default:   prompt.Yes,
		AllowQuit: true,
	})
	if err != nil || !ok {
		return err
	}

	data := detector.EscapeMarks(cfg.Data, engine.MarkChar)
	cfg.Data = detector.InjectMarks(data, hint, engine.MarkChar, cfg.TestParameters)
	kb.PostHint = hint
	return nil
}

// offerURIInjection proposes marking the end of a bare URL when the request
// has no GET or POST parameters.
func (r *Resolver) offerURIInjection(cfg *engine.RunConfig, kb *engine.KnowledgeBase) error {
	if !uriInjectable.MatchString(cfg.URL) || kb.PostHint != engine.HintNone {
		return nil
	}
	if _, ok := cfg.RawPlaces[engine.LocationQuery]; ok {
		return nil
	}
	if _, ok := cfg.RawPlaces[engine.LocationBody]; ok {
		return nil
	}

	r.Logger.Warn("you've provided target URL without any GET parameters " +
		"(e.g. www.site.com/article.php?id=1) and without providing any POST parameters through --data option")

	ok, err := prompt.Confirm(r.Prompt, prompt.Question{
		Message:   "do you want to try URI injections in the target URL itself?",
		Default:   prompt.Yes,
		AllowQuit: true,
	})
	if err != nil || !ok {
		return err
	}

	cfg.URL += engine.MarkChar
	kb.ProcessUserMarks = engine.DecisionYes
	return nil
}

// resolveCustomMarks turns operator marks in the URL, the body and the
// headers into positional parameters. It reports whether any testable
// parameter was added.
func (r *Resolver) resolveCustomMarks(cfg *engine.RunConfig, kb *engine.KnowledgeBase, opts detector.ExtractOptions) (bool, error) {
	testable := false

	for _, place := range []engine.Location{engine.LocationURI, engine.LocationCustomBody, engine.LocationCustomHeader} {
		var value string
		switch place {
		case engine.LocationURI:
			value = cfg.URL
		case engine.LocationCustomBody:
			value = cfg.Data
		case engine.LocationCustomHeader:
			value = markableHeaderText(cfg.Headers)
		}
		if !strings.Contains(value, engine.MarkChar) {
			continue
		}

		if kb.ProcessUserMarks == engine.DecisionUnset {
			ok, err := prompt.Confirm(r.Prompt, prompt.Question{
				Message: fmt.Sprintf("custom injection marking character ('%s') found in option '%s'. "+
					"Do you want to process it?", engine.MarkChar, markOptions[place]),
				Default:   prompt.Yes,
				AllowQuit: true,
			})
			if err != nil {
				return false, err
			}
			kb.ProcessUserMarks = engine.DecisionNo
			if ok {
				kb.ProcessUserMarks = engine.DecisionYes
			}
		}

		if kb.ProcessUserMarks == engine.DecisionNo {
			if r.dropMarks(cfg, place, opts) {
				testable = true
			}
			continue
		}

		dict := engine.NewParamDict()
		switch place {
		case engine.LocationCustomHeader:
			cfg.RawPlaces[place] = headerText(cfg.Headers)
			for i, h := range cfg.Headers {
				if !strings.Contains(problematicHeaderMarks.ReplaceAllString(h.Value, ""), engine.MarkChar) {
					continue
				}
				for n, variant := range detector.MarkVariants(h.Value, engine.MarkChar) {
					dict.Set(fmt.Sprintf("%s #%d%s", h.Name, n+1, engine.MarkChar), h.Name+","+variant)
				}
				cfg.Headers[i].Value = stripHeaderMarks(h.Value)
			}
		default:
			cfg.RawPlaces[place] = value
			prefix := ""
			if place == engine.LocationCustomBody && kb.PostHint != engine.HintNone {
				prefix = kb.PostHint.String() + " "
			}
			for n, variant := range detector.MarkVariants(value, engine.MarkChar) {
				dict.Set(fmt.Sprintf("%s#%d%s", prefix, n+1, engine.MarkChar), variant)
			}
			if place == engine.LocationURI {
				cfg.Params.Delete(engine.LocationQuery)
			} else {
				cfg.Params.Delete(engine.LocationBody)
			}
		}

		cfg.Params.Put(place, dict)
		testable = true
	}

	return testable, nil
}

// dropMarks removes the marks of a declined location and extracts its
// parameters automatically instead. It reports whether any were found.
func (r *Resolver) dropMarks(cfg *engine.RunConfig, place engine.Location, opts detector.ExtractOptions) bool {
	switch place {
	case engine.LocationURI:
		cfg.URL = detector.StripMarks(cfg.URL, engine.MarkChar)
		query := rawQuery(cfg.URL)
		if query == "" {
			return false
		}
		cfg.RawPlaces[engine.LocationQuery] = query
		dict := detector.ParamToDict(engine.LocationQuery, query, opts)
		if dict.Len() == 0 {
			return false
		}
		cfg.URL = strings.SplitN(cfg.URL, "?", 2)[0]
		cfg.Params.Put(engine.LocationQuery, dict)
		return true

	case engine.LocationCustomBody:
		cfg.Data = detector.StripMarks(cfg.Data, engine.MarkChar)
		cfg.RawPlaces[engine.LocationBody] = cfg.Data
		dict := detector.ParamToDict(engine.LocationBody, cfg.Data, opts)
		if dict.Len() == 0 {
			return false
		}
		cfg.Params.Put(engine.LocationBody, dict)
		return true

	case engine.LocationCustomHeader:
		for i, h := range cfg.Headers {
			cfg.Headers[i].Value = stripHeaderMarks(h.Value)
		}
	}
	return false
}

// stripHeaderMarks removes marks from a header value except inside the
// fragments where the mark character occurs naturally.
func stripHeaderMarks(value string) string {
	var b strings.Builder
	last := 0
	for _, loc := range problematicHeaderMarks.FindAllStringIndex(value, -1) {
		b.WriteString(detector.StripMarks(value[last:loc[0]], engine.MarkChar))
		b.WriteString(value[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(detector.StripMarks(value[last:], engine.MarkChar))
	return b.String()
}

func (r *Resolver) extractOptions(cfg *engine.RunConfig) detector.ExtractOptions {
	return detector.ExtractOptions{
		TestParameters: cfg.TestParameters,
		ParamDel:       cfg.ParamDel,
		CookieDel:      cfg.CookieDel,
		Quiet:          cfg.MultipleTargets,
		Logger:         r.Logger,
	}
}

// syncHeaders makes the dedicated User-Agent, Referer and Cookie options and
// the header list agree. An option wins over a header given with -H.
func syncHeaders(cfg *engine.RunConfig) {
	sync := func(name string, field *string) {
		if *field != "" {
			cfg.SetHeader(name, *field)
			return
		}
		for _, h := range cfg.Headers {
			if strings.EqualFold(h.Name, name) {
				*field = h.Value
				return
			}
		}
	}
	sync("User-Agent", &cfg.Agent)
	sync("Referer", &cfg.Referer)
	sync("Cookie", &cfg.Cookie)
}

// classifyHeader maps a header name to the kind of testable location it is.
func classifyHeader(name string) engine.HeaderKind {
	switch {
	case strings.EqualFold(name, "User-Agent"):
		return engine.HeaderUserAgent
	case strings.EqualFold(name, "Referer"):
		return engine.HeaderReferer
	case strings.EqualFold(name, "Host"):
		return engine.HeaderHost
	default:
		return engine.HeaderOther
	}
}

// headerText renders headers one per line, as they go on the wire.
func headerText(headers []engine.Header) string {
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\n")
	}
	return b.String()
}

// markableHeaderText is headerText without the fragments in which the mark
// character occurs naturally.
func markableHeaderText(headers []engine.Header) string {
	clean := make([]engine.Header, len(headers))
	for i, h := range headers {
		clean[i] = engine.Header{Name: h.Name, Value: problematicHeaderMarks.ReplaceAllString(h.Value, "")}
	}
	return headerText(clean)
}

// rawQuery returns the query string of rawURL without its fragment.
func rawQuery(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.RawQuery
	}
	_, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return ""
	}
	query, _, _ = strings.Cut(query, "#")
	return query
}
