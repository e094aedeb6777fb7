package detector

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/0x6d61/sqltarget/internal/engine"
)

var (
	jsonRecognition = regexp.MustCompile(`(?s)\A(\s*\[)*\s*\{.*"[^"]+"\s*:\s*("[^"]+"|\d+).*\}\s*(\]\s*)*\z`)

	// xmlRootTag matches the optional declaration and the opening root tag.
	// The closing tag is checked by hand since RE2 has no backreferences.
	xmlRootTag = regexp.MustCompile(`(?s)\A(<\?xml[^>]+>)?\s*<([^> ]+)( [^>]+)?>`)

	multipartRecognition = regexp.MustCompile(`(?i)Content-Disposition:[^;]+;\s*name=`)
)

// DetectBodyHint classifies a POST body. JSON is tried first, then
// SOAP/XML, then multipart; the first match wins.
func DetectBodyHint(body string) engine.BodyHint {
	switch {
	case jsonRecognition.MatchString(body):
		return engine.HintJSON
	case isXMLLike(body):
		if strings.Contains(strings.ToLower(body), "soap") {
			return engine.HintSOAP
		}
		return engine.HintXML
	case multipartRecognition.MatchString(body):
		return engine.HintMultipart
	}
	return engine.HintNone
}

// isXMLLike reports whether body is a root element with content that is
// closed by a matching tag at the end of the body.
func isXMLLike(body string) bool {
	m := xmlRootTag.FindStringSubmatchIndex(body)
	if m == nil {
		return false
	}
	closing := "</" + body[m[4]:m[5]]
	rest := body[m[1]:]
	idx := strings.LastIndex(rest, closing)
	if idx < 1 {
		return false
	}
	tail := strings.TrimRightFunc(rest[idx+len(closing):], unicode.IsSpace)
	return strings.HasSuffix(tail, ">")
}
