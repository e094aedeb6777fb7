package detector

import (
	"regexp"
	"sort"
	"strings"

	"github.com/0x6d61/sqltarget/internal/engine"
)

var (
	jsonStringPair = regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]+)"`)
	jsonNumberPair = regexp.MustCompile(`"([^"]+)"\s*:\s*(-?\d[\d.]*)\b`)

	// xmlElement matches <tag attrs>content</tag; the closing name is
	// compared with the opening one in xmlFields.
	xmlElement = regexp.MustCompile(`<([^>\s/!?]+)(\s[^<>]*)?>([^<]+)</([^>\s]+)`)

	multipartSection = regexp.MustCompile(`(?is)Content-Disposition.+?(\r?\n--)`)
	multipartName    = regexp.MustCompile(`(?i)\bname="([^"]*)"`)
)

// Field is one candidate value inside a structured body. Start and End are
// byte offsets of the value; marks are inserted at End.
type Field struct {
	Name  string
	Start int
	End   int
}

// Fields lists the candidate values of body for the given hint, ordered by
// position.
func Fields(body string, hint engine.BodyHint) []Field {
	var fields []Field
	switch hint {
	case engine.HintJSON:
		fields = jsonFields(body)
	case engine.HintXML, engine.HintSOAP:
		fields = xmlFields(body)
	case engine.HintMultipart:
		fields = multipartFields(body)
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].End < fields[j].End })
	return fields
}

func jsonFields(body string) []Field {
	var fields []Field
	for _, re := range []*regexp.Regexp{jsonStringPair, jsonNumberPair} {
		for _, m := range re.FindAllStringSubmatchIndex(body, -1) {
			fields = append(fields, Field{Name: body[m[2]:m[3]], Start: m[4], End: m[5]})
		}
	}
	return fields
}

func xmlFields(body string) []Field {
	var fields []Field
	for _, m := range xmlElement.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[2]:m[3]]
		if name != body[m[8]:m[9]] {
			continue
		}
		fields = append(fields, Field{Name: name, Start: m[6], End: m[7]})
	}
	return fields
}

func multipartFields(body string) []Field {
	var fields []Field
	for _, m := range multipartSection.FindAllStringSubmatchIndex(body, -1) {
		section := body[m[0]:m[2]]
		f := Field{Start: m[0], End: m[2]}
		if nm := multipartName.FindStringSubmatch(section); nm != nil {
			f.Name = nm[1]
		}
		fields = append(fields, f)
	}
	return fields
}

// InjectMarks returns body with mark appended to every candidate value of
// the given hint. When only is non-empty, JSON and XML values are marked
// only if their field name is listed; multipart sections are always marked.
// The insertion is purely additive: no delimiter is added, removed or moved.
func InjectMarks(body string, hint engine.BodyHint, mark string, only []string) string {
	fields := Fields(body, hint)
	if len(fields) == 0 {
		return body
	}

	b := &strings.Builder{}
	b.Grow(len(body) + len(fields)*len(mark))
	last := 0
	for _, f := range fields {
		if hint != engine.HintMultipart && len(only) > 0 && !contains(only, f.Name) {
			continue
		}
		if last > 0 && f.End <= last {
			continue
		}
		b.WriteString(body[last:f.End])
		b.WriteString(mark)
		last = f.End
	}
	b.WriteString(body[last:])
	return b.String()
}

// EscapeMarks replaces literal marks with engine.AsteriskMarker so that they
// are not treated as test positions.
func EscapeMarks(s, mark string) string {
	return strings.ReplaceAll(s, mark, engine.AsteriskMarker)
}

// StripMarks removes every mark from s.
func StripMarks(s, mark string) string {
	return strings.ReplaceAll(s, mark, "")
}

// MarkVariants splits s on mark and returns one string per mark, each with
// only that mark kept in place. A string with N marks yields N variants.
func MarkVariants(s, mark string) []string {
	parts := strings.Split(s, mark)
	if len(parts) < 2 {
		return nil
	}
	variants := make([]string, 0, len(parts)-1)
	for i := 0; i < len(parts)-1; i++ {
		b := &strings.Builder{}
		for j, p := range parts {
			b.WriteString(p)
			if i == j {
				b.WriteString(mark)
			}
		}
		variants = append(variants, b.String())
	}
	return variants
}
