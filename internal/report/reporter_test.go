package report

import (
	"testing"

	"github.com/0x6d61/sqltarget/internal/engine"
)

// newTestResult returns a resolved JSON body target with resumed knowledge.
func newTestResult() *Result {
	params := engine.NewParameterSet()
	q := engine.NewParamDict()
	q.Set("id", "1")
	params.Put(engine.LocationQuery, q)
	body := engine.NewParamDict()
	body.Set("JSON #1*", `{"name": "admin*", "age": 30}`)
	body.Set("JSON #2*", `{"name": "admin", "age": 30*}`)
	params.Put(engine.LocationCustomBody, body)

	return &Result{
		URL:      "http://example.com/api/user?id=1",
		Method:   "POST",
		Data:     `{"name": "admin", "age": 30}`,
		PostHint: engine.HintJSON,
		Params:   params,
		Fingerprint: engine.Fingerprint{
			DBMS:     "MySQL",
			Versions: []string{"5.5"},
			OS:       "Linux",
		},
		Injections: []*engine.InjectionRecord{{
			Place:     engine.LocationQuery,
			Parameter: "id",
			Data: map[engine.Technique]engine.TechniqueData{
				engine.TechniqueTime:    {Title: "MySQL >= 5.0.12 AND time-based blind", Payload: "id=1 AND SLEEP(5)"},
				engine.TechniqueBoolean: {Title: "AND boolean-based blind", Payload: "id=1 AND 1=1"},
			},
		}},
	}
}

// newEmptyResult returns a target that failed resolution.
func newEmptyResult() *Result {
	return &Result{
		URL:    "http://example.com/index.php",
		Method: "GET",
		Params: engine.NewParameterSet(),
		Err: &engine.GenericError{
			Kind: engine.NoParameters,
			Msg:  "you did not provide any GET, POST and Cookie parameter, neither an User-Agent, Referer or Host header value",
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		input      string
		wantFormat string
	}{
		{"text", "text"},
		{"TEXT", "text"},
		{"json", "json"},
		{"Json", "json"},
		{"yaml", "yaml"},
		{"yml", "yaml"},
	}
	for _, tt := range tests {
		r, err := New(tt.input)
		if err != nil {
			t.Errorf("New(%q) returned error: %v", tt.input, err)
			continue
		}
		if r.Format() != tt.wantFormat {
			t.Errorf("New(%q).Format() = %q, want %q", tt.input, r.Format(), tt.wantFormat)
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	r, err := New("xml")
	if err == nil {
		t.Fatal("New(\"xml\") should return error for unsupported format")
	}
	if r != nil {
		t.Errorf("New(\"xml\") returned non-nil reporter: %v", r)
	}
}

func TestNewResult(t *testing.T) {
	cfg := engine.DefaultRunConfig()
	cfg.URL = "http://example.com/?id=1"
	d := engine.NewParamDict()
	d.Set("id", "1")
	cfg.Params.Put(engine.LocationQuery, d)

	kb := engine.NewKnowledgeBase(cfg)
	kb.Fingerprint.OS = "Windows"

	r := NewResult(cfg, kb, nil)
	if r.URL != cfg.URL || r.Method != "GET" {
		t.Errorf("NewResult target = %q %q", r.URL, r.Method)
	}
	if r.Params.Count() != 1 {
		t.Errorf("Params.Count() = %d, want 1", r.Params.Count())
	}
	if r.Fingerprint.OS != "Windows" {
		t.Errorf("Fingerprint.OS = %q, want %q", r.Fingerprint.OS, "Windows")
	}

	if r := NewResult(cfg, nil, nil); r.Fingerprint.DBMS != "" {
		t.Errorf("NewResult without knowledge base has fingerprint %+v", r.Fingerprint)
	}
}

func TestNewDocument(t *testing.T) {
	doc := newDocument(newTestResult())

	if doc.Target.PostHint != "JSON" {
		t.Errorf("PostHint = %q, want %q", doc.Target.PostHint, "JSON")
	}
	if len(doc.Places) != 2 {
		t.Fatalf("len(Places) = %d, want 2", len(doc.Places))
	}
	if doc.Places[0].Place != "GET" || doc.Places[1].Place != "(custom) POST" {
		t.Errorf("places = %q, %q", doc.Places[0].Place, doc.Places[1].Place)
	}
	if got := doc.Places[1].Parameters[1].Name; got != "JSON #2*" {
		t.Errorf("second body parameter = %q, want %q", got, "JSON #2*")
	}
	if doc.Summary != (docSummary{Places: 2, Parameters: 3, Injections: 1}) {
		t.Errorf("Summary = %+v", doc.Summary)
	}
	if got := doc.Injections[0].Techniques; len(got) != 2 || got[0] != "B" || got[1] != "T" {
		t.Errorf("Techniques = %v, want [B T]", got)
	}
	if doc.Error != "" {
		t.Errorf("Error = %q, want empty", doc.Error)
	}
}

func TestNewDocument_Empty(t *testing.T) {
	doc := newDocument(newEmptyResult())

	if doc.Places == nil || doc.Injections == nil {
		t.Error("Places and Injections should be empty, not nil")
	}
	if doc.Fingerprint != nil {
		t.Errorf("Fingerprint = %+v, want nil", doc.Fingerprint)
	}
	if doc.Error == "" {
		t.Error("Error should carry the resolution error")
	}
}
