// Package prompt asks the operator yes/no/quit questions. Resolution and
// resume logic depend only on the Provider interface, so tests can script
// the answers.
package prompt

import (
	"fmt"
	"strings"

	"github.com/0x6d61/sqltarget/internal/engine"
)

// Answer is the operator's reply.
type Answer int

const (
	Yes Answer = iota + 1
	No
	Quit
)

// String returns the answer letter.
func (a Answer) String() string {
	switch a {
	case Yes:
		return "Y"
	case No:
		return "N"
	case Quit:
		return "Q"
	default:
		return "?"
	}
}

// Question is a single prompt.
type Question struct {
	Message   string
	Default   Answer
	AllowQuit bool
}

// String renders the question with its choice suffix, e.g.
// "process it? [Y/n/q] ".
func (q Question) String() string {
	var choices string
	switch {
	case q.Default == Yes && q.AllowQuit:
		choices = "[Y/n/q]"
	case q.Default == Yes:
		choices = "[Y/n]"
	case q.AllowQuit:
		choices = "[y/N/q]"
	default:
		choices = "[y/N]"
	}
	return fmt.Sprintf("%s %s ", strings.TrimSpace(q.Message), choices)
}

// ParseAnswer interprets a reply by its first letter, ignoring case. Empty
// or unrecognized input yields the question default; "q" is only honoured
// when the question allows it.
func ParseAnswer(input string, q Question) Answer {
	input = strings.TrimSpace(input)
	if input == "" {
		return q.Default
	}
	switch input[0] {
	case 'y', 'Y':
		return Yes
	case 'n', 'N':
		return No
	case 'q', 'Q':
		if q.AllowQuit {
			return Quit
		}
	}
	return q.Default
}

// Provider answers questions.
type Provider interface {
	Ask(q Question) (Answer, error)
}

// Func adapts a function to Provider.
type Func func(q Question) (Answer, error)

// Ask calls f.
func (f Func) Ask(q Question) (Answer, error) { return f(q) }

// Confirm asks q and reports whether the answer was yes. A quit answer is
// returned as engine.ErrUserQuit.
func Confirm(p Provider, q Question) (bool, error) {
	a, err := p.Ask(q)
	if err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}
	switch a {
	case Quit:
		return false, engine.ErrUserQuit
	case Yes:
		return true, nil
	default:
		return false, nil
	}
}

// Scripted replays a fixed list of answers and records the questions it
// was asked. Once the list is exhausted each question gets its default.
type Scripted struct {
	Answers []Answer
	Asked   []Question
}

// NewScripted returns a provider replaying answers in order.
func NewScripted(answers ...Answer) *Scripted {
	return &Scripted{Answers: answers}
}

// Ask implements Provider.
func (s *Scripted) Ask(q Question) (Answer, error) {
	s.Asked = append(s.Asked, q)
	if len(s.Answers) == 0 {
		return q.Default, nil
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}

// Rules answers questions whose message contains a key, ignoring case, and
// defers everything else to Next. It backs the --answers option.
type Rules struct {
	Rules []Rule
	Next  Provider
}

// Rule maps a message fragment to a fixed answer.
type Rule struct {
	Contains string
	Answer   Answer
}

// ParseRules parses "fragment=Y,other=N" into rules.
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("prompt: invalid answer rule %q", item)
		}
		a := ParseAnswer(value, Question{AllowQuit: true})
		if a == 0 {
			return nil, fmt.Errorf("prompt: invalid answer %q in rule %q", value, item)
		}
		rules = append(rules, Rule{Contains: strings.ToLower(strings.TrimSpace(key)), Answer: a})
	}
	return rules, nil
}

// Ask implements Provider.
func (r *Rules) Ask(q Question) (Answer, error) {
	msg := strings.ToLower(q.Message)
	for _, rule := range r.Rules {
		if strings.Contains(msg, rule.Contains) {
			if rule.Answer == Quit && !q.AllowQuit {
				return q.Default, nil
			}
			return rule.Answer, nil
		}
	}
	if r.Next == nil {
		return q.Default, nil
	}
	return r.Next.Ask(q)
}
