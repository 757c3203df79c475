package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Substitution is one OCR repair applied to listing text before it is
// split into lines. Literal entries replace every occurrence of From;
// Regex entries are Go regular expressions and To may use ${n} groups.
type Substitution struct {
	From  string `yaml:"from" json:"from"`
	To    string `yaml:"to" json:"to"`
	Regex bool   `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// DefaultSubstitutions are misreadings seen on the source calendars'
// font and layout. Order is significant.
var DefaultSubstitutions = []Substitution{
	{From: "§", To: "5"},
	{From: "Retum", To: "Return"},
	{From: "Extenced", To: "Extended"},
	{From: `(?i)atc[tl]?anuary`, To: "21-January", Regex: true},
	// "June Z-9" -> "June 7-9"
	{From: `(?i)(` + monthAltNC + `\s+)[Zz](-\d)`, To: "${1}7${2}", Regex: true},
	// "April z " -> "April 2 "
	{From: `(?i)(` + monthAltNC + `\s+)[Zz](\s)`, To: "${1}2${2}", Regex: true},
	{From: "Last Day c of", To: "Last Day of"},
	// "December 21-January Winter Break" lost its closing day.
	{From: `(?i)(December\s+\d{1,2}\s*[-–]\s*January)\s+(Winter|Break)`, To: "${1} 1 ${2}", Regex: true},
}

type rewrite func(string) string

// Rewriter applies a compiled substitution table in order.
type Rewriter struct {
	steps []rewrite
}

// CompileSubstitutions validates and compiles subs.
func CompileSubstitutions(subs []Substitution) (*Rewriter, error) {
	rw := &Rewriter{steps: make([]rewrite, 0, len(subs))}
	for i, s := range subs {
		if s.From == "" {
			return nil, fmt.Errorf("extract: substitution %d: empty pattern", i)
		}
		if !s.Regex {
			from, to := s.From, s.To
			rw.steps = append(rw.steps, func(text string) string {
				return strings.ReplaceAll(text, from, to)
			})
			continue
		}
		re, err := regexp.Compile(s.From)
		if err != nil {
			return nil, fmt.Errorf("extract: substitution %d: %w", i, err)
		}
		to := s.To
		rw.steps = append(rw.steps, func(text string) string {
			return re.ReplaceAllString(text, to)
		})
	}
	return rw, nil
}

// Apply runs every substitution over text.
func (rw *Rewriter) Apply(text string) string {
	if rw == nil {
		return text
	}
	for _, step := range rw.steps {
		text = step(text)
	}
	return text
}

var defaultRewriter = mustCompile(DefaultSubstitutions)

func mustCompile(subs []Substitution) *Rewriter {
	rw, err := CompileSubstitutions(subs)
	if err != nil {
		panic(err)
	}
	return rw
}
