// Package relevance decides whether a candidate listing is actually for the
// target model and year.
package relevance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Target names the vehicle being tracked. Years in [MinYear, MaxYear] other
// than Year count as competing model years.
type Target struct {
	Model   string `yaml:"model" mapstructure:"model"`
	Year    int    `yaml:"year" mapstructure:"year"`
	MinYear int    `yaml:"min_year" mapstructure:"min_year"`
	MaxYear int    `yaml:"max_year" mapstructure:"max_year"`
}

// String renders the target as "1969 Camaro".
func (t Target) String() string {
	model := strings.TrimSpace(t.Model)
	if model != "" {
		model = strings.ToUpper(model[:1]) + model[1:]
	}
	return fmt.Sprintf("%d %s", t.Year, model)
}

// Filter is a compiled Target.
type Filter struct {
	target    Target
	model     string
	fullYear  *regexp.Regexp
	shortYear *regexp.Regexp
}

var yearToken = regexp.MustCompile(`\b\d{4}\b`)

// New compiles a Filter for target.
func New(target Target) (*Filter, error) {
	if strings.TrimSpace(target.Model) == "" {
		return nil, eris.New("relevance: model is required")
	}
	if target.Year < 1000 || target.Year > 9999 {
		return nil, eris.Errorf("relevance: year %d is not a 4-digit year", target.Year)
	}
	if target.MinYear > target.MaxYear {
		return nil, eris.Errorf("relevance: min_year %d exceeds max_year %d", target.MinYear, target.MaxYear)
	}
	full := strconv.Itoa(target.Year)
	return &Filter{
		target:    target,
		model:     strings.ToLower(strings.TrimSpace(target.Model)),
		fullYear:  regexp.MustCompile(`\b` + full + `\b`),
		shortYear: regexp.MustCompile(`\b` + full[2:] + `\b`),
	}, nil
}

// Target returns the filter's target.
func (f *Filter) Target() Target { return f.target }

// Matches reports whether text names the target model and year. Text that
// mentions another year of the configured range without the full target
// year is rejected even when a 2-digit shorthand matches.
func (f *Filter) Matches(text string) bool {
	t := strings.ToLower(text)
	if !strings.Contains(t, f.model) {
		return false
	}
	hasFull := f.fullYear.MatchString(t)
	if !hasFull && f.mentionsOtherYear(t) {
		return false
	}
	return hasFull || f.shortYear.MatchString(t)
}

func (f *Filter) mentionsOtherYear(t string) bool {
	for _, tok := range yearToken.FindAllString(t, -1) {
		y, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if y != f.target.Year && y >= f.target.MinYear && y <= f.target.MaxYear {
			return true
		}
	}
	return false
}
