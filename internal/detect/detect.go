// Package detect implements the patient-facing website checks. Each
// detector is a named, pure predicate over extracted page text with no
// shared state, so checks can be added without touching scoring logic.
package detect

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/audit-cli/internal/model"
)

// Detector is a single named check. Eval is pure: the same text always
// yields the same result, regardless of evaluation order.
type Detector struct {
	Name model.CheckName
	Eval func(text string) bool
}

var (
	// US phone: optional country prefix, area code, exchange, subscriber.
	phoneRe = regexp.MustCompile(`(\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)

	// Street number + name + suffix, e.g. "123 main street".
	streetRe = regexp.MustCompile(`\d+\s+[a-z0-9.\s]+\b(street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|court|ct|parkway|pkwy|place|pl)\b`)
	suiteRe  = regexp.MustCompile(`\b(suite|ste|unit)\s*#?\s*[a-z0-9]+\b`)
	zipRe    = regexp.MustCompile(`\b\d{5}(-\d{4})?\b`)

	weekdayRe     = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	weekdayAbbrRe = regexp.MustCompile(`\b(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)\s*[-:]`)
	hoursPhraseRe = regexp.MustCompile(`\b(office|business|opening)\s+hours\b|\bhours\s+of\s+operation\b`)
	timeRangeRe   = regexp.MustCompile(`\d{1,2}(:\d{2})?\s*(am|pm)\s*(-|to)\s*\d{1,2}(:\d{2})?\s*(am|pm)`)
)

var keywordSets = map[model.CheckName][]string{
	model.CheckAppointment: {
		"appointment", "book online", "book now", "schedule a visit",
		"schedule online", "request a visit",
	},
	model.CheckInsurance: {
		"insurance", "we accept", "medicare", "medicaid", "payment plans",
	},
	model.CheckNewPatient: {
		"new patient", "patient forms", "first visit", "what to expect",
	},
	model.CheckPatientPortal: {
		"patient portal", "patient login", "mychart", "pay your bill online",
	},
	model.CheckTestimonials: {
		"testimonial", "reviews", "what our patients say", "patient stories",
	},
	model.CheckServices: {
		"our services", "services we offer", "treatments", "procedures",
	},
}

var folder = cases.Fold()

// Normalize case-folds text for matching. All detectors normalize their own
// input, so they stay individually callable with raw page text.
func Normalize(text string) string {
	return folder.String(text)
}

func keywordDetector(name model.CheckName) Detector {
	keywords := keywordSets[name]
	return Detector{
		Name: name,
		Eval: func(text string) bool {
			lower := Normalize(text)
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					return true
				}
			}
			return false
		},
	}
}

func regexDetector(name model.CheckName, patterns ...*regexp.Regexp) Detector {
	return Detector{
		Name: name,
		Eval: func(text string) bool {
			lower := Normalize(text)
			for _, re := range patterns {
				if re.MatchString(lower) {
					return true
				}
			}
			return false
		},
	}
}

// Registry returns the full detector set in a stable order.
func Registry() []Detector {
	return []Detector{
		keywordDetector(model.CheckAppointment),
		regexDetector(model.CheckPhone, phoneRe),
		regexDetector(model.CheckAddress, streetRe, suiteRe, zipRe),
		regexDetector(model.CheckHours, weekdayRe, weekdayAbbrRe, hoursPhraseRe, timeRangeRe),
		keywordDetector(model.CheckInsurance),
		keywordDetector(model.CheckNewPatient),
		keywordDetector(model.CheckPatientPortal),
		keywordDetector(model.CheckTestimonials),
		keywordDetector(model.CheckServices),
	}
}

// Run evaluates every registered detector against text and returns the
// complete outcome map.
func Run(text string) model.DetectorOutcome {
	outcome := make(model.DetectorOutcome)
	for _, d := range Registry() {
		outcome[d.Name] = d.Eval(text)
	}
	return outcome
}
