package dates

import (
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// DateFormatSpec is a date pattern in the letter notation used by dataframe
// libraries, e.g. "MM/dd/yyyy" or "MM/yyyy".
type DateFormatSpec string

// Layout is a compiled DateFormatSpec.
type Layout struct {
	Spec       DateFormatSpec
	GoForm     string
	HasDay     bool
	HasTime    bool
	HasWeekday bool
}

// patternTokens maps pattern runs to Go reference-time fragments. Longer
// runs of the same letter are listed first.
var patternTokens = map[rune][]struct {
	count int
	goTok string
}{
	'y': {{3, "2006"}, {2, "06"}, {1, "2006"}},
	'M': {{4, "January"}, {3, "Jan"}, {2, "01"}, {1, "1"}},
	'd': {{2, "02"}, {1, "2"}},
	'H': {{2, "15"}, {1, "15"}},
	'h': {{2, "03"}, {1, "3"}},
	'm': {{2, "04"}, {1, "4"}},
	's': {{2, "05"}, {1, "5"}},
	'S': {{9, "000000000"}, {6, "000000"}, {3, "000"}, {2, "00"}, {1, "0"}},
	'a': {{1, "PM"}},
	'E': {{4, "Monday"}, {1, "Mon"}},
	'Z': {{1, "-0700"}},
	'X': {{3, "Z07:00"}, {1, "Z0700"}},
}

var layoutCache sync.Map

// segment is one piece of a compiled layout: either literal text or a Go
// reference token.
type segment struct {
	text    string
	literal bool
}

// Compile translates the spec into a Go time layout. Letters outside the
// supported set must be quoted ('T'); an unknown letter is an error rather
// than a silent literal. Literal text that Go would read as a layout
// element ("Q1", "Jan", a digit next to a numeric field) is rejected,
// since the Go layout syntax has no way to escape it.
func (s DateFormatSpec) Compile() (*Layout, error) {
	if cached, ok := layoutCache.Load(s); ok {
		return cached.(*Layout), nil
	}
	if strings.TrimSpace(string(s)) == "" {
		return nil, fmt.Errorf("empty date format")
	}

	layout := &Layout{Spec: s}
	var segs []segment
	addLiteral := func(text string) {
		if n := len(segs); n > 0 && segs[n-1].literal {
			segs[n-1].text += text
			return
		}
		segs = append(segs, segment{text: text, literal: true})
	}

	runes := []rune(string(s))
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'':
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("unterminated quote in date format %q", s)
			}
			if end == i+1 {
				addLiteral("'")
			} else {
				addLiteral(string(runes[i+1 : end]))
			}
			i = end + 1
		case isPatternLetter(r):
			run := 1
			for i+run < len(runes) && runes[i+run] == r {
				run++
			}
			tokens, ok := patternTokens[r]
			if !ok {
				return nil, fmt.Errorf("unsupported pattern letter %q in date format %q", r, s)
			}
			goTok := ""
			for _, tok := range tokens {
				if run >= tok.count {
					goTok = tok.goTok
					break
				}
			}
			if r == 'S' {
				// Go only parses fractional seconds directly after a dot or
				// comma, and treats the separator as part of the element.
				n := len(segs)
				if n == 0 || !segs[n-1].literal ||
					!(strings.HasSuffix(segs[n-1].text, ".") || strings.HasSuffix(segs[n-1].text, ",")) {
					return nil, fmt.Errorf("fraction-of-second must follow '.' in date format %q", s)
				}
				last := segs[n-1].text
				goTok = last[len(last)-1:] + goTok
				if segs[n-1].text = last[:len(last)-1]; segs[n-1].text == "" {
					segs = segs[:n-1]
				}
			}
			segs = append(segs, segment{text: goTok})
			switch r {
			case 'd':
				layout.HasDay = true
			case 'H', 'h', 'm', 's', 'S', 'a':
				layout.HasTime = true
			case 'E':
				layout.HasWeekday = true
			}
			i += run
		default:
			addLiteral(string(r))
			i++
		}
	}

	var b strings.Builder
	for _, seg := range segs {
		b.WriteString(seg.text)
	}
	layout.GoForm = b.String()
	if err := checkLiterals(s, layout.GoForm, segs); err != nil {
		return nil, err
	}
	layoutCache.Store(s, layout)
	return layout, nil
}

// literalSamples differ from the Go reference time in every field, so any
// layout element hiding in literal text renders differently from the text.
var literalSamples = []time.Time{
	time.Date(2019, time.November, 28, 21, 48, 39, 987654321, time.FixedZone("XYZ", 5*3600+1800)),
	time.Date(2028, time.February, 9, 8, 13, 17, 123456789, time.FixedZone("QRS", -(9*3600+2700))),
}

// checkLiterals verifies that the Go layout renders each segment on its
// own: literals verbatim and tokens as they would alone.
func checkLiterals(spec DateFormatSpec, goForm string, segs []segment) error {
	for _, sample := range literalSamples {
		var want strings.Builder
		for _, seg := range segs {
			if !seg.literal {
				want.WriteString(sample.Format(seg.text))
				continue
			}
			if got := sample.Format(seg.text); got != seg.text {
				return apperrors.NewAppValidationError(
					fmt.Sprintf("literal %q in date format %q would be read as a date field", seg.text, spec)).
					WithContext("format", string(spec))
			}
			want.WriteString(seg.text)
		}
		if sample.Format(goForm) != want.String() {
			return apperrors.NewAppValidationError(
				fmt.Sprintf("literal text in date format %q runs into an adjacent date field", spec)).
				WithContext("format", string(spec))
		}
	}
	return nil
}

func isPatternLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// ParseTime interprets text under the layout. ok is false for empty or
// non-conforming input.
func (l *Layout) ParseTime(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(l.GoForm, text, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	// time.Parse accepts any weekday name; a day-of-week that disagrees
	// with the parsed date makes the text non-conforming.
	if l.HasWeekday && !strings.EqualFold(t.Format(l.GoForm), text) {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Parse interprets text as a calendar date. A missing day component
// defaults to the first of the month.
func (l *Layout) Parse(text string) (domain.CalendarDate, bool) {
	t, ok := l.ParseTime(text)
	if !ok {
		return domain.CalendarDate{}, false
	}
	return domain.DateOf(t), true
}

// Format renders d under the layout.
func (l *Layout) Format(d domain.CalendarDate) string {
	return d.Time().Format(l.GoForm)
}

// FormatTime renders t (in UTC) under the layout.
func (l *Layout) FormatTime(t time.Time) string {
	return t.UTC().Format(l.GoForm)
}

// Parse interprets text under spec. It returns ok=false for empty text,
// text that does not conform to spec, and specs that do not compile.
func Parse(text string, spec DateFormatSpec) (domain.CalendarDate, bool) {
	layout, err := spec.Compile()
	if err != nil {
		return domain.CalendarDate{}, false
	}
	return layout.Parse(text)
}

// ParseTimestamp is Parse for time-bearing values.
func ParseTimestamp(text string, spec DateFormatSpec) (time.Time, bool) {
	layout, err := spec.Compile()
	if err != nil {
		return time.Time{}, false
	}
	return layout.ParseTime(text)
}

// Format renders d under spec.
func Format(d domain.CalendarDate, spec DateFormatSpec) (string, error) {
	layout, err := spec.Compile()
	if err != nil {
		return "", err
	}
	return layout.Format(d), nil
}

// UnixTimestamp parses text under spec and returns seconds since the Unix
// epoch (UTC).
func UnixTimestamp(text string, spec DateFormatSpec) (int64, bool) {
	t, ok := ParseTimestamp(text, spec)
	if !ok {
		return 0, false
	}
	return t.Unix(), true
}

// FromUnixTimestamp converts epoch seconds to a UTC instant.
func FromUnixTimestamp(secs int64) time.Time {
	return time.Unix(secs, 0).UTC()
}
