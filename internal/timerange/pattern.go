package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Patterns use the letters y (year), R (ISO week-numbering year), Q
// (quarter), M (month), d (day of month) and I (ISO week). Text inside single
// quotes and any non-letter character is literal; '' is a quote.

type patternToken struct {
	letter  byte // 0 for literal text
	count   int
	literal string
}

func tokenize(pattern string) ([]patternToken, error) {
	var toks []patternToken
	for i := 0; i < len(pattern); {
		ch := pattern[i]
		switch {
		case ch == '\'':
			if i+1 < len(pattern) && pattern[i+1] == '\'' {
				toks = append(toks, patternToken{literal: "'"})
				i += 2
				continue
			}
			var b strings.Builder
			j := i + 1
			for ; j < len(pattern); j++ {
				if pattern[j] == '\'' {
					if j+1 < len(pattern) && pattern[j+1] == '\'' {
						b.WriteByte('\'')
						j++
						continue
					}
					break
				}
				b.WriteByte(pattern[j])
			}
			if j >= len(pattern) {
				return nil, fmt.Errorf("unterminated quote in pattern %q", pattern)
			}
			toks = append(toks, patternToken{literal: b.String()})
			i = j + 1
		case isLetter(ch):
			j := i
			for j < len(pattern) && pattern[j] == ch {
				j++
			}
			if !strings.ContainsRune("yRQMdI", rune(ch)) || (ch != 'y' && ch != 'R' && j-i > 2) {
				return nil, fmt.Errorf("unsupported token %q in pattern %q", pattern[i:j], pattern)
			}
			toks = append(toks, patternToken{letter: ch, count: j - i})
			i = j
		default:
			toks = append(toks, patternToken{literal: string(ch)})
			i++
		}
	}
	return toks, nil
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// Format renders t with pattern.
func Format(t time.Time, pattern string) (string, error) {
	toks, err := tokenize(pattern)
	if err != nil {
		return "", err
	}
	isoYear, isoWeek := t.ISOWeek()
	var b strings.Builder
	for _, tok := range toks {
		switch tok.letter {
		case 0:
			b.WriteString(tok.literal)
		case 'y':
			b.WriteString(formatYear(t.Year(), tok.count))
		case 'R':
			b.WriteString(formatYear(isoYear, tok.count))
		case 'Q':
			b.WriteString(pad((int(t.Month())-1)/3+1, tok.count))
		case 'M':
			b.WriteString(pad(int(t.Month()), tok.count))
		case 'd':
			b.WriteString(pad(t.Day(), tok.count))
		case 'I':
			b.WriteString(pad(isoWeek, tok.count))
		}
	}
	return b.String(), nil
}

func formatYear(year, count int) string {
	if count == 2 {
		return pad(year%100, 2)
	}
	return pad(year, count)
}

func pad(v, width int) string {
	s := strconv.Itoa(v)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// Parse reads value with pattern. Units missing from the pattern start at
// their first value; a missing year is taken from ref.
func Parse(value, pattern string, ref time.Time) (time.Time, error) {
	toks, err := tokenize(pattern)
	if err != nil {
		return time.Time{}, err
	}
	fields := map[byte]int{}
	rest := value
	for _, tok := range toks {
		if tok.letter == 0 {
			if !strings.HasPrefix(rest, tok.literal) {
				return time.Time{}, fmt.Errorf("value %q does not match pattern %q", value, pattern)
			}
			rest = rest[len(tok.literal):]
			continue
		}
		minWidth, maxWidth := widths(tok)
		n := 0
		for n < len(rest) && n < maxWidth && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n < minWidth {
			return time.Time{}, fmt.Errorf("value %q does not match pattern %q", value, pattern)
		}
		v, _ := strconv.Atoi(rest[:n])
		if (tok.letter == 'y' || tok.letter == 'R') && tok.count == 2 {
			v += 2000
		}
		fields[tok.letter] = v
		rest = rest[n:]
	}
	if rest != "" {
		return time.Time{}, fmt.Errorf("value %q does not match pattern %q", value, pattern)
	}
	return build(fields, value, ref)
}

func widths(tok patternToken) (int, int) {
	switch tok.letter {
	case 'y', 'R':
		if tok.count == 1 {
			return 1, 4
		}
		return tok.count, tok.count
	case 'Q':
		return tok.count, tok.count
	default:
		if tok.count == 2 {
			return 2, 2
		}
		return 1, 2
	}
}

func build(fields map[byte]int, value string, ref time.Time) (time.Time, error) {
	loc := ref.Location()
	if week, ok := fields['I']; ok {
		year := ref.Year()
		if y, ok := fields['R']; ok {
			year = y
		} else if y, ok := fields['y']; ok {
			year = y
		}
		if week < 1 || week > 53 {
			return time.Time{}, fmt.Errorf("week out of range in %q", value)
		}
		return isoWeekStart(year, week, loc), nil
	}

	year := ref.Year()
	if y, ok := fields['y']; ok {
		year = y
	} else if y, ok := fields['R']; ok {
		year = y
	}
	month := 1
	if q, ok := fields['Q']; ok {
		if q < 1 || q > 4 {
			return time.Time{}, fmt.Errorf("quarter out of range in %q", value)
		}
		month = (q-1)*3 + 1
	}
	if m, ok := fields['M']; ok {
		month = m
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month out of range in %q", value)
	}
	day := 1
	if d, ok := fields['d']; ok {
		day = d
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, fmt.Errorf("day out of range in %q", value)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), nil
}

func isoWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return monday.AddDate(0, 0, (week-1)*7)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths adds n months, clamping the day to the end of the target month.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	day := t.Day()
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return target.AddDate(0, 0, day-1)
}
