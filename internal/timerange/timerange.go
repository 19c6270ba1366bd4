// Package timerange resolves relative and absolute calendar windows into
// member slicers on the matching calendar level.
package timerange

import (
	"time"

	"github.com/benbjohnson/clock"

	"cubesql/internal/domain"
)

var semantics = map[domain.TimeGranularity]string{
	domain.GranularityYear:    domain.SemanticCalendarYear,
	domain.GranularityQuarter: domain.SemanticCalendarQuarter,
	domain.GranularityMonth:   domain.SemanticCalendarMonth,
	domain.GranularityWeek:    domain.SemanticCalendarWeek,
	domain.GranularityDay:     domain.SemanticCalendarDay,
}

// DefaultFormats are the member formats of each granularity. Explicit range
// bounds are always written in these formats.
var DefaultFormats = map[domain.TimeGranularity]string{
	domain.GranularityYear:    "yyyy",
	domain.GranularityQuarter: "yyyy'Q'Q",
	domain.GranularityMonth:   "yyyyMM",
	domain.GranularityWeek:    "RRRR'W'II",
	domain.GranularityDay:     "yyyyMMdd",
}

// Resolve converts every range of ts into a slicer. A range collapsing to a
// single period yields one member; otherwise it yields a BT slicer with the
// low and high members in order.
func Resolve(et *domain.EntityType, ts domain.TimeRangesSlicer, clk clock.Clock) ([]domain.Slicer, error) {
	var dim *domain.RuntimeDimension
	if ts.Dimension.Dimension != "" {
		dim = et.Dimension(ts.Dimension.Dimension)
	} else {
		dim = et.CalendarDimension()
	}
	if dim == nil {
		return nil, domain.ErrResolution("calendar dimension %q not found in %q", ts.Dimension.Dimension, et.Name)
	}
	hier := dim.Hierarchy(ts.Dimension.Hierarchy)
	if hier == nil {
		return nil, domain.ErrResolution("hierarchy %q not found in dimension %q", ts.Dimension.Hierarchy, dim.Plain)
	}

	now := clk.Now()
	if ts.CurrentDate != domain.CurrentDateSystemTime {
		now = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}

	slicers := make([]domain.Slicer, 0, len(ts.Ranges))
	for _, r := range ts.Ranges {
		semantic, ok := semantics[r.Granularity]
		if !ok {
			return nil, domain.ErrValidation("unsupported time granularity %q", r.Granularity)
		}
		level := hier.LevelBySemantic(semantic)
		target := r.Formatter
		if target == "" && level != nil {
			if level.Semantics.Formatter != "" {
				target = level.Semantics.Formatter
			} else {
				target = DefaultFormats[r.Granularity]
			}
		}
		if target == "" {
			return nil, domain.ErrCompilation("dimension %q has no %s level and the time range sets no formatter", dim.Plain, r.Granularity)
		}

		var low, high string
		var err error
		if r.Start != "" {
			low, high, err = startEndRange(now, r, target)
		} else {
			low, high, err = offsetRange(now, r, target)
		}
		if err != nil {
			return nil, domain.ErrValidation("time range on %q: %s", dim.Plain, err.Error())
		}

		ref := domain.DimensionRef{
			Dimension: firstNonEmpty(ts.Dimension.Dimension, dim.Plain),
			Hierarchy: ts.Dimension.Hierarchy,
			Level:     ts.Dimension.Level,
		}
		if level != nil {
			ref.Level = level.Name
		}
		if high == "" || low == high {
			slicers = append(slicers, domain.Slicer{
				Dimension: ref,
				Members:   []domain.Member{{Key: low, Value: low}},
			})
			continue
		}
		slicers = append(slicers, domain.Slicer{
			Dimension: ref,
			Members:   []domain.Member{{Key: low, Value: low}, {Key: high, Value: high}},
			Operator:  domain.OperatorBT,
		})
	}
	return slicers, nil
}

func startEndRange(now time.Time, r domain.TimeRange, target string) (string, string, error) {
	low, err := reformat(now, r.Start, r.Granularity, target)
	if err != nil {
		return "", "", err
	}
	if r.End == "" {
		return low, "", nil
	}
	high, err := reformat(now, r.End, r.Granularity, target)
	if err != nil {
		return "", "", err
	}
	return low, high, nil
}

func reformat(now time.Time, value string, g domain.TimeGranularity, target string) (string, error) {
	t, err := Parse(value, DefaultFormats[g], now)
	if err != nil {
		return "", err
	}
	return Format(t, target)
}

// offsetRange computes the window around now. Standard ranges span
// lookBack periods back to lookAhead periods ahead; a single count mirrors
// itself. Offset ranges first shift now by the current offset and default
// to the adjacent periods.
func offsetRange(now time.Time, r domain.TimeRange, target string) (string, string, error) {
	from := valueOr(r.LookBack, -valueOr(r.LookAhead, 0))
	to := valueOr(r.LookAhead, -valueOr(r.LookBack, 0))
	if r.Type == domain.TimeRangeOffset {
		if r.Current != nil {
			now = Shift(now, r.Current.Direction, r.Granularity, r.Current.Amount)
		}
		from = valueOr(r.LookBack, 1)
		to = valueOr(r.LookAhead, -1)
	}
	low, err := Format(Shift(now, domain.LookBack, r.Granularity, from), target)
	if err != nil {
		return "", "", err
	}
	high, err := Format(Shift(now, domain.LookAhead, r.Granularity, to), target)
	if err != nil {
		return "", "", err
	}
	return low, high, nil
}

// Shift moves t by amount periods of granularity in direction. Month based
// shifts clamp the day of month.
func Shift(t time.Time, direction domain.OffsetDirection, g domain.TimeGranularity, amount int) time.Time {
	if direction == domain.LookBack {
		amount = -amount
	}
	switch g {
	case domain.GranularityYear:
		return addMonths(t, 12*amount)
	case domain.GranularityQuarter:
		return addMonths(t, 3*amount)
	case domain.GranularityMonth:
		return addMonths(t, amount)
	case domain.GranularityWeek:
		return t.AddDate(0, 0, 7*amount)
	case domain.GranularityDay:
		return t.AddDate(0, 0, amount)
	default:
		return t
	}
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
