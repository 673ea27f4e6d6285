package query

import (
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "cmdtrace/internal/errors"
)

func invalid(operator, term, reason string) error {
	return apperrors.InvalidQuery(operator, term, reason)
}

// dayRange is a half-open interval [from, to).
type dayRange struct {
	from, to time.Time
}

func (r dayRange) contains(t time.Time) bool {
	return !t.Before(r.from) && t.Before(r.to)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// parseDate understands today, yesterday, week (the last 7 days including
// today), month (the last 30 days including today), a single YYYY-MM-DD day
// and an inclusive YYYY-MM-DD..YYYY-MM-DD range. Days are taken in now's
// location.
func parseDate(term string, now time.Time) (dayRange, error) {
	today := startOfDay(now)
	days := func(n int) dayRange {
		return dayRange{from: today.AddDate(0, 0, 1-n), to: today.AddDate(0, 0, 1)}
	}

	switch strings.ToLower(term) {
	case "today":
		return days(1), nil
	case "yesterday":
		return dayRange{from: today.AddDate(0, 0, -1), to: today}, nil
	case "week":
		return days(7), nil
	case "month":
		return days(30), nil
	}

	loc := now.Location()
	if lo, hi, ok := strings.Cut(term, ".."); ok {
		from, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(lo), loc)
		if err != nil {
			return dayRange{}, invalid("date", term, "range start is not YYYY-MM-DD")
		}
		to, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(hi), loc)
		if err != nil {
			return dayRange{}, invalid("date", term, "range end is not YYYY-MM-DD")
		}
		if to.Before(from) {
			return dayRange{}, invalid("date", term, "range end is before its start")
		}
		return dayRange{from: from, to: to.AddDate(0, 0, 1)}, nil
	}

	day, err := time.ParseInLocation(time.DateOnly, term, loc)
	if err != nil {
		return dayRange{}, invalid("date", term, "want today, yesterday, week, month, YYYY-MM-DD or a range")
	}
	return dayRange{from: day, to: day.AddDate(0, 0, 1)}, nil
}

// countRange is an inclusive message count range. Counts are never negative.
type countRange struct {
	low, high int
}

func (r countRange) contains(n int) bool {
	return n >= r.low && n <= r.high
}

// parseCount understands min..max, >=n, <=n, >n, <n, =n and a bare n.
func parseCount(term string) (countRange, error) {
	term = strings.TrimSpace(term)
	atoi := func(s string) (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, invalid("messages", term, "not an integer: "+strconv.Quote(strings.TrimSpace(s)))
		}
		return n, nil
	}

	if lo, hi, ok := strings.Cut(term, ".."); ok {
		low, err := atoi(lo)
		if err != nil {
			return countRange{}, err
		}
		high, err := atoi(hi)
		if err != nil {
			return countRange{}, err
		}
		if high < low {
			return countRange{}, invalid("messages", term, "range end is below its start")
		}
		return countRange{low, high}, nil
	}

	for _, op := range []string{">=", "<=", ">", "<", "="} {
		rest, ok := strings.CutPrefix(term, op)
		if !ok {
			continue
		}
		n, err := atoi(rest)
		if err != nil {
			return countRange{}, err
		}
		switch op {
		case ">=":
			return countRange{n, math.MaxInt}, nil
		case "<=":
			return countRange{0, n}, nil
		case ">":
			if n == math.MaxInt {
				return countRange{1, 0}, nil
			}
			return countRange{n + 1, math.MaxInt}, nil
		case "<":
			return countRange{0, n - 1}, nil
		default:
			return countRange{n, n}, nil
		}
	}

	n, err := atoi(term)
	if err != nil {
		return countRange{}, err
	}
	return countRange{n, n}, nil
}
