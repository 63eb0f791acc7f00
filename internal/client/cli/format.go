package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/iudanet/shoetrack/internal/validation"
)

const dateLayout = "2006-01-02"

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDate понимает ISO-дату и свободный текст вроде "yesterday" или
// "last friday". Пустая строка дает now.
func parseDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return now, nil
	}
	if t, err := time.ParseInLocation(dateLayout, text, now.Location()); err == nil {
		return t, nil
	}

	r, err := dateParser.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, &validation.FieldError{Field: "date", Reason: fmt.Sprintf("cannot understand %q", text)}
	}
	return r.Time, nil
}

// table печатает выровненные колонки; Flush обязателен
func table(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func km(v float64) string {
	return fmt.Sprintf("%.1f km", v)
}

// shortID первые 8 символов uuid для таблиц
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func pace(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d /km", secs/60, secs%60)
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func bytesOf(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
