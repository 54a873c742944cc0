package export

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/giveline/donation-ledger/internal/model"
	"github.com/giveline/donation-ledger/pkg/prom"
)

// ErrNoData marks an export whose view produced zero rows. The transport
// layer maps it to a not-found response instead of shipping a bare
// header line.
var ErrNoData = errors.New("no ledger data for the requested range")

// Record is one exportable row. Header and record must agree on column
// order.
type Record interface {
	CSVHeader() []string
	CSVRecord() []string
}

// ToCSV renders a header line plus one line per record. Finance tooling
// on the receiving end chokes on quoted-but-clean fields, so values are
// quoted only when they contain a comma, a double quote or a newline.
func ToCSV(kind model.ViewKind, records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrNoData, "view %q", kind)
	}

	var b strings.Builder
	writeLine(&b, records[0].CSVHeader())
	for _, r := range records {
		writeLine(&b, r.CSVRecord())
	}

	prom.AddExportRows(string(kind), float64(len(records)))

	return []byte(b.String()), nil
}

func writeLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeField(f))
	}
	b.WriteByte('\n')
}

func escapeField(f string) string {
	if !strings.ContainsAny(f, ",\"\n") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}

// Filename derives a download name from the view kind and range, e.g.
// ledger_daily_2024-03-01_2024-03-31.csv. A missing start renders as
// "all", a missing end as the empty string.
func Filename(kind model.ViewKind, r model.DateRange) string {
	start := r.Start
	if start == "" {
		start = "all"
	}
	return fmt.Sprintf("ledger_%s_%s_%s.csv", kind, start, r.End)
}
