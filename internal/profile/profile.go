// Package profile canonicalizes the combined ADV base table into flat
// adviser profile rows with a fixed column set.
package profile

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/adv"
	"github.com/sells-group/ria-hunter/internal/model"
)

// DataSource stamps every canonical row.
const DataSource = "SEC IAPD"

// serviceColumns maps Item 5G coded columns to human-readable service labels,
// in declared category order.
var serviceColumns = []struct {
	Col   string
	Label string
}{
	{"5G1", "Financial Planning"},
	{"5G2", "Portfolio Management (Individuals)"},
	{"5G3", "Portfolio Management (Businesses)"},
	{"5G4", "Pension Consulting"},
	{"5G5", "Selection of Other Advisers"},
	{"5G6", "Publication of Newsletters"},
	{"5G7", "Other Services"},
}

// clientColumns maps Item 5D client-count columns to client-type labels.
var clientColumns = []struct {
	Col   string
	Label string
}{
	{"5D1a", "Individuals (non-high net worth)"},
	{"5D1b", "High net worth individuals"},
	{"5D1c", "Banking or thrift institutions"},
	{"5D1d", "Investment companies"},
	{"5D1e", "Business development companies"},
	{"5D1f", "Pooled investment vehicles"},
}

// Builder converts combined raw rows into canonical profiles.
type Builder struct {
	// Now supplies the last_updated stamp; defaults to time.Now.
	Now func() time.Time
}

// Build canonicalizes every row of the combined table. Rows are retained even
// when identity fields are missing; the loader decides what to persist.
func (b *Builder) Build(t *adv.RawTable) []model.Profile {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	stamp := now().Format("2006-01-02")

	log := zap.L().With(zap.String("component", "profile"))

	hasRegistration := t.HasColumn("2A1")

	profiles := make([]model.Profile, 0, len(t.Rows))
	for _, row := range t.Rows {
		crd := adv.ParseIdentifier(t.FirstNonEmpty(row, "1O"))
		sec := adv.ParseIdentifier(t.FirstNonEmpty(row, "1P"))

		p := model.Profile{
			FirmName:      t.FirstNonEmpty(row, "1A", "1B1"),
			CRDNumber:     crd.String(),
			SECNumber:     sec.String(),
			City:          adv.TrimQuotes(t.Get(row, "1F1-City")),
			State:         adv.TrimQuotes(t.Get(row, "1F1-State")),
			ZipCode:       adv.TrimQuotes(t.Get(row, "1F1-Postal")),
			Address:       joinAddress(adv.TrimQuotes(t.Get(row, "1F1-Street 1")), adv.TrimQuotes(t.Get(row, "1F1-Street 2"))),
			AUM:           coerceNonNeg(t.Get(row, "5F2f")),
			EmployeeCount: int(coerceNonNeg(t.Get(row, "5B1a"))),
			Services:      joinLabels(t, row, serviceColumns, markedYes),
			ClientTypes:   joinLabels(t, row, clientColumns, countPositive),
			DataSource:    DataSource,
			LastUpdated:   stamp,
		}

		// Registration defaults to true when the column is absent entirely;
		// otherwise a populated 2A1 marks the row registered.
		if hasRegistration {
			p.IsRegistered = strings.TrimSpace(t.Get(row, "2A1")) != ""
		} else {
			p.IsRegistered = true
		}

		profiles = append(profiles, p)
	}

	log.Info("canonicalized profiles", zap.Int("rows", len(profiles)))
	return profiles
}

// joinAddress concatenates street lines without introducing a stray space
// when the second line is empty.
func joinAddress(street1, street2 string) string {
	if street2 == "" {
		return street1
	}
	if street1 == "" {
		return street2
	}
	return street1 + " " + street2
}

// coerceNonNeg coerces a free-text numeric field to a non-negative integer.
// Anything unparseable (including thousands separators) becomes 0, matching
// strict numeric coercion at the canonical boundary.
func coerceNonNeg(s string) int64 {
	s = strings.TrimSpace(adv.TrimQuotes(s))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		v = int64(f)
	}
	if v < 0 {
		return 0
	}
	return v
}

// markedYes reports whether a coded service column is literally flagged "Y".
func markedYes(v string) bool {
	return strings.TrimSpace(v) == "Y"
}

// countPositive reports whether a client-count column holds a value > 0.
func countPositive(v string) bool {
	return adv.ParseFloat64Or(strings.TrimSpace(v), 0) > 0
}

// joinLabels appends each mapped label whose column satisfies pred, comma
// joined in declared order, never duplicating a label.
func joinLabels(t *adv.RawTable, row []string, cols []struct {
	Col   string
	Label string
}, pred func(string) bool) string {
	var sb strings.Builder
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c.Label] || !pred(t.Get(row, c.Col)) {
			continue
		}
		seen[c.Label] = true
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.Label)
	}
	return sb.String()
}
