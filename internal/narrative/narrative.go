// Package narrative synthesizes deterministic adviser descriptions from
// canonical profiles and merges free-text extracts from relationship
// summary files.
package narrative

import (
	"strconv"
	"strings"

	"github.com/sells-group/ria-hunter/internal/model"
)

// ProfileSource marks narratives rendered from the canonical profile table.
const ProfileSource = "ria_profile"

// Build renders the clause template for one profile. The output is
// deterministic: the same profile always yields byte-identical text.
func Build(p model.Profile) string {
	var parts []string

	if p.FirmName != "" {
		parts = append(parts, p.FirmName+" is a registered investment adviser")
	}

	var loc []string
	if p.City != "" {
		loc = append(loc, p.City)
	}
	if p.State != "" {
		loc = append(loc, p.State)
	}
	if len(loc) > 0 {
		parts = append(parts, "located in "+strings.Join(loc, ", "))
	}

	var ids []string
	if p.CRDNumber != "" {
		ids = append(ids, "CRD number "+p.CRDNumber)
	}
	if p.SECNumber != "" {
		ids = append(ids, "SEC file number "+p.SECNumber)
	}
	if len(ids) > 0 {
		parts = append(parts, "with "+strings.Join(ids, " and "))
	}

	if p.AUM > 0 {
		parts = append(parts, "managing "+FormatAUM(p.AUM)+" in assets")
	}

	if p.EmployeeCount > 0 {
		parts = append(parts, "with "+strconv.Itoa(p.EmployeeCount)+" employees")
	}

	if s := strings.TrimSpace(p.Services); s != "" {
		parts = append(parts, "offering services including "+strings.ToLower(s))
	}

	if c := strings.TrimSpace(p.ClientTypes); c != "" {
		parts = append(parts, "serving "+strings.ToLower(c))
	}

	if len(parts) == 0 {
		return ""
	}

	text := strings.Join(parts, ". ") + "."
	// Clauses ending in an abbreviation would otherwise double the period.
	return strings.ReplaceAll(text, "..", ".")
}

// BuildAll renders narratives for every profile with a usable CRD number.
func BuildAll(profiles []model.Profile) []model.Narrative {
	var out []model.Narrative
	for _, p := range profiles {
		text := Build(p)
		if text == "" || p.CRDNumber == "" {
			continue
		}
		out = append(out, model.Narrative{
			CRDNumber: p.CRDNumber,
			Narrative: text,
			Source:    ProfileSource,
		})
	}
	return out
}

// FormatAUM renders an assets-under-management figure in human phrasing:
// billions and millions to one decimal place, smaller figures as literal
// dollars with thousands separators.
func FormatAUM(aum int64) string {
	switch {
	case aum >= 1_000_000_000:
		return "$" + strconv.FormatFloat(float64(aum)/1e9, 'f', 1, 64) + " billion"
	case aum >= 1_000_000:
		return "$" + strconv.FormatFloat(float64(aum)/1e6, 'f', 1, 64) + " million"
	default:
		return "$" + groupThousands(aum)
	}
}

// groupThousands formats n with comma separators.
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
