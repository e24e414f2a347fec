// Package loader persists canonical profiles and narratives into the
// relational store. Loads are idempotent: advisers upsert on their natural
// key, filings only insert for advisers that have none, and narratives are
// gated on both foreign keys resolving.
package loader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ria-hunter/internal/adv"
	"github.com/sells-group/ria-hunter/internal/model"
	"github.com/sells-group/ria-hunter/internal/resilience"
	"github.com/sells-group/ria-hunter/internal/store"
)

// Loader writes profiles and narratives to the store in batches.
type Loader struct {
	Store store.Store

	AdviserBatchSize   int
	FilingBatchSize    int
	NarrativeBatchSize int
	LookupChunkSize    int

	Retry resilience.RetryConfig
}

// Summary reports what a load run accomplished.
type Summary struct {
	AdvisersLoaded   int64
	FilingsLoaded    int64
	NarrativesLoaded int64
	ProfilesLoaded   int64
	Skipped          int
	Errors           int
}

// DeriveCIK returns the stable identity key for an adviser: the SEC file
// number when one exists, otherwise a surrogate derived from the firm's
// name and location so repeated loads converge on the same row.
func DeriveCIK(secNumber, firmName, city, state string) string {
	if adv.ParseIdentifier(secNumber).Valid() {
		return strings.TrimSpace(secNumber)
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s", firmName, city, state)))
	return "GEN_" + strings.ToUpper(hex.EncodeToString(sum[:]))[:12]
}

// Run loads profiles and narratives, recording the run in the load log.
func (l *Loader) Run(ctx context.Context, profiles []model.Profile, narratives []model.Narrative) (Summary, error) {
	log := zap.L().With(zap.String("component", "loader"))

	runID, err := l.Store.StartRun(ctx, "load")
	if err != nil {
		return Summary{}, err
	}

	summary, err := l.load(ctx, profiles, narratives)
	if err != nil {
		if ferr := l.Store.FailRun(ctx, runID, err.Error()); ferr != nil {
			log.Warn("failed to record run failure", zap.Error(ferr))
		}
		return summary, err
	}

	total := summary.AdvisersLoaded + summary.FilingsLoaded + summary.NarrativesLoaded + summary.ProfilesLoaded
	if err := l.Store.CompleteRun(ctx, runID, total, map[string]any{
		"advisers":   summary.AdvisersLoaded,
		"filings":    summary.FilingsLoaded,
		"narratives": summary.NarrativesLoaded,
		"profiles":   summary.ProfilesLoaded,
		"skipped":    summary.Skipped,
		"errors":     summary.Errors,
	}); err != nil {
		log.Warn("failed to record run completion", zap.Error(err))
	}
	return summary, nil
}

func (l *Loader) load(ctx context.Context, profiles []model.Profile, narratives []model.Narrative) (Summary, error) {
	log := zap.L().With(zap.String("component", "loader"))
	var summary Summary

	// Build the adviser set: skip nameless rows, dedup by cik (first wins).
	type entry struct {
		adviser model.Adviser
		profile model.Profile
	}
	var order []string
	byCIK := make(map[string]entry)
	crdToCIK := make(map[string]string)
	for _, p := range profiles {
		if strings.TrimSpace(p.FirmName) == "" {
			summary.Skipped++
			continue
		}
		cik := DeriveCIK(p.SECNumber, p.FirmName, p.City, p.State)
		if _, ok := byCIK[cik]; ok {
			summary.Skipped++
			continue
		}
		byCIK[cik] = entry{
			adviser: model.Adviser{
				CIK:       cik,
				LegalName: p.FirmName,
				CRDNumber: p.CRDNumber,
				City:      p.City,
				State:     p.State,
				ZipCode:   p.ZipCode,
				Address:   p.Address,
			},
			profile: p,
		}
		order = append(order, cik)
		if p.CRDNumber != "" {
			if _, ok := crdToCIK[p.CRDNumber]; !ok {
				crdToCIK[p.CRDNumber] = cik
			}
		}
	}
	log.Info("prepared advisers",
		zap.Int("advisers", len(order)), zap.Int("skipped", summary.Skipped))

	// Upsert advisers in batches, falling back to per-record upserts when a
	// batch fails so one bad row cannot sink the rest.
	for start := 0; start < len(order); start += l.batch(l.AdviserBatchSize) {
		end := min(start+l.batch(l.AdviserBatchSize), len(order))
		batch := make([]model.Adviser, 0, end-start)
		for _, cik := range order[start:end] {
			batch = append(batch, byCIK[cik].adviser)
		}
		n, err := l.Store.UpsertAdvisers(ctx, batch)
		if err != nil {
			log.Warn("batch upsert failed, retrying records individually",
				zap.Int("batch_start", start), zap.Error(err))
			for _, a := range batch {
				rerr := resilience.Do(ctx, l.Retry, func(ctx context.Context) error {
					return l.Store.UpsertAdviser(ctx, a)
				})
				if rerr != nil {
					log.Error("adviser upsert failed", zap.String("cik", a.CIK), zap.Error(rerr))
					summary.Errors++
					continue
				}
				summary.AdvisersLoaded++
			}
			continue
		}
		summary.AdvisersLoaded += n
	}

	// Resolve adviser primary keys in chunks.
	adviserKeys := make(map[string]int64, len(order))
	for start := 0; start < len(order); start += l.batch(l.LookupChunkSize) {
		end := min(start+l.batch(l.LookupChunkSize), len(order))
		keys, err := l.Store.AdviserKeysByCIK(ctx, order[start:end])
		if err != nil {
			return summary, eris.Wrap(err, "loader: resolve adviser keys")
		}
		for cik, pk := range keys {
			adviserKeys[cik] = pk
		}
	}

	// Filings only insert for advisers with no filing yet, so reloading the
	// same snapshot is a no-op and the first snapshot is preserved.
	var allPKs []int64
	for _, cik := range order {
		if pk, ok := adviserKeys[cik]; ok {
			allPKs = append(allPKs, pk)
		}
	}
	hasFiling := make(map[int64]bool, len(allPKs))
	for start := 0; start < len(allPKs); start += l.batch(l.LookupChunkSize) {
		end := min(start+l.batch(l.LookupChunkSize), len(allPKs))
		have, err := l.Store.AdvisersWithFilings(ctx, allPKs[start:end])
		if err != nil {
			return summary, eris.Wrap(err, "loader: check existing filings")
		}
		for pk := range have {
			hasFiling[pk] = true
		}
	}

	var filings []model.Filing
	newlyFiled := make(map[int64]bool)
	for _, cik := range order {
		pk, ok := adviserKeys[cik]
		if !ok || hasFiling[pk] {
			continue
		}
		newlyFiled[pk] = true
		p := byCIK[cik].profile
		filings = append(filings, model.Filing{
			AdviserFK:     pk,
			FilingDate:    filingDate(p.LastUpdated),
			TotalAUM:      p.AUM,
			EmployeeCount: p.EmployeeCount,
			Services:      p.Services,
			ClientTypes:   p.ClientTypes,
		})
	}
	for start := 0; start < len(filings); start += l.batch(l.FilingBatchSize) {
		end := min(start+l.batch(l.FilingBatchSize), len(filings))
		n, err := l.Store.InsertFilings(ctx, filings[start:end])
		if err != nil {
			return summary, eris.Wrap(err, "loader: insert filings")
		}
		summary.FilingsLoaded += n
	}

	// Narratives require both foreign keys to resolve, and only load
	// alongside a filing inserted this run so reloads stay no-ops.
	filingKeys := make(map[int64]int64, len(allPKs))
	for start := 0; start < len(allPKs); start += l.batch(l.LookupChunkSize) {
		end := min(start+l.batch(l.LookupChunkSize), len(allPKs))
		keys, err := l.Store.FilingKeysByAdviser(ctx, allPKs[start:end])
		if err != nil {
			return summary, eris.Wrap(err, "loader: resolve filing keys")
		}
		for adviserFK, filingPK := range keys {
			filingKeys[adviserFK] = filingPK
		}
	}

	var records []model.NarrativeRecord
	for _, n := range narratives {
		cik, ok := crdToCIK[n.CRDNumber]
		if !ok {
			summary.Skipped++
			continue
		}
		adviserFK, ok := adviserKeys[cik]
		if !ok || !newlyFiled[adviserFK] {
			summary.Skipped++
			continue
		}
		filingFK, ok := filingKeys[adviserFK]
		if !ok {
			summary.Skipped++
			continue
		}
		records = append(records, model.NarrativeRecord{
			AdviserFK:     adviserFK,
			FilingFK:      filingFK,
			NarrativeType: "profile",
			NarrativeText: n.Narrative,
			Source:        n.Source,
		})
	}
	for start := 0; start < len(records); start += l.batch(l.NarrativeBatchSize) {
		end := min(start+l.batch(l.NarrativeBatchSize), len(records))
		n, err := l.Store.InsertNarratives(ctx, records[start:end])
		if err != nil {
			return summary, eris.Wrap(err, "loader: insert narratives")
		}
		summary.NarrativesLoaded += n
	}

	// Canonical profile rows need a CRD to key on. The adviser set deduped
	// by cik, but distinct ciks can still share a CRD (e.g. a firm filing
	// under both an SEC number and a generated surrogate), and the upsert
	// cannot take the same conflict key twice in one batch. Keep one row
	// per CRD, preferring the one backed by a real SEC number.
	var withCRD []model.Profile
	crdIndex := make(map[string]int)
	for _, cik := range order {
		p := byCIK[cik].profile
		if p.CRDNumber == "" {
			continue
		}
		i, ok := crdIndex[p.CRDNumber]
		if !ok {
			crdIndex[p.CRDNumber] = len(withCRD)
			withCRD = append(withCRD, p)
			continue
		}
		if adv.ParseIdentifier(p.SECNumber).Valid() && !adv.ParseIdentifier(withCRD[i].SECNumber).Valid() {
			withCRD[i] = p
		}
	}
	for start := 0; start < len(withCRD); start += l.batch(l.AdviserBatchSize) {
		end := min(start+l.batch(l.AdviserBatchSize), len(withCRD))
		n, err := l.Store.UpsertProfiles(ctx, withCRD[start:end])
		if err != nil {
			return summary, eris.Wrap(err, "loader: upsert profiles")
		}
		summary.ProfilesLoaded += n
	}

	log.Info("load complete",
		zap.Int64("advisers", summary.AdvisersLoaded),
		zap.Int64("filings", summary.FilingsLoaded),
		zap.Int64("narratives", summary.NarrativesLoaded),
		zap.Int64("profiles", summary.ProfilesLoaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

func (l *Loader) batch(n int) int {
	if n <= 0 {
		return 500
	}
	return n
}

func filingDate(lastUpdated string) time.Time {
	if t, err := time.Parse("2006-01-02", lastUpdated); err == nil {
		return t
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}
