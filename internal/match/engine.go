// Package match computes confidence-scored candidate pairings between
// unreconciled transactions and unreconciled documents, and performs
// greedy high-confidence auto-linking.
package match

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pennyworth/tally/internal/model"
	"github.com/pennyworth/tally/internal/service"
)

const (
	// Hard gates applied before scoring; they bound the search space.
	maxAmountDiff = 100.0 // absolute currency units
	maxDaysDiff   = 60

	// noDate marks a pair where either side has no usable date.
	noDate = 999

	// maxCandidates bounds interactive suggestion lists.
	maxCandidates = 5

	weightAmount      = 0.5
	weightDate        = 0.3
	weightDescription = 0.2

	// Auto-match commits a link only at high confidence.
	highAmountTolerance   = 0.01
	highDaysTolerance     = 7
	highScoreFloor        = 80.0
	mediumAmountTolerance = 1.00
	mediumDaysTolerance   = 30
	mediumScoreFloor      = 60.0
)

// Engine scores transaction<->document pairings.
type Engine struct {
	txnStore service.TransactionStore
	docStore service.DocumentStore
	logger   *slog.Logger
}

// NewEngine creates a match engine.
func NewEngine(txnStore service.TransactionStore, docStore service.DocumentStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{txnStore: txnStore, docStore: docStore, logger: logger}
}

// Score computes the weighted match score for one transaction/document
// pair. ok is false when the pair fails a hard gate and must not be
// offered as a candidate at all.
func Score(txn *model.Transaction, doc *model.Document) (candidate model.MatchCandidate, ok bool) {
	// Transactions are signed, document totals are unsigned: compare
	// magnitudes.
	amountDiff, _ := txn.Amount.Abs().Sub(doc.TotalAmount.Abs()).Abs().Float64()

	daysDiff := noDate
	if !txn.Date.IsZero() && doc.DocumentDate != nil && !doc.DocumentDate.IsZero() {
		daysDiff = wholeDays(txn.Date, *doc.DocumentDate)
	}

	if amountDiff >= maxAmountDiff || daysDiff > maxDaysDiff {
		return model.MatchCandidate{}, false
	}

	amountScore := max(0, 100-amountDiff*10)
	dateScore := max(0, 100-float64(daysDiff)*2)
	descScore := descriptionScore(txn.Description, doc.VendorName)

	total := weightAmount*amountScore + weightDate*dateScore + weightDescription*descScore

	return model.MatchCandidate{
		OtherPartyID: doc.ID,
		Score:        total,
		Confidence:   confidence(amountDiff, daysDiff, total),
		AmountDiff:   amountDiff,
		DaysDiff:     daysDiff,
	}, true
}

// FindCandidatesForTransaction scores a transaction against a pool of
// documents and returns the top candidates by score, best first.
func (e *Engine) FindCandidatesForTransaction(txn *model.Transaction, docs []model.Document) []model.MatchCandidate {
	candidates := make([]model.MatchCandidate, 0, len(docs))
	for i := range docs {
		if c, ok := Score(txn, &docs[i]); ok {
			candidates = append(candidates, c)
		}
	}
	return top(candidates)
}

// FindCandidatesForDocument scores a document against a pool of
// transactions and returns the top candidates by score, best first.
func (e *Engine) FindCandidatesForDocument(doc *model.Document, txns []model.Transaction) []model.MatchCandidate {
	candidates := make([]model.MatchCandidate, 0, len(txns))
	for i := range txns {
		if c, ok := Score(&txns[i], doc); ok {
			c.OtherPartyID = txns[i].ID
			candidates = append(candidates, c)
		}
	}
	return top(candidates)
}

// AutoMatch links every unreconciled transaction to its best
// high-confidence document. Allocation is greedy and first-come: once a
// document is claimed it is consumed in-memory for the rest of the run,
// so a later transaction in the same batch cannot double-assign it. No
// globally optimal assignment is attempted.
func (e *Engine) AutoMatch(ctx context.Context, ownerID string) (*model.AutoMatchResult, error) {
	txns, err := e.txnStore.UnreconciledTransactions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	docs, err := e.docStore.UnreconciledDocuments(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := &model.AutoMatchResult{Examined: len(txns)}
	consumed := make(map[string]bool, len(docs))

	for i := range txns {
		best, found := e.bestCandidate(&txns[i], docs, consumed)
		if !found || best.Confidence != model.ConfidenceHigh {
			result.Skipped++
			continue
		}

		if err := e.txnStore.LinkMatch(ctx, txns[i].ID, best.OtherPartyID); err != nil {
			e.logger.Warn("failed to link match",
				"transaction", txns[i].ID,
				"document", best.OtherPartyID,
				"error", err)
			result.Skipped++
			continue
		}

		consumed[best.OtherPartyID] = true
		result.Linked++
		e.logger.Info("auto-matched transaction",
			"transaction", txns[i].ID,
			"document", best.OtherPartyID,
			"score", best.Score,
			"amount_diff", best.AmountDiff,
			"days_diff", best.DaysDiff)
	}

	return result, nil
}

func (e *Engine) bestCandidate(txn *model.Transaction, docs []model.Document, consumed map[string]bool) (model.MatchCandidate, bool) {
	var best model.MatchCandidate
	found := false
	for i := range docs {
		if consumed[docs[i].ID] {
			continue
		}
		c, ok := Score(txn, &docs[i])
		if !ok {
			continue
		}
		if !found || c.Score > best.Score {
			best = c
			found = true
		}
	}
	return best, found
}

// confidence buckets a scored pair. The high tier requires the strict
// amount/date gate in addition to the score floor: a score of 80+ alone
// is not enough to auto-link.
func confidence(amountDiff float64, daysDiff int, total float64) model.MatchConfidence {
	switch {
	case amountDiff < highAmountTolerance && daysDiff <= highDaysTolerance && total >= highScoreFloor:
		return model.ConfidenceHigh
	case amountDiff < mediumAmountTolerance && daysDiff <= mediumDaysTolerance && total >= mediumScoreFloor:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// descriptionScore measures textual affinity between a transaction
// description and a document vendor name: 100 when one contains the
// other, otherwise the percentage of significant words (longer than 3
// characters) that are mutual substrings, otherwise 0.
func descriptionScore(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 100
	}

	wordsA := significantWords(a)
	wordsB := significantWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	matches := 0
	for _, wa := range wordsA {
		for _, wb := range wordsB {
			if strings.Contains(wa, wb) || strings.Contains(wb, wa) {
				matches++
				break
			}
		}
	}

	return 100 * float64(matches) / float64(max(len(wordsA), len(wordsB)))
}

func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// wholeDays returns the absolute calendar-day distance between two dates.
func wholeDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

func top(candidates []model.MatchCandidate) []model.MatchCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}
