// Package ingest converts statement files into normalized transactions
// ready for upload processing.
package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/pennyworth/tally/internal/model"
)

// OFXParser implements OFX/QFX statement parsing.
type OFXParser struct{}

// NewOFXParser creates a new OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags missing their closing bracket in SGML-style files.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting issues in OFX files before parsing.
func (p *OFXParser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// Parse reads an OFX/QFX statement and returns normalized transactions.
// OFX amounts keep their sign: debits stay negative, which matches the
// signed-amount convention of the data model.
func (p *OFXParser) Parse(reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, p.convert(ofxTx))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, ofxTx := range stmt.BankTranList.Transactions {
				transactions = append(transactions, p.convert(ofxTx))
			}
		}
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

// convert maps one OFX transaction into the data model.
func (p *OFXParser) convert(ofxTx ofxgo.Transaction) model.Transaction {
	// TrnAmt is a big.Rat; render it at two decimal places so the value
	// matches the canonical fingerprint formatting exactly.
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		amount = decimal.Zero
	}

	txn := model.Transaction{
		ID:               string(ofxTx.FiTID),
		Date:             ofxTx.DtPosted.Time,
		Description:      string(ofxTx.Name),
		MerchantName:     extractMerchantName(ofxTx),
		Amount:           amount,
		Source:           model.SourceUpload,
		SourceIdentifier: string(ofxTx.FiTID),
		Status:           model.StatusUnreconciled,
	}

	txn.ComputeFingerprint()

	return txn
}

var (
	// Processor boilerplate that banks prepend to card transaction names.
	cardPrefixRegex = regexp.MustCompile(`(?i)^(pos purchase|purchase authorized on|debit card purchase|ach debit|check card|visa purchase|mc purchase|debit purchase)\s+`)
	// Leading "MM/DD " posting dates some feeds bake into the name.
	postedDateRegex = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

// genericNames are NAME values carrying no merchant information at all.
var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// extractMerchantName derives a display-worthy merchant name. PAYEE is
// the cleanest source when present; otherwise NAME, falling back to
// MEMO when NAME says nothing useful, with processor noise stripped.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := strings.TrimSpace(string(tx.Name))
	if memo := strings.TrimSpace(string(tx.Memo)); memo != "" && genericNames[strings.ToUpper(name)] {
		name = memo
	}

	name = cardPrefixRegex.ReplaceAllString(name, "")
	name = postedDateRegex.ReplaceAllString(name, "")

	return strings.TrimSpace(name)
}
