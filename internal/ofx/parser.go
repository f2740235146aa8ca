// Package ofx reads bank statements in OFX/QFX format and imports their
// transactions into an account.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at end of line that lost their closing bracket.
	unclosedTagRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	leadingDateRegex = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

// cardPrefixes are terminal prefixes banks put in front of the merchant.
var cardPrefixes = []string{
	"POS W/D ",
	"EFTPOS ",
	"VISA PURCHASE ",
	"DEBIT CARD PURCHASE ",
	"CARD PURCHASE ",
	"MC PURCHASE ",
}

// trnTypes maps OFX transaction types to the bank transaction types used
// elsewhere, so income markers such as "direct credit" are recognized.
var trnTypes = map[string]string{
	"CREDIT":      "credit",
	"DEBIT":       "debit",
	"INT":         "interest",
	"DIV":         "dividend",
	"FEE":         "bank fee",
	"SRVCHG":      "bank fee",
	"DEP":         "deposit",
	"ATM":         "atm",
	"POS":         "eftpos",
	"XFER":        "transfer",
	"CHECK":       "cheque",
	"PAYMENT":     "bill payment",
	"CASH":        "cash",
	"DIRECTDEP":   "direct credit",
	"DIRECTDEBIT": "direct debit",
	"REPEATPMT":   "automatic payment",
}

// Statement is one account's transactions from an OFX file. Transactions
// carry no account id yet.
type Statement struct {
	AccountNumber string
	Transactions  []model.Transaction
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocess fixes formatting quirks that ofxgo rejects.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in r.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []Statement
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		statements = append(statements, p.statement(string(stmt.BankAcctFrom.AcctID), stmt.BankTranList))
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		statements = append(statements, p.statement(string(stmt.CCAcctFrom.AcctID), stmt.BankTranList))
	}

	total := 0
	for _, s := range statements {
		total += len(s.Transactions)
	}
	slog.Info("Parsed OFX file", "statements", len(statements), "transactions", total)

	return statements, nil
}

// ParseFile returns the transactions of every statement in r.
func (p *Parser) ParseFile(ctx context.Context, r io.Reader) ([]model.Transaction, error) {
	statements, err := p.Parse(ctx, r)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	for _, s := range statements {
		transactions = append(transactions, s.Transactions...)
	}
	return transactions, nil
}

func (p *Parser) statement(accountNumber string, list *ofxgo.TransactionList) Statement {
	stmt := Statement{AccountNumber: accountNumber}
	if list == nil {
		return stmt
	}

	for _, ofxTx := range list.Transactions {
		txn, err := p.convertTransaction(ofxTx)
		if err != nil {
			slog.Warn("Skipping OFX transaction",
				"account", accountNumber,
				"fitid", string(ofxTx.FiTID),
				"error", err)
			continue
		}
		stmt.Transactions = append(stmt.Transactions, txn)
	}
	return stmt
}

// convertTransaction converts an OFX transaction to our model. OFX amounts
// are already signed with debits negative.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction) (model.Transaction, error) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(4))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}
	if ofxTx.DtPosted.IsZero() {
		return model.Transaction{}, fmt.Errorf("missing posted date")
	}

	reference := string(ofxTx.RefNum)
	if reference == "" {
		reference = string(ofxTx.CheckNum)
	}

	return model.Transaction{
		Date:        ofxTx.DtPosted.Time,
		Amount:      amount,
		Type:        transactionType(ofxTx.TrnType.String()),
		Details:     MerchantName(ofxTx),
		Particulars: strings.TrimSpace(string(ofxTx.Memo)),
		Reference:   reference,
		ExternalID:  string(ofxTx.FiTID),
	}, nil
}

func transactionType(ofxType string) string {
	if t, ok := trnTypes[strings.ToUpper(ofxType)]; ok {
		return t
	}
	return strings.ToLower(ofxType)
}

// MerchantName picks the cleanest merchant text from an OFX transaction.
func MerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	return strings.TrimSpace(leadingDateRegex.ReplaceAllString(name, ""))
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "", "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
