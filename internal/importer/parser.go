package importer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies an intent by the direction money moves.
type Kind string

const (
	Credit Kind = "credit"
	Debit  Kind = "debit"
)

// Intent is one parsed line: a description, an amount and a direction.
type Intent struct {
	Description string
	Amount      decimal.Decimal
	Kind        Kind
}

// ParseResult holds the intents in input order and the number of non-blank
// lines that did not match the expected shape or carried a zero amount.
type ParseResult struct {
	Intents []Intent
	Skipped int
}

var (
	linePattern = regexp.MustCompile(`^(.+?)\s*[—–-]\s*\$?\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{2}))?\s*$`)

	creditKeywords = []string{
		"payment", "payout", "income", "deposit", "refund", "interest",
		"dividend", "settlement", "endorsement", "sponsorship", "collaboration", "brand",
	}
)

// Parse reads lines shaped like "Description — $1,234.56". Unmatched lines
// are skipped rather than reported as errors.
func Parse(text string) ParseResult {
	result := ParseResult{Intents: make([]Intent, 0)}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}
		intent, ok := parseLine(line)
		if !ok {
			result.Skipped++
			continue
		}
		result.Intents = append(result.Intents, intent)
	}
	return result
}

func parseLine(line string) (Intent, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Intent{}, false
	}
	description := strings.TrimSpace(m[1])
	if description == "" {
		return Intent{}, false
	}
	digits := strings.ReplaceAll(m[2], ",", "")
	if m[3] != "" {
		digits += "." + m[3]
	}
	amount, err := decimal.NewFromString(digits)
	if err != nil || !amount.IsPositive() {
		return Intent{}, false
	}
	return Intent{Description: description, Amount: amount, Kind: classify(description)}, true
}

func classify(description string) Kind {
	lower := strings.ToLower(description)
	for _, kw := range creditKeywords {
		if strings.Contains(lower, kw) {
			return Credit
		}
	}
	return Debit
}
