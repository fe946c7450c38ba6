// Package classify turns raw bank/payment notification text into structured
// classification results. The Classifier tries an optional model provider
// first; the rule-based Extract function is the deterministic fallback that
// guarantees a well-formed result on every path.
package classify

import (
	"regexp"
	"strings"

	"khata/internal/core"
)

// Promotional keywords suppress classification outright: marketing messages
// must never be counted as spend, even when they also contain words like
// "paid".
var promotionalKeywords = []string{
	"offer", "loan", "apply", "click", "link", "promo", "deal",
	"discount", "save", "limited time", "validity",
}

// A message must carry at least one expense signal to classify as spend.
var expenseSignals = []string{
	"spent", "debited", "withdrawn", "paid", "sent", "transferred",
	"purchase", "payment", "transaction", "deducted", "charged",
}

// Ordered bank list; the first substring hit wins.
var banks = []string{
	"ICICI", "HDFC", "SBI", "Axis", "Kotak", "PNB", "BOB", "Canara",
	"Paytm", "PhonePe", "GPay",
}

// Known merchants, canonical casing. Checked before the " at " heuristic.
var merchants = []string{
	"Amazon", "Flipkart", "Swiggy", "Zomato", "Uber", "Ola",
	"Reliance", "Netflix", "Paytm", "PhonePe",
}

// categoryKeywords is scanned in core.Categories order and the LAST matching
// category wins: a later category overrides an earlier hit. This mirrors the
// shipped behavior of the extraction rules and is relied on by stored data,
// so it stays even though "first match" might look more natural.
var categoryKeywords = []struct {
	category core.Category
	keywords []string
}{
	{core.CategoryShopping, []string{"amazon", "flipkart", "myntra", "mall", "mart", "store", "shopping"}},
	{core.CategoryFood, []string{"swiggy", "zomato", "restaurant", "cafe", "food", "dining", "grocery"}},
	{core.CategoryTransport, []string{"uber", "ola", "rapido", "fuel", "petrol", "metro", "irctc", "parking"}},
	{core.CategoryEntertainment, []string{"netflix", "spotify", "hotstar", "bookmyshow", "movie", "game"}},
	{core.CategoryHealthcare, []string{"pharmacy", "hospital", "apollo", "clinic", "medicine", "medical"}},
	{core.CategoryUtilities, []string{"electricity", "recharge", "broadband", "postpaid", "dth", "bill"}},
	{core.CategoryCash, []string{"atm", "withdrawn", "cash"}},
}

var (
	amountRe  = regexp.MustCompile(`(?i)(?:INR|Rs\.?|₹)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	accountRe = regexp.MustCompile(`(?i)[x*]{2,}([0-9]{3,4})\b`)
)

// Extract classifies text with deterministic keyword and regex rules. It is
// a total function: the worst case is the empty non-expense result, never an
// error.
func Extract(text string) core.ClassificationResult {
	lower := strings.ToLower(text)

	for _, kw := range promotionalKeywords {
		if strings.Contains(lower, kw) {
			return core.ClassificationResult{}
		}
	}

	expense := false
	for _, kw := range expenseSignals {
		if strings.Contains(lower, kw) {
			expense = true
			break
		}
	}
	if !expense {
		return core.ClassificationResult{}
	}

	return core.ClassificationResult{
		IsExpense: true,
		Amount:    extractAmount(text),
		Mode:      extractMode(lower),
		Bank:      extractBank(lower),
		Account:   extractAccount(text),
		Category:  extractCategory(lower),
		Receiver:  extractReceiver(text, lower),
	}
}

func extractAmount(text string) core.Money {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return core.Money{}
	}
	paise, err := core.ParseAmountToPaise(m[1])
	if err != nil {
		return core.Money{}
	}
	return core.Money{Paise: paise}
}

func extractBank(lower string) string {
	for _, bank := range banks {
		if strings.Contains(lower, strings.ToLower(bank)) {
			return bank
		}
	}
	return ""
}

func extractAccount(text string) string {
	m := accountRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return "XX" + m[1]
}

func extractMode(lower string) core.PaymentMode {
	switch {
	case strings.Contains(lower, "card") && strings.Contains(lower, "credit"):
		return core.ModeCreditCard
	case strings.Contains(lower, "card"):
		return core.ModeDebitCard
	case strings.Contains(lower, "upi"),
		strings.Contains(lower, "online"),
		strings.Contains(lower, "net banking"):
		return core.ModeOnline
	case strings.Contains(lower, "atm"):
		return core.ModeCash
	default:
		return core.ModeUnknown
	}
}

func extractCategory(lower string) core.Category {
	category := core.CategoryOthers
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				category = entry.category
				break
			}
		}
	}
	return category
}

func extractReceiver(text, lower string) string {
	for _, merchant := range merchants {
		if strings.Contains(lower, strings.ToLower(merchant)) {
			return merchant
		}
	}

	// Heuristic: the token right after " at " is often the merchant name.
	idx := strings.Index(lower, " at ")
	if idx == -1 {
		return ""
	}
	rest := strings.Fields(text[idx+len(" at "):])
	if len(rest) == 0 {
		return ""
	}
	token := strings.Trim(rest[0], ".,;:!")
	if len(token) <= 2 {
		return ""
	}
	return titleCase(token)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
