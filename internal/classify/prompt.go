package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"khata/internal/core"
)

// BuildPrompt renders the structured classification prompt sent to the model
// provider. The model is instructed to answer with a single JSON object
// carrying exactly the seven result fields.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Classify this SMS as expense transaction and extract details.\n\n")
	b.WriteString("SMS: " + text + "\n\n")
	b.WriteString("Task: Analyze if this is an expense transaction. Extract amount, payment mode, bank, account, category, and receiver.\n\n")
	b.WriteString("Response format: JSON only\n")
	b.WriteString("{\n")
	b.WriteString("  \"IsExpense\": \"Yes\" or \"No\",\n")
	b.WriteString("  \"Amount\": number or null,\n")
	b.WriteString("  \"Mode\": \"Credit Card\" or \"Debit Card\" or \"Online\" or \"Cash\" or null,\n")
	b.WriteString("  \"Bank\": \"bank name\" or null,\n")
	b.WriteString("  \"Account\": \"account number\" or null,\n")
	b.WriteString("  \"Category\": \"Shopping\" or \"Food\" or \"Transport\" or \"Entertainment\" or \"Healthcare\" or \"Utilities\" or \"Cash\" or \"Others\" or null,\n")
	b.WriteString("  \"Receiver\": \"receiver name\" or null\n")
	b.WriteString("}\n\n")
	b.WriteString("Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n\n")
	b.WriteString("Classification:")
	return b.String()
}

var requiredFields = []string{
	"IsExpense", "Amount", "Mode", "Bank", "Account", "Category", "Receiver",
}

// ParseProviderResponse validates a raw model response and converts it into
// a ClassificationResult. Any missing field, malformed JSON, or value outside
// the enum sets is an error; the caller falls back to Extract.
func ParseProviderResponse(raw string) (core.ClassificationResult, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return core.ClassificationResult{}, fmt.Errorf("empty provider response")
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return core.ClassificationResult{}, fmt.Errorf("unmarshal provider response: %w", err)
	}
	for _, field := range requiredFields {
		if _, ok := payload[field]; !ok {
			return core.ClassificationResult{}, fmt.Errorf("provider response missing field %q", field)
		}
	}

	isExpense, err := stringField(payload, "IsExpense")
	if err != nil {
		return core.ClassificationResult{}, err
	}
	switch strings.ToLower(strings.TrimSpace(isExpense)) {
	case "no":
		// Ignore whatever else the model produced: a non-expense result is
		// all-empty by contract.
		return core.ClassificationResult{}, nil
	case "yes":
	default:
		return core.ClassificationResult{}, fmt.Errorf("provider response field IsExpense = %q", isExpense)
	}

	result := core.ClassificationResult{IsExpense: true}

	amount, err := numberField(payload, "Amount")
	if err != nil {
		return core.ClassificationResult{}, err
	}
	if amount < 0 {
		return core.ClassificationResult{}, fmt.Errorf("provider response has negative amount %v", amount)
	}
	result.Amount = core.Money{Paise: int64(amount*100 + 0.5)}

	modeStr, err := stringField(payload, "Mode")
	if err != nil {
		return core.ClassificationResult{}, err
	}
	result.Mode = core.ModeUnknown
	if modeStr != "" {
		mode, ok := core.ParseMode(modeStr)
		if !ok {
			return core.ClassificationResult{}, fmt.Errorf("provider response has unknown mode %q", modeStr)
		}
		result.Mode = mode
	}

	categoryStr, err := stringField(payload, "Category")
	if err != nil {
		return core.ClassificationResult{}, err
	}
	result.Category = core.CategoryOthers
	if categoryStr != "" {
		category, ok := core.ParseCategory(categoryStr)
		if !ok {
			return core.ClassificationResult{}, fmt.Errorf("provider response has unknown category %q", categoryStr)
		}
		result.Category = category
	}

	if result.Bank, err = stringField(payload, "Bank"); err != nil {
		return core.ClassificationResult{}, err
	}
	if result.Account, err = stringField(payload, "Account"); err != nil {
		return core.ClassificationResult{}, err
	}
	result.Account = strings.ToUpper(result.Account)
	if result.Receiver, err = stringField(payload, "Receiver"); err != nil {
		return core.ClassificationResult{}, err
	}

	return result, nil
}

// stringField returns the field as a string; JSON null maps to "".
func stringField(payload map[string]json.RawMessage, key string) (string, error) {
	raw := payload[key]
	if string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("provider response field %q is not a string: %w", key, err)
	}
	return strings.TrimSpace(s), nil
}

// numberField returns the field as a float; JSON null maps to 0.
func numberField(payload map[string]json.RawMessage, key string) (float64, error) {
	raw := payload[key]
	if string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("provider response field %q is not a number: %w", key, err)
	}
	return f, nil
}

// cleanModelJSON strips markdown fences and surrounding chatter that models
// emit even when told not to, keeping the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			return strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
