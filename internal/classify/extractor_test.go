package classify

import (
	"testing"

	"khata/internal/core"
)

func TestExtractFullMessage(t *testing.T) {
	text := "HDFC Bank: Rs 2,450.00 debited from A/c XX8901 on 18-Sep-25 via UPI to SWIGGY. Avl Bal: Rs 12,340.50"

	got := Extract(text)

	want := core.ClassificationResult{
		IsExpense: true,
		Amount:    core.Money{Paise: 245000},
		Mode:      core.ModeOnline,
		Bank:      "HDFC",
		Account:   "XX8901",
		Category:  core.CategoryFood,
		Receiver:  "Swiggy",
	}
	if got != want {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtractPromotionalSuppression(t *testing.T) {
	tests := []string{
		"Dear Customer, Rs. 20 Lacs HDFC Bank Personal Loan at reduced rates. Apply now!",
		"loan offer, apply now, limited time - you already paid less elsewhere",
		"Exclusive DEAL: 50% discount on electronics. Click the link!",
	}
	for _, text := range tests {
		got := Extract(text)
		if got != (core.ClassificationResult{}) {
			t.Errorf("Extract(%q) = %+v, want empty non-expense result", text, got)
		}
	}
}

func TestExtractNoExpenseSignal(t *testing.T) {
	got := Extract("Your OTP for login is 482910. Do not share it with anyone.")
	if got.IsExpense {
		t.Errorf("Extract() classified a no-signal message as expense: %+v", got)
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int64
	}{
		{"INR prefix", "INR 904.00 spent using ICICI Bank Card XX7003", 90400},
		{"Rs dot prefix", "Rs. 500 debited from your account", 50000},
		{"rupee symbol", "₹1,250 paid via UPI", 125000},
		{"first match wins", "Rs 100 debited. Avl Bal: Rs 9,900", 10000},
		{"no amount still expense", "Amount debited from your account", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if !got.IsExpense {
				t.Fatalf("Extract(%q) not classified as expense", tt.text)
			}
			if got.Amount.Paise != tt.want {
				t.Errorf("amount = %d paise, want %d", got.Amount.Paise, tt.want)
			}
		})
	}
}

func TestExtractBankOrder(t *testing.T) {
	// ICICI precedes HDFC in the bank list; list order breaks the tie.
	got := Extract("Payment alert: HDFC and ICICI joint notice, Rs 10 charged")
	if got.Bank != "ICICI" {
		t.Errorf("bank = %q, want ICICI (list order tie-break)", got.Bank)
	}
}

func TestExtractAccount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"x mask", "spent from card xx7003 today", "XX7003"},
		{"star mask", "debited from A/c **1234", "XX1234"},
		{"long mask", "payment from XXXX890", "XX890"},
		{"no mask", "payment of Rs 10 done", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if got.Account != tt.want {
				t.Errorf("account = %q, want %q", got.Account, tt.want)
			}
		})
	}
}

func TestExtractMode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want core.PaymentMode
	}{
		{"credit card", "INR 904 spent using ICICI Bank Credit Card", core.ModeCreditCard},
		{"card without credit", "Rs 200 spent on your Card xx1111", core.ModeDebitCard},
		{"upi", "Rs 99 paid via UPI", core.ModeOnline},
		{"net banking", "Rs 99 transferred via net banking", core.ModeOnline},
		{"atm", "Rs 2000 withdrawn at ATM", core.ModeCash},
		{"nothing matches", "Rs 50 deducted for services", core.ModeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if got.Mode != tt.want {
				t.Errorf("mode = %q, want %q", got.Mode, tt.want)
			}
		})
	}
}

func TestExtractCategoryLastMatchWins(t *testing.T) {
	// Both Food (restaurant) and Cash (atm) keywords appear; Cash sits later
	// in the scan order, so it wins.
	got := Extract("Rs 500 withdrawn at ATM near the restaurant")
	if got.Category != core.CategoryCash {
		t.Errorf("category = %q, want %q (last match wins)", got.Category, core.CategoryCash)
	}
}

func TestExtractCategoryDefault(t *testing.T) {
	got := Extract("Rs 75 deducted for annual maintenance")
	if got.Category != core.CategoryOthers {
		t.Errorf("category = %q, want Others", got.Category)
	}
}

func TestExtractReceiver(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"merchant list uppercase input", "Rs 300 paid to ZOMATO via UPI", "Zomato"},
		{"at heuristic", "Rs 120 spent at Starbucks today", "Starbucks"},
		{"at heuristic short token skipped", "Rs 120 spent at it", ""},
		{"no receiver", "Rs 120 debited from account", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if got.Receiver != tt.want {
				t.Errorf("receiver = %q, want %q", got.Receiver, tt.want)
			}
		})
	}
}

func TestExtractAlwaysValid(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"Rs",
		"debited",
		"!!!! ₹₹₹ ****",
		"spent spent spent Rs abc",
	}
	for _, text := range inputs {
		got := Extract(text)
		if err := got.Validate(); err != nil {
			t.Errorf("Extract(%q) produced invalid result %+v: %v", text, got, err)
		}
	}
}
