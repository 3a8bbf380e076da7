package domain

import "time"

// FeeModel selects how a method's processing fee is computed.
type FeeModel string

const (
	FeeModelFlat    FeeModel = "flat"
	FeeModelPercent FeeModel = "percent"
)

// MethodConfig is the static policy data for one payout method,
// consulted by creation validation and the mock processor.
type MethodConfig struct {
	Method         PayoutMethod
	DisplayName    string
	SuccessRate    float64 // 0..1, sampled by the mock processor
	FeeModel       FeeModel
	FeeAmount      int64 // Flat fee in cents (FeeModelFlat)
	FeeBps         int64 // Fee in basis points of amount (FeeModelPercent)
	MinAmount      int64 // Minimum payout amount in cents
	MinLatency     time.Duration
	MaxLatency     time.Duration
	ProcessingTime string // Human-readable estimate for display
}

// Fee computes the processing fee for the given amount in cents.
func (m MethodConfig) Fee(amount int64) int64 {
	if m.FeeModel == FeeModelPercent {
		return amount * m.FeeBps / 10000
	}
	return m.FeeAmount
}

// DefaultMethods returns the built-in method policy table.
func DefaultMethods() map[PayoutMethod]MethodConfig {
	return map[PayoutMethod]MethodConfig{
		MethodStripeBank: {
			Method:         MethodStripeBank,
			DisplayName:    "Stripe Bank Transfer",
			SuccessRate:    0.95,
			FeeModel:       FeeModelFlat,
			FeeAmount:      25, // $0.25 per transfer
			MinAmount:      1000,
			MinLatency:     3 * time.Second,
			MaxLatency:     10 * time.Second,
			ProcessingTime: "2-3 business days",
		},
		MethodPayPal: {
			Method:         MethodPayPal,
			DisplayName:    "PayPal Payout",
			SuccessRate:    0.90,
			FeeModel:       FeeModelPercent,
			FeeBps:         200, // 2% of amount
			MinAmount:      1000,
			MinLatency:     3 * time.Second,
			MaxLatency:     10 * time.Second,
			ProcessingTime: "1-2 business days",
		},
		MethodCheck: {
			Method:         MethodCheck,
			DisplayName:    "Physical Check",
			SuccessRate:    0.98,
			FeeModel:       FeeModelFlat,
			FeeAmount:      500, // $5.00 per check
			MinAmount:      5000,
			MinLatency:     3 * time.Second,
			MaxLatency:     10 * time.Second,
			ProcessingTime: "7-10 business days",
		},
		MethodOther: {
			Method:         MethodOther,
			DisplayName:    "Other",
			SuccessRate:    0.85,
			FeeModel:       FeeModelFlat,
			FeeAmount:      100, // $1.00 flat
			MinAmount:      1000,
			MinLatency:     3 * time.Second,
			MaxLatency:     10 * time.Second,
			ProcessingTime: "3-5 business days",
		},
	}
}
