package models

import (
	"time"
)

// ForecastYear is one projected year of the simplified three-statement model.
type ForecastYear struct {
	Year         int     `json:"year"`
	Revenue      float64 `json:"revenue"`
	EBITDA       float64 `json:"ebitda"`
	Depreciation float64 `json:"depreciation"`
	EBIT         float64 `json:"ebit"`
	NOPAT        float64 `json:"nopat"`
	Capex        float64 `json:"capex"`
	ChangeInNWC  float64 `json:"change_in_nwc"`
	FCF          float64 `json:"fcf"`
}

// Terminal value methods.
const (
	TerminalPerpetuity = "perpetuity"
	TerminalExit       = "exit"
)

// TerminalValueInfo describes how the DCF terminal value was produced.
type TerminalValueInfo struct {
	Method                  string   `json:"method"`
	TerminalValue           float64  `json:"terminal_value"`
	DiscountedTerminalValue float64  `json:"discounted_terminal_value"`
	FinalFCF                float64  `json:"final_fcf"`
	ExitMultiple            *float64 `json:"exit_multiple"`
}

// SimilarityMatch pairs a peer with its cosine similarity to the target.
type SimilarityMatch struct {
	Company    *Company `json:"company"`
	Similarity float64  `json:"similarity"`
}

// MultipleType selects the peer multiple used for relative valuation.
type MultipleType string

const (
	MultipleEVEBITDA MultipleType = "ev_ebitda"
	MultiplePE       MultipleType = "pe_ratio"
)

// PeerMultipleResult is the outcome of applying a peer median multiple to the target.
// MedianMultiple, TargetMetric and ImpliedValue are either all set or all nil.
type PeerMultipleResult struct {
	MultipleType   MultipleType `json:"multiple_type"`
	MedianMultiple *float64     `json:"median_multiple"`
	TargetMetric   *float64     `json:"target_metric"`
	ImpliedValue   *float64     `json:"implied_value"`
	PeerCount      int          `json:"peer_count"`
}

// SensitivityMatrix holds enterprise values over a WACC x terminal growth grid.
// Rows follow WACCValues, columns follow TerminalGrowthValues; nil cells are undefined.
type SensitivityMatrix struct {
	WACCValues           []float64    `json:"wacc_values"`
	TerminalGrowthValues []float64    `json:"terminal_growth_values"`
	ValuationMatrix      [][]*float64 `json:"valuation_matrix"`
}

// ValuationResult is the full output of one pipeline run.
type ValuationResult struct {
	RunID             string              `json:"run_id"`
	CompanyName       string              `json:"company_name"`
	Ticker            string              `json:"ticker,omitempty"`
	DCFValue          *float64            `json:"dcf_value"`
	PeerValue         *float64            `json:"peer_value"`
	CombinedValuation *float64            `json:"combined_valuation"`
	TopPeers          []SimilarityMatch   `json:"top_peers"`
	PeerMultiple      *PeerMultipleResult `json:"peer_result,omitempty"`
	TerminalInfo      *TerminalValueInfo  `json:"terminal_info,omitempty"`
	ExitTerminalValue *float64            `json:"exit_terminal_value,omitempty"`
	Forecast          []ForecastYear      `json:"forecast,omitempty"`
	Sensitivity       *SensitivityMatrix  `json:"sensitivity_analysis,omitempty"`
	Warnings          []string            `json:"warnings,omitempty"`
	GeneratedAt       time.Time           `json:"generated_at"`
}
