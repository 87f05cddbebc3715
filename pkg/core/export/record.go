// Package export turns valuation results into records, files and reports.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/models"
)

// PeerRow is one peer in the flat output record.
type PeerRow struct {
	PeerName    string   `json:"peer_name"`
	Ticker      string   `json:"ticker,omitempty"`
	Similarity  float64  `json:"similarity"`
	EVEBITDA    *float64 `json:"ev_ebitda"`
	PERatio     *float64 `json:"pe_ratio"`
	Description string   `json:"-"`
}

// Record is the flat, serializable form of a valuation run.
type Record struct {
	RunID             string                     `json:"run_id"`
	CompanyName       string                     `json:"company_name"`
	Ticker            string                     `json:"ticker,omitempty"`
	DCFValue          *float64                   `json:"dcf_value"`
	PeerValue         *float64                   `json:"peer_value"`
	CombinedValuation *float64                   `json:"combined_valuation"`
	TopPeers          []PeerRow                  `json:"top_peers"`
	PeerResult        *models.PeerMultipleResult `json:"peer_result,omitempty"`
	TerminalInfo      *models.TerminalValueInfo  `json:"terminal_info,omitempty"`
	ExitTerminalValue *float64                   `json:"exit_terminal_value,omitempty"`
	Sensitivity       *models.SensitivityMatrix  `json:"sensitivity_analysis,omitempty"`
	Warnings          []string                   `json:"warnings,omitempty"`
	GeneratedAt       time.Time                  `json:"generated_at"`
}

// ToRecord flattens a result. Similarities are rounded to 4 decimals and
// peer multiples to 2.
func ToRecord(r *models.ValuationResult) Record {
	rec := Record{
		RunID:             r.RunID,
		CompanyName:       r.CompanyName,
		Ticker:            r.Ticker,
		DCFValue:          r.DCFValue,
		PeerValue:         r.PeerValue,
		CombinedValuation: r.CombinedValuation,
		TopPeers:          make([]PeerRow, 0, len(r.TopPeers)),
		PeerResult:        r.PeerMultiple,
		TerminalInfo:      r.TerminalInfo,
		ExitTerminalValue: r.ExitTerminalValue,
		Sensitivity:       r.Sensitivity,
		Warnings:          r.Warnings,
		GeneratedAt:       r.GeneratedAt,
	}
	for _, m := range r.TopPeers {
		if m.Company == nil {
			continue
		}
		rec.TopPeers = append(rec.TopPeers, PeerRow{
			PeerName:    m.Company.Name,
			Ticker:      m.Company.Ticker,
			Similarity:  calc.Round(m.Similarity, 4),
			EVEBITDA:    round2(m.Company.EVEBITDA),
			PERatio:     round2(m.Company.PERatio),
			Description: m.Company.Description,
		})
	}
	return rec
}

func round2(v *float64) *float64 {
	if v == nil || !calc.IsFinite(*v) {
		return nil
	}
	return models.Float(calc.Round2(*v))
}

// WriteJSON writes the record as indented JSON.
func WriteJSON(w io.Writer, rec Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// WriteFile creates path (and its directory) and fills it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
