package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"peer_valuation/pkg/models"
)

// descriptionWidth truncates descriptions in the peer table.
const descriptionWidth = 100

// WritePeersCSV writes the peer similarity table in rank order.
func WritePeersCSV(w io.Writer, rec Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"peer_name", "similarity", "ev_ebitda", "pe_ratio", "description"}); err != nil {
		return err
	}
	for _, p := range rec.TopPeers {
		desc := []rune(p.Description)
		if len(desc) > descriptionWidth {
			desc = desc[:descriptionWidth]
		}
		row := []string{
			p.PeerName,
			strconv.FormatFloat(p.Similarity, 'f', 4, 64),
			optional(p.EVEBITDA, 2),
			optional(p.PERatio, 2),
			string(desc),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSensitivityCSV writes the grid with WACC row labels and terminal growth
// column labels, both ascending. Undefined cells are blank.
func WriteSensitivityCSV(w io.Writer, m *models.SensitivityMatrix) error {
	if m == nil {
		return fmt.Errorf("no sensitivity matrix: %w", models.ErrInvalidInput)
	}
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(m.TerminalGrowthValues)+1)
	header = append(header, "wacc \\ terminal_growth")
	for _, g := range m.TerminalGrowthValues {
		header = append(header, Percent(g))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, wacc := range m.WACCValues {
		row := make([]string, 0, len(header))
		row = append(row, Percent(wacc))
		for j := range m.TerminalGrowthValues {
			var cell *float64
			if i < len(m.ValuationMatrix) && j < len(m.ValuationMatrix[i]) {
				cell = m.ValuationMatrix[i][j]
			}
			row = append(row, optional(cell, 2))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Percent formats a rate as "8.00%".
func Percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

func optional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
