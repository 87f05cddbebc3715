package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"peer_valuation/pkg/core/utils"
)

const unavailable = "n/a"

func money(v *float64) string {
	if v == nil {
		return unavailable
	}
	return fmt.Sprintf("$%.2fM", *v)
}

func multiple(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fx", *v)
}

// RenderSummary prints the headline values, peers and sensitivity grid as
// terminal tables.
func RenderSummary(w io.Writer, rec Record) {
	fmt.Fprintln(w, text.Bold.Sprint("Valuation: "+rec.CompanyName))

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleLight)
	summary.AppendRow(table.Row{"DCF value", money(rec.DCFValue)})
	summary.AppendRow(table.Row{"Peer value", money(rec.PeerValue)})
	summary.AppendRow(table.Row{"Combined", money(rec.CombinedValuation)})
	if rec.PeerResult != nil && rec.PeerResult.MedianMultiple != nil {
		summary.AppendRow(table.Row{"Median " + string(rec.PeerResult.MultipleType), multiple(rec.PeerResult.MedianMultiple)})
	}
	if rec.TerminalInfo != nil {
		summary.AppendRow(table.Row{"Terminal value (" + rec.TerminalInfo.Method + ")", fmt.Sprintf("$%.2fM", rec.TerminalInfo.TerminalValue)})
	}
	if rec.ExitTerminalValue != nil {
		summary.AppendRow(table.Row{"Exit terminal value", money(rec.ExitTerminalValue)})
	}
	summary.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	summary.Render()

	if len(rec.TopPeers) > 0 {
		fmt.Fprintln(w)
		peers := table.NewWriter()
		peers.SetOutputMirror(w)
		peers.SetStyle(table.StyleLight)
		peers.SetTitle("Top peers")
		peers.AppendHeader(table.Row{"#", "Peer", "Similarity", "EV/EBITDA", "P/E"})
		for i, p := range rec.TopPeers {
			peers.AppendRow(table.Row{i + 1, p.PeerName, fmt.Sprintf("%.4f", p.Similarity), multiple(p.EVEBITDA), multiple(p.PERatio)})
		}
		peers.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		})
		peers.Render()
	}

	if m := rec.Sensitivity; m != nil {
		fmt.Fprintln(w)
		grid := table.NewWriter()
		grid.SetOutputMirror(w)
		grid.SetStyle(table.StyleLight)
		grid.SetTitle("Sensitivity (rows: WACC, columns: terminal growth)")
		header := table.Row{""}
		for _, g := range m.TerminalGrowthValues {
			header = append(header, Percent(g))
		}
		grid.AppendHeader(header)
		for i, wacc := range m.WACCValues {
			row := table.Row{Percent(wacc)}
			for _, cell := range m.ValuationMatrix[i] {
				if cell == nil {
					row = append(row, "-")
				} else {
					row = append(row, fmt.Sprintf("%.2f", *cell))
				}
			}
			grid.AppendRow(row)
		}
		grid.Render()
	}

	for _, warning := range rec.Warnings {
		fmt.Fprintln(w, text.FgYellow.Sprint("warning: ")+warning)
	}
}

// RenderMarkdown builds a markdown report of the record.
func RenderMarkdown(rec Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Valuation: %s\n\n", rec.CompanyName)
	if rec.Ticker != "" {
		fmt.Fprintf(&b, "Ticker: **%s**  \n", rec.Ticker)
	}
	fmt.Fprintf(&b, "Run `%s` generated %s\n\n", rec.RunID, rec.GeneratedAt.Format("2006-01-02 15:04 MST"))

	b.WriteString("| Signal | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| DCF | %s |\n", money(rec.DCFValue))
	fmt.Fprintf(&b, "| Peer multiples | %s |\n", money(rec.PeerValue))
	fmt.Fprintf(&b, "| **Combined** | **%s** |\n\n", money(rec.CombinedValuation))

	if len(rec.TopPeers) > 0 {
		b.WriteString("## Peers\n\n| # | Peer | Similarity | EV/EBITDA | P/E |\n|---|---|---:|---:|---:|\n")
		for i, p := range rec.TopPeers {
			fmt.Fprintf(&b, "| %d | %s | %.4f | %s | %s |\n", i+1, escapeCell(p.PeerName), p.Similarity, multiple(p.EVEBITDA), multiple(p.PERatio))
		}
		b.WriteString("\n")
	}

	if t := rec.TerminalInfo; t != nil {
		b.WriteString("## Terminal value\n\n")
		fmt.Fprintf(&b, "- Method: %s\n- Final-year FCF: $%.2fM\n- Terminal value: $%.2fM (discounted $%.2fM)\n", t.Method, t.FinalFCF, t.TerminalValue, t.DiscountedTerminalValue)
		if rec.ExitTerminalValue != nil {
			fmt.Fprintf(&b, "- Exit-multiple terminal value: %s\n", money(rec.ExitTerminalValue))
		}
		b.WriteString("\n")
	}

	if m := rec.Sensitivity; m != nil {
		b.WriteString("## Sensitivity\n\n| WACC \\ g |")
		for _, g := range m.TerminalGrowthValues {
			fmt.Fprintf(&b, " %s |", Percent(g))
		}
		b.WriteString("\n|---|" + strings.Repeat("---:|", len(m.TerminalGrowthValues)) + "\n")
		for i, wacc := range m.WACCValues {
			fmt.Fprintf(&b, "| %s |", Percent(wacc))
			for _, cell := range m.ValuationMatrix[i] {
				if cell == nil {
					b.WriteString(" - |")
				} else {
					fmt.Fprintf(&b, " %.2f |", *cell)
				}
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(rec.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range rec.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// RenderHTML renders the markdown report as an HTML fragment.
func RenderHTML(rec Record) (string, error) {
	return utils.MarkdownToHTML(RenderMarkdown(rec))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

