package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"peer_valuation/pkg/core/utils"
	"peer_valuation/pkg/models"
)

// UniverseColumns is the CSV header written by WriteUniverseCSV.
var UniverseColumns = []string{
	"ticker", "name", "description", "sector", "industry",
	"revenue_base", "revenue_growth", "ebitda_margin", "capex_pct",
	"depreciation_pct", "nwc_pct", "tax_rate", "ev_ebitda", "pe_ratio", "earnings",
}

// FileUniverse is a peer universe loaded from a CSV or JSON file.
type FileUniverse struct {
	Path      string
	Companies models.PeerSet
}

var _ Provider = (*FileUniverse)(nil)

// LoadUniverse reads a universe file. The format follows the extension:
// .json / .hjson are decoded tolerantly, anything else is read as CSV.
func LoadUniverse(path string) (*FileUniverse, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe %s: %w", path, err)
	}

	var set models.PeerSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".hjson":
		if _, err := utils.SmartParse(string(raw), &set); err != nil {
			return nil, fmt.Errorf("failed to parse universe %s: %w", path, err)
		}
	default:
		set, err = ReadUniverseCSV(strings.NewReader(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse universe %s: %w", path, err)
		}
	}

	return &FileUniverse{Path: path, Companies: dedupe(set)}, nil
}

// Lookup finds a company by name or ticker. The returned company is a copy.
func (u *FileUniverse) Lookup(ctx context.Context, query string) (*models.Company, error) {
	c, ok := u.Companies.Find(query)
	if !ok {
		return nil, fmt.Errorf("company %q not in universe: %w", query, models.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// Peers returns copies of every company, so a run can attach vectors freely.
func (u *FileUniverse) Peers() models.PeerSet {
	out := make(models.PeerSet, 0, len(u.Companies))
	for _, c := range u.Companies {
		cp := *c
		cp.EmbeddingVector = nil
		out = append(out, &cp)
	}
	return out
}

// ReadUniverseCSV parses a universe table with a header row. Column names are
// case-insensitive; "net_income" is accepted for "earnings". Blank cells are nil.
func ReadUniverseCSV(r io.Reader) (models.PeerSet, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "net_income" {
			name = "earnings"
		}
		cols[name] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("universe header has no name column: %w", models.ErrInvalidInput)
	}

	var set models.PeerSet
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := csvRow{cols: cols, record: record}
		c := &models.Company{
			Name:        row.str("name"),
			Ticker:      row.str("ticker"),
			Description: row.str("description"),
			Sector:      row.str("sector"),
			Industry:    row.str("industry"),
		}
		if c.Name == "" {
			continue
		}

		fields := []struct {
			col string
			dst **float64
		}{
			{"revenue_base", &c.RevenueBase},
			{"revenue_growth", &c.RevenueGrowth},
			{"ebitda_margin", &c.EBITDAMargin},
			{"capex_pct", &c.CapexPct},
			{"depreciation_pct", &c.DepreciationPct},
			{"nwc_pct", &c.NWCPct},
			{"tax_rate", &c.TaxRate},
			{"ev_ebitda", &c.EVEBITDA},
			{"pe_ratio", &c.PERatio},
			{"earnings", &c.Earnings},
		}
		for _, f := range fields {
			v, err := row.float(f.col)
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, f.col, err)
			}
			*f.dst = v
		}
		set = append(set, c)
	}
	return set, nil
}

// WriteUniverseCSV writes companies in the UniverseColumns layout.
func WriteUniverseCSV(w io.Writer, set models.PeerSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(UniverseColumns); err != nil {
		return err
	}
	for _, c := range set {
		if c == nil {
			continue
		}
		record := []string{
			c.Ticker, c.Name, c.Description, c.Sector, c.Industry,
			formatOptional(c.RevenueBase), formatOptional(c.RevenueGrowth), formatOptional(c.EBITDAMargin),
			formatOptional(c.CapexPct), formatOptional(c.DepreciationPct), formatOptional(c.NWCPct),
			formatOptional(c.TaxRate), formatOptional(c.EVEBITDA), formatOptional(c.PERatio),
			formatOptional(c.Earnings),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type csvRow struct {
	cols   map[string]int
	record []string
}

func (r csvRow) str(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) float(col string) (*float64, error) {
	s := r.str(col)
	switch strings.ToLower(s) {
	case "", "nan", "n/a", "na", "null", "none", "-":
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number: %w", s, models.ErrInvalidInput)
	}
	return &v, nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// dedupe keeps the first company per normalized name.
func dedupe(set models.PeerSet) models.PeerSet {
	seen := make(map[string]bool, len(set))
	out := make(models.PeerSet, 0, len(set))
	for _, c := range set {
		if c == nil || c.Key() == "" || seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		out = append(out, c)
	}
	return out
}
