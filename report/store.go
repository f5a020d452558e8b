// Package report persists run artifacts: raw search dumps, one file per
// lead, the aggregate JSON report and flattened CSV/XLSX exports.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
)

const (
	reportFile = "lead_generation_report.json"
	csvFile    = "leads.csv"
	xlsxFile   = "leads.xlsx"
	sheetName  = "Leads"

	maxRawName = 80
)

// Columns of the flattened lead export.
var Columns = []string{
	"Company", "Email", "Phone", "Website", "Key_Person", "Title",
	"Industry", "Location", "Pain_Points", "Pitch_Angle", "Source_URL", "Score",
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Sanitize replaces every non-alphanumeric byte with '_' and cuts the
// result to max bytes when max > 0.
func Sanitize(s string, max int) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if max > 0 && len(s) > max {
		s = s[:max]
	}
	return s
}

// Store writes artifacts under the configured directories. It is safe
// for concurrent use.
type Store struct {
	cfg config.OutputConfig

	mu   sync.Mutex
	now  func() time.Time
	rand func() string
}

// NewStore creates the output directories and returns a Store.
func NewStore(cfg config.OutputConfig) (*Store, error) {
	for _, dir := range []string{cfg.RawDir, cfg.LeadsDir, cfg.ResultsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("report: create %s: %w", dir, err)
		}
	}
	return &Store{cfg: cfg, now: time.Now, rand: randSuffix}, nil
}

// RecordSearch writes the raw results of one query as title, URL and
// snippet lines, one blank line between results.
func (s *Store) RecordSearch(query string, results []models.SearchResult) error {
	if s.cfg.RawDir == "" {
		return nil
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, r.Title+"\n"+r.URL+"\n"+r.Snippet)
	}
	name := "results_" + Sanitize(query, maxRawName) + ".txt"
	return os.WriteFile(filepath.Join(s.cfg.RawDir, name), []byte(strings.Join(blocks, "\n\n")), 0o644)
}

// SaveLead writes lead as indented JSON and returns the file path.
func (s *Store) SaveLead(lead *models.LeadRecord) (string, error) {
	if s.cfg.LeadsDir == "" {
		return "", nil
	}
	company := Sanitize(lead.Company, 0)
	if company == "" {
		company = "unknown"
	}
	s.mu.Lock()
	name := fmt.Sprintf("lead_%d_%s_%s.json", s.now().UnixMilli(), s.rand(), company)
	s.mu.Unlock()

	body, err := json.MarshalIndent(lead, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal lead: %w", err)
	}
	path := filepath.Join(s.cfg.LeadsDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("report: write lead: %w", err)
	}
	return path, nil
}

// WriteAll writes the JSON report and the flattened exports concurrently.
func (s *Store) WriteAll(ctx context.Context, rep *models.RunReport) error {
	if s.cfg.ResultsDir == "" {
		return nil
	}
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return s.WriteReport(rep) })
	g.Go(func() error { return s.WriteCSV(rep.Leads) })
	if s.cfg.XLSX {
		g.Go(func() error { return s.WriteXLSX(rep.Leads) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("report: artifacts written", "dir", s.cfg.ResultsDir, "leads", len(rep.Leads))
	return nil
}

// WriteReport writes the aggregate run report.
func (s *Store) WriteReport(rep *models.RunReport) error {
	body, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal report: %w", err)
	}
	return os.WriteFile(filepath.Join(s.cfg.ResultsDir, reportFile), body, 0o644)
}

// WriteCSV writes one row per lead with the Columns header.
func (s *Store) WriteCSV(leads []models.LeadRecord) error {
	f, err := os.Create(filepath.Join(s.cfg.ResultsDir, csvFile))
	if err != nil {
		return fmt.Errorf("report: create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for i := range leads {
		if err := w.Write(Row(&leads[i])); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return f.Close()
}

// WriteXLSX writes the same table as WriteCSV to a workbook.
func (s *Store) WriteXLSX(leads []models.LeadRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("report: xlsx sheet: %w", err)
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("report: xlsx header: %w", err)
	}
	for i := range leads {
		row := Row(&leads[i])
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cells[len(cells)-1] = leads[i].Provenance.Score
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("report: xlsx row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(filepath.Join(s.cfg.ResultsDir, xlsxFile)); err != nil {
		return fmt.Errorf("report: save xlsx: %w", err)
	}
	return nil
}

// Row flattens lead into the Columns order. Missing values read "N/A".
func Row(lead *models.LeadRecord) []string {
	var person models.KeyPerson
	if len(lead.KeyPeople) > 0 {
		person = lead.KeyPeople[0]
	}
	return []string{
		na(lead.Company),
		na(first(lead.Contacts.Emails)),
		na(first(lead.Contacts.Phones)),
		na(lead.Contacts.Website),
		na(person.Name),
		na(person.Title),
		na(lead.BusinessInfo.Industry),
		na(lead.BusinessInfo.Location),
		na(strings.Join(lead.PainPoints, "; ")),
		na(lead.PitchAngle),
		lead.Provenance.Source.URL,
		fmt.Sprintf("%g", lead.Provenance.Score),
	}
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func na(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randSuffix() string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}
