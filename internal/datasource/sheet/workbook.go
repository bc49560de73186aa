package sheet

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/nhle/agency-dashboard/internal/model"
)

// onboardingSheet is the worksheet holding onboarding cards, if present.
const onboardingSheet = "onboarding"

// maxRows caps how many rows are read from a legacy .xls sheet.
const maxRows = 100000

// workbook is the parsed export: one row matrix per worksheet, keyed by the
// lowercased sheet name, plus the order sheets appeared in.
type workbook struct {
	sheets map[string][][]string
	order  []string
}

// rows returns the named sheet, or the first sheet when name is empty.
func (w *workbook) rows(name string) ([][]string, bool) {
	if name == "" {
		if len(w.order) == 0 {
			return nil, false
		}
		name = w.order[0]
	}
	rows, ok := w.sheets[strings.ToLower(strings.TrimSpace(name))]
	return rows, ok
}

// parseWorkbook decodes an XLSX or legacy XLS file. The format is chosen by
// the file name extension.
func parseWorkbook(data []byte, filename string) (*workbook, error) {
	wb := &workbook{sheets: make(map[string][][]string)}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("opening xls workbook: %w", err)
		}
		if book.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		for i := 0; i < book.NumSheets(); i++ {
			sheet := book.GetSheet(i)
			if sheet == nil {
				continue
			}
			var rows [][]string
			for r := 0; r <= int(sheet.MaxRow) && r < maxRows; r++ {
				row := sheet.Row(r)
				if row == nil {
					rows = append(rows, nil)
					continue
				}
				cells := make([]string, 0, row.LastCol()+1)
				for c := 0; c <= row.LastCol(); c++ {
					cells = append(cells, row.Col(c))
				}
				rows = append(rows, cells)
			}
			wb.add(sheet.Name, rows)
		}
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening xlsx workbook: %w", err)
		}
		defer func() { _ = file.Close() }()

		names := file.GetSheetList()
		if len(names) == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		for _, name := range names {
			rows, err := file.GetRows(name)
			if err != nil {
				return nil, fmt.Errorf("reading worksheet %q: %w", name, err)
			}
			wb.add(name, rows)
		}
	}

	return wb, nil
}

func (w *workbook) add(name string, rows [][]string) {
	key := strings.ToLower(strings.TrimSpace(name))
	w.sheets[key] = rows
	w.order = append(w.order, key)
}

// normalizeHeader lowercases, trims and strips accents so "Orçamento" and
// "orcamento" map to the same column.
func normalizeHeader(header string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(header)))
	var b strings.Builder
	for _, r := range decomposed {
		if r >= 0x300 && r <= 0x36f {
			continue
		}
		if r == ' ' || r == '-' {
			r = '_'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// columnIndex maps each field to the first header matching one of its
// aliases. Missing fields map to -1.
func columnIndex(header []string, aliases map[string][]string) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	idx := make(map[string]int, len(aliases))
	for field, names := range aliases {
		idx[field] = -1
	search:
		for _, alias := range names {
			for i, h := range normalized {
				if h == alias {
					idx[field] = i
					break search
				}
			}
		}
	}
	return idx
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowIsEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var clientAliases = map[string][]string{
	"id":                 {"id", "client_id", "cliente_id"},
	"name":               {"nome", "name", "cliente", "client"},
	"website":            {"site", "website", "url"},
	"segment":            {"segmento", "segment", "nicho"},
	"owner":              {"responsavel", "owner", "gestor"},
	"status":             {"status", "situacao"},
	"monthly_budget":     {"orcamento", "orcamento_mensal", "monthly_budget", "budget"},
	"budget_spent_month": {"gasto", "gasto_mes", "investido", "budget_spent_month", "spent"},
	"created_at":         {"criado_em", "data_entrada", "created_at", "inicio"},
}

var cardAliases = map[string][]string{
	"id":          {"id", "card_id"},
	"client_id":   {"client_id", "cliente_id", "cliente"},
	"stage":       {"etapa", "stage", "fase"},
	"title":       {"titulo", "title", "tarefa"},
	"responsavel": {"responsavel", "owner"},
	"vencimento":  {"vencimento", "prazo", "due_date"},
	"checklist":   {"checklist", "itens"},
	"notas":       {"notas", "notes", "observacoes"},
	"archived":    {"arquivado", "archived"},
}

var statusLabels = map[string]model.ClientStatus{
	"active":     model.ClientStatusActive,
	"ativo":      model.ClientStatusActive,
	"onboarding": model.ClientStatusOnboarding,
	"at_risk":    model.ClientStatusAtRisk,
	"em_risco":   model.ClientStatusAtRisk,
	"risco":      model.ClientStatusAtRisk,
	"paused":     model.ClientStatusPaused,
	"pausado":    model.ClientStatusPaused,
	"churned":    model.ClientStatusChurned,
	"churn":      model.ClientStatusChurned,
	"cancelado":  model.ClientStatusChurned,
	"inativo":    model.ClientStatusChurned,
}

// parseStatus maps a free-text status cell; unknown or empty values fall
// back to active.
func parseStatus(s string) model.ClientStatus {
	if st, ok := statusLabels[normalizeHeader(s)]; ok {
		return st
	}
	return model.ClientStatusActive
}

// thousandsDots matches amounts grouped with dots and no decimal part.
var thousandsDots = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

// parseAmount reads currency cells such as "R$ 4.000,50", "R$ 4.000",
// "4000.5" or "4,5".
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, nil
	}
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
	case thousandsDots.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	return strconv.ParseFloat(s, 64)
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	time.RFC3339,
}

// parseDate accepts ISO dates, day-first Brazilian dates and Excel serial
// numbers. Empty cells yield nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil, fmt.Errorf("invalid date serial %q: %w", s, err)
		}
		t = t.UTC()
		return &t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

func parseBool(s string) bool {
	switch normalizeHeader(s) {
	case "1", "true", "sim", "s", "x", "yes":
		return true
	}
	return false
}

// splitList splits a checklist cell on newlines or semicolons.
func splitList(s string) []string {
	items := []string{}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}
