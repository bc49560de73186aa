// Package sheet implements the legacy read-only data source backed by a
// spreadsheet export (XLSX or XLS), fetched over HTTP or read from disk.
package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/model"
)

// Adapter reads clients and onboarding cards from a workbook. Every call
// downloads and parses the workbook again.
type Adapter struct {
	cfg    model.SheetConfig
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewAdapter validates cfg and builds an adapter. Either URL or Path must be
// set; URL wins when both are.
func NewAdapter(cfg model.SheetConfig, logger *slog.Logger) (*Adapter, error) {
	if cfg.URL == "" && cfg.Path == "" {
		return nil, &apperr.ValidationError{Field: "sheet.url", Message: "a spreadsheet URL or path is required"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if cfg.URL != "" {
		a.client = NewClient(cfg.URL, cfg.Token)
	}
	return a, nil
}

// Kind returns datasource.KindSheet.
func (a *Adapter) Kind() datasource.Kind {
	return datasource.KindSheet
}

func (a *Adapter) load(ctx context.Context) (*workbook, error) {
	var (
		data     []byte
		filename string
		err      error
	)
	if a.client != nil {
		data, filename, err = a.client.Fetch(ctx)
	} else {
		data, filename, err = readFile(a.cfg.Path)
	}
	if err != nil {
		return nil, err
	}

	wb, err := parseWorkbook(data, filename)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "sheet", Message: err.Error()}
	}
	return wb, nil
}

// GetClients returns every client row of the configured sheet.
func (a *Adapter) GetClients(ctx context.Context) ([]model.Client, error) {
	wb, err := a.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading spreadsheet: %w", err)
	}
	return a.clientsFrom(wb)
}

func (a *Adapter) clientsFrom(wb *workbook) ([]model.Client, error) {
	rows, ok := wb.rows(a.cfg.Sheet)
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "worksheet", ID: a.cfg.Sheet}
	}

	clients := []model.Client{}
	if len(rows) == 0 {
		return clients, nil
	}

	idx := columnIndex(rows[0], clientAliases)
	if idx["name"] < 0 {
		return nil, &apperr.ValidationError{Field: "sheet.header", Message: "missing client name column"}
	}

	for i, row := range rows[1:] {
		if rowIsEmpty(row) {
			continue
		}
		line := i + 2
		c, err := clientFromRow(row, idx, line)
		if err != nil {
			a.logger.Warn("skipping spreadsheet row", "row", line, "error", err)
			continue
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// clientFromRow maps one data row. line is the 1-based spreadsheet row
// used to derive an id when the sheet has none.
func clientFromRow(row []string, idx map[string]int, line int) (model.Client, error) {
	c := model.Client{
		ID:      cellValue(row, idx["id"]),
		Name:    cellValue(row, idx["name"]),
		Website: cellValue(row, idx["website"]),
		Segment: cellValue(row, idx["segment"]),
		Owner:   cellValue(row, idx["owner"]),
		Status:  parseStatus(cellValue(row, idx["status"])),
	}
	if c.Name == "" {
		return model.Client{}, fmt.Errorf("empty name")
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("sheet_row_%d", line)
	}

	var err error
	if c.MonthlyBudget, err = parseAmount(cellValue(row, idx["monthly_budget"])); err != nil {
		return model.Client{}, fmt.Errorf("monthly budget: %w", err)
	}
	if c.BudgetSpentMonth, err = parseAmount(cellValue(row, idx["budget_spent_month"])); err != nil {
		return model.Client{}, fmt.Errorf("budget spent: %w", err)
	}
	created, err := parseDate(cellValue(row, idx["created_at"]))
	if err != nil {
		return model.Client{}, fmt.Errorf("created at: %w", err)
	}
	if created != nil {
		c.CreatedAt = *created
		c.UpdatedAt = *created
	}
	return c, nil
}

// GetClient scans the sheet for id.
func (a *Adapter) GetClient(ctx context.Context, id string) (*model.Client, error) {
	clients, err := a.GetClients(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, &apperr.NotFoundError{Entity: "client", ID: id}
}

// GetAlerts derives alerts from the sheet's clients.
func (a *Adapter) GetAlerts(ctx context.Context) ([]model.Alert, error) {
	clients, err := a.GetClients(ctx)
	if err != nil {
		return nil, err
	}
	return datasource.DeriveAlerts(clients, a.now()), nil
}

// GetOnboardingCards reads the "onboarding" worksheet. Workbooks without
// one have no cards.
func (a *Adapter) GetOnboardingCards(ctx context.Context, clientID string) ([]model.OnboardingCard, error) {
	wb, err := a.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading spreadsheet: %w", err)
	}

	cards := []model.OnboardingCard{}
	rows, ok := wb.rows(onboardingSheet)
	if !ok || len(rows) == 0 {
		return cards, nil
	}

	idx := columnIndex(rows[0], cardAliases)
	for i, row := range rows[1:] {
		if rowIsEmpty(row) {
			continue
		}
		line := i + 2
		card, err := cardFromRow(row, idx, line)
		if err != nil {
			a.logger.Warn("skipping onboarding row", "row", line, "error", err)
			continue
		}
		if card.Archived || (clientID != "" && card.ClientID != clientID) {
			continue
		}
		cards = append(cards, card)
	}
	sort.SliceStable(cards, func(i, j int) bool {
		return stageOrder(cards[i].Stage) < stageOrder(cards[j].Stage)
	})
	return cards, nil
}

func cardFromRow(row []string, idx map[string]int, line int) (model.OnboardingCard, error) {
	card := model.OnboardingCard{
		ID:          cellValue(row, idx["id"]),
		ClientID:    cellValue(row, idx["client_id"]),
		Title:       cellValue(row, idx["title"]),
		Responsavel: cellValue(row, idx["responsavel"]),
		Checklist:   splitList(cellValue(row, idx["checklist"])),
		Notas:       cellValue(row, idx["notas"]),
		Archived:    parseBool(cellValue(row, idx["archived"])),
	}
	if card.Title == "" || card.ClientID == "" {
		return model.OnboardingCard{}, fmt.Errorf("title and client id are required")
	}
	if card.ID == "" {
		card.ID = fmt.Sprintf("sheet_card_%d", line)
	}

	stage, err := model.ParseStage(strings.ToLower(cellValue(row, idx["stage"])))
	if err != nil {
		return model.OnboardingCard{}, err
	}
	card.Stage = stage

	due, err := parseDate(cellValue(row, idx["vencimento"]))
	if err != nil {
		return model.OnboardingCard{}, fmt.Errorf("vencimento: %w", err)
	}
	card.Vencimento = due
	return card, nil
}

func stageOrder(s model.Stage) int {
	for i, st := range model.Stages {
		if st == s {
			return i
		}
	}
	return len(model.Stages)
}

// Close is a no-op; the adapter holds no connections between calls.
func (a *Adapter) Close() error {
	return nil
}

var _ datasource.DataSource = (*Adapter)(nil)
