package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/agency-dashboard/internal/credential"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/datasource/factory"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/store"
	"github.com/nhle/agency-dashboard/internal/theme"
)

func dirOf(path string) string {
	return filepath.Dir(path)
}

func (e *env) listClients(ctx context.Context) error {
	ds, err := e.manager.Source(ctx)
	if err != nil {
		return err
	}
	clients, err := ds.GetClients(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderClients(ds.Kind(), clients))
	return nil
}

func (e *env) listAlerts(ctx context.Context) error {
	ds, err := e.manager.Source(ctx)
	if err != nil {
		return err
	}
	alerts, err := ds.GetAlerts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderAlerts(alerts))
	return nil
}

func (e *env) listOnboarding(ctx context.Context, clientID string) error {
	ds, err := e.manager.Source(ctx)
	if err != nil {
		return err
	}
	cards, err := ds.GetOnboardingCards(ctx, clientID)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, renderCards(cards))
	return nil
}

func (e *env) addClient(ctx context.Context) error {
	var name, segment, owner, budget string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Client name").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Segment").
				Value(&segment),
			huh.NewInput().
				Title("Owner").
				Value(&owner),
			huh.NewInput().
				Title("Monthly budget").
				Placeholder("0").
				Value(&budget).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := strconv.ParseFloat(s, 64)
					return err
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	c := model.Client{
		Name:    strings.TrimSpace(name),
		Segment: segment,
		Owner:   owner,
		Status:  model.ClientStatusOnboarding,
	}
	if budget != "" {
		c.MonthlyBudget, _ = strconv.ParseFloat(budget, 64)
	}

	ds, err := e.manager.Source(ctx)
	if err != nil {
		return err
	}
	created, cards, err := datasource.AddClientWithOnboarding(ctx, ds, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s %s with %d onboarding cards\n",
		theme.HeaderStyle.Render("created"), created.ID, len(cards))
	if ds.Kind() == datasource.KindMock {
		fmt.Fprintln(e.out, theme.HelpStyle.Render("mock data source: the client lives only in this process"))
	}
	return nil
}

func (e *env) convertLead(ctx context.Context, leadID string) error {
	ds, err := e.manager.Source(ctx)
	if err != nil {
		return err
	}
	lc, ok := ds.(datasource.LeadConverter)
	if !ok {
		return fmt.Errorf("%s data source cannot convert leads", ds.Kind())
	}
	c, err := lc.ConvertLead(ctx, leadID)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s lead %s became client %s\n", theme.HeaderStyle.Render("converted"), leadID, c.ID)
	return nil
}

func (e *env) printKind(ctx context.Context) error {
	kind := e.manager.CurrentKind(ctx)
	fmt.Fprintln(e.out, theme.KindStyle(string(kind)).Render(string(kind)))
	return nil
}

// switchKind asks for the target with a select when none was given.
func (e *env) switchKind(ctx context.Context, arg string) error {
	if arg == "" {
		current := e.manager.CurrentKind(ctx)
		options := make([]huh.Option[string], 0, len(datasource.Kinds))
		for _, k := range datasource.Kinds {
			label := string(k)
			if k == current {
				label += " (active)"
			}
			options = append(options, huh.NewOption(label, string(k)))
		}
		arg = string(current)
		if err := huh.NewSelect[string]().
			Title("Data source").
			Options(options...).
			Value(&arg).
			Run(); err != nil {
			return err
		}
	}

	kind, err := datasource.ParseKind(arg)
	if err != nil {
		return err
	}

	if err := e.manager.Switch(ctx, kind); err != nil {
		var se *factory.SwitchError
		if errors.As(err, &se) {
			fmt.Fprintln(e.out, theme.HelpStyle.Render("still using "+string(se.From)))
		}
		return err
	}
	fmt.Fprintf(e.out, "switched to %s\n", theme.KindStyle(string(kind)).Render(string(kind)))
	return nil
}

func (e *env) metrics(ctx context.Context, clientID string, metrics []string) error {
	if len(metrics) > 0 {
		if err := store.SetMetricSelection(ctx, e.local, clientID, metrics); err != nil {
			return err
		}
	}
	selected, err := store.GetMetricSelection(ctx, e.local, clientID)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		fmt.Fprintln(e.out, theme.HelpStyle.Render("no metrics selected"))
		return nil
	}
	fmt.Fprintln(e.out, strings.Join(selected, ", "))
	return nil
}

func (e *env) saveSheet(ctx context.Context, location, tab string) error {
	cfg := model.SheetConfig{Sheet: tab}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		cfg.URL = location
	} else {
		cfg.Path = location
	}
	if err := store.SetSheetConfig(ctx, e.local, cfg); err != nil {
		return err
	}
	fmt.Fprintln(e.out, theme.HelpStyle.Render("sheet connection saved; run `agencyctl switch sheet` to use it"))
	return nil
}

var secretKeys = map[string]string{
	"database-url": credential.KeyHostedDatabaseURL,
	"ingest-key":   credential.KeyIngestAPIKey,
	"jwt-secret":   credential.KeyJWTSecret,
}

func (e *env) storeSecret(name string) error {
	key, ok := secretKeys[name]
	if !ok {
		return fmt.Errorf("unknown secret %q (database-url, ingest-key, jwt-secret)", name)
	}
	var value string
	if err := huh.NewInput().
		Title(name).
		EchoMode(huh.EchoModePassword).
		Value(&value).
		Run(); err != nil {
		return err
	}
	if value == "" {
		return credential.Delete(key)
	}
	return credential.Set(key, value)
}

func (e *env) printCounters(ctx context.Context) error {
	for _, name := range []string{store.CounterSwitchFailed, store.CounterStaleServed, store.CounterCacheWriteFail} {
		n, err := store.Counter(ctx, e.local, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%-20s %d\n", name, n)
	}
	return nil
}
