// Package hybrid composes a remote data source with the local entity store.
// Reads are served from the cache while it is fresh and from the remote
// backend otherwise; writes go to the remote first and are then copied into
// the cache. When the remote is unreachable, the last cached copy is served
// and flagged as stale.
package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/store"
)

// Cache collection names, used as suffixes of the fetch-time settings.
const (
	CollectionClients = "clients"
	CollectionCards   = "onboarding_cards"
)

// Remote is the authoritative backend wrapped by the hybrid adapter.
type Remote interface {
	datasource.DataSource
	datasource.ClientWriter
	datasource.OnboardingWriter
}

// ReadResult carries data together with where it came from.
type ReadResult[T any] struct {
	Items []T

	// Stale is set when the remote failed and the cached copy was served.
	Stale bool

	// FetchedAt is the last successful remote fetch of the collection.
	FetchedAt time.Time
}

// Adapter is the hybrid data source.
type Adapter struct {
	remote Remote
	cache  store.Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New builds a hybrid adapter. The cache store is shared and not closed by
// the adapter; the remote is.
func New(remote Remote, cache store.Store, ttl time.Duration, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		remote: remote,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("datasource", "hybrid"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Kind returns datasource.KindHybrid.
func (a *Adapter) Kind() datasource.Kind {
	return datasource.KindHybrid
}

// Name identifies the adapter to the sync poller.
func (a *Adapter) Name() string {
	return "hybrid:" + string(a.remote.Kind())
}

// fresh reports whether collection was fetched within the TTL, and when.
func (a *Adapter) fresh(ctx context.Context, collection string) (bool, time.Time) {
	fetched, err := store.CacheFetchedAt(ctx, a.cache, collection)
	if err != nil {
		a.logger.Warn("reading cache fetch time", "collection", collection, "error", err)
		return false, time.Time{}
	}
	if fetched.IsZero() {
		return false, fetched
	}
	return a.now().Sub(fetched) < a.ttl, fetched
}

// ReadClients returns the clients with their provenance.
func (a *Adapter) ReadClients(ctx context.Context) (ReadResult[model.Client], error) {
	ok, fetched := a.fresh(ctx, CollectionClients)
	if ok {
		clients, err := a.cache.ListClients(ctx)
		if err == nil {
			return ReadResult[model.Client]{Items: clients, FetchedAt: fetched}, nil
		}
		a.logger.Warn("reading cached clients", "error", err)
	}

	clients, err := a.refreshClients(ctx)
	if err == nil {
		return ReadResult[model.Client]{Items: clients, FetchedAt: a.now()}, nil
	}
	if !apperr.IsNetwork(err) || fetched.IsZero() {
		return ReadResult[model.Client]{}, err
	}

	cached, cacheErr := a.cache.ListClients(ctx)
	if cacheErr != nil {
		return ReadResult[model.Client]{}, err
	}
	a.servedStale(ctx, CollectionClients, err)
	return ReadResult[model.Client]{Items: cached, Stale: true, FetchedAt: fetched}, nil
}

// GetClients returns every client.
func (a *Adapter) GetClients(ctx context.Context) ([]model.Client, error) {
	res, err := a.ReadClients(ctx)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// GetClient prefers a fresh cached copy, then the remote, then any cached
// copy when the remote is unreachable.
func (a *Adapter) GetClient(ctx context.Context, id string) (*model.Client, error) {
	if ok, _ := a.fresh(ctx, CollectionClients); ok {
		if c, err := a.cache.GetClient(ctx, id); err == nil && c != nil {
			return c, nil
		}
	}

	c, err := a.remote.GetClient(ctx, id)
	if err == nil {
		a.cacheClient(ctx, *c)
		return c, nil
	}
	if !apperr.IsNetwork(err) {
		return nil, err
	}

	cached, cacheErr := a.cache.GetClient(ctx, id)
	if cacheErr != nil || cached == nil {
		return nil, err
	}
	a.servedStale(ctx, CollectionClients, err)
	return cached, nil
}

// GetAlerts derives alerts from the clients, stale or not.
func (a *Adapter) GetAlerts(ctx context.Context) ([]model.Alert, error) {
	clients, err := a.GetClients(ctx)
	if err != nil {
		return nil, err
	}
	return datasource.DeriveAlerts(clients, a.now()), nil
}

// ReadOnboardingCards returns active cards of clientID (all clients when
// empty) with their provenance.
func (a *Adapter) ReadOnboardingCards(ctx context.Context, clientID string) (ReadResult[model.OnboardingCard], error) {
	filter := store.CardFilter{ClientID: clientID}

	ok, fetched := a.fresh(ctx, CollectionCards)
	if ok {
		cards, err := a.cache.ListOnboardingCards(ctx, filter)
		if err == nil {
			sortCards(cards)
			return ReadResult[model.OnboardingCard]{Items: cards, FetchedAt: fetched}, nil
		}
		a.logger.Warn("reading cached onboarding cards", "error", err)
	}

	all, err := a.refreshCards(ctx)
	if err == nil {
		cards := []model.OnboardingCard{}
		for _, c := range all {
			if clientID == "" || c.ClientID == clientID {
				cards = append(cards, c)
			}
		}
		sortCards(cards)
		return ReadResult[model.OnboardingCard]{Items: cards, FetchedAt: a.now()}, nil
	}
	if !apperr.IsNetwork(err) || fetched.IsZero() {
		return ReadResult[model.OnboardingCard]{}, err
	}

	cached, cacheErr := a.cache.ListOnboardingCards(ctx, filter)
	if cacheErr != nil {
		return ReadResult[model.OnboardingCard]{}, err
	}
	a.servedStale(ctx, CollectionCards, err)
	sortCards(cached)
	return ReadResult[model.OnboardingCard]{Items: cached, Stale: true, FetchedAt: fetched}, nil
}

// sortCards puts cards in board order, oldest first, whichever side served
// them.
func sortCards(cards []model.OnboardingCard) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
}

// GetOnboardingCards returns the active cards of clientID.
func (a *Adapter) GetOnboardingCards(ctx context.Context, clientID string) ([]model.OnboardingCard, error) {
	res, err := a.ReadOnboardingCards(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Refresh re-reads every collection from the remote and replaces the
// cached copies regardless of their age.
func (a *Adapter) Refresh(ctx context.Context) error {
	if _, err := a.refreshClients(ctx); err != nil {
		return fmt.Errorf("refreshing clients: %w", err)
	}
	if _, err := a.refreshCards(ctx); err != nil {
		return fmt.Errorf("refreshing onboarding cards: %w", err)
	}
	return nil
}

func (a *Adapter) refreshClients(ctx context.Context) ([]model.Client, error) {
	clients, err := a.remote.GetClients(ctx)
	if err != nil {
		return nil, err
	}
	a.writeCache(ctx, CollectionClients, func() error {
		if err := a.cache.BulkUpsertClients(ctx, clients); err != nil {
			return err
		}
		return a.pruneClients(ctx, clients)
	})
	return clients, nil
}

// pruneClients drops cached clients the remote no longer returns.
func (a *Adapter) pruneClients(ctx context.Context, remote []model.Client) error {
	keep := make(map[string]struct{}, len(remote))
	for _, c := range remote {
		keep[c.ID] = struct{}{}
	}
	cached, err := a.cache.ListClients(ctx)
	if err != nil {
		return err
	}
	for _, c := range cached {
		if _, ok := keep[c.ID]; !ok {
			if err := a.cache.DeleteClient(ctx, c.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Adapter) refreshCards(ctx context.Context) ([]model.OnboardingCard, error) {
	cards, err := a.remote.GetOnboardingCards(ctx, "")
	if err != nil {
		return nil, err
	}
	a.writeCache(ctx, CollectionCards, func() error {
		if err := a.cache.BulkUpsertOnboardingCards(ctx, cards); err != nil {
			return err
		}
		return a.pruneCards(ctx, cards)
	})
	return cards, nil
}

// pruneCards archives cached cards that are no longer active remotely.
func (a *Adapter) pruneCards(ctx context.Context, remote []model.OnboardingCard) error {
	keep := make(map[string]struct{}, len(remote))
	for _, c := range remote {
		keep[c.ID] = struct{}{}
	}
	cached, err := a.cache.ListOnboardingCards(ctx, store.CardFilter{})
	if err != nil {
		return err
	}
	archived := true
	for _, c := range cached {
		if _, ok := keep[c.ID]; ok {
			continue
		}
		if _, err := a.cache.UpdateOnboardingCard(ctx, c.ID, model.OnboardingCardPatch{Archived: &archived}); err != nil {
			return err
		}
	}
	return nil
}

// writeCache runs write and, on success, stamps the collection as fetched.
// A failed cache write never fails the caller: the collection is
// invalidated so the next read goes back to the remote.
func (a *Adapter) writeCache(ctx context.Context, collection string, write func() error) {
	err := write()
	if err == nil {
		err = store.MarkCacheFetched(ctx, a.cache, collection, a.now())
	}
	if err == nil {
		return
	}

	a.logger.Warn("cache write failed", "collection", collection, "error", err)
	if _, cerr := a.cache.IncrementCounter(ctx, store.CounterCacheWriteFail); cerr != nil {
		a.logger.Warn("incrementing counter", "counter", store.CounterCacheWriteFail, "error", cerr)
	}
	if ierr := store.InvalidateCache(ctx, a.cache, collection); ierr != nil {
		a.logger.Warn("invalidating cache", "collection", collection, "error", ierr)
	}
}

func (a *Adapter) servedStale(ctx context.Context, collection string, cause error) {
	a.logger.Warn("remote unreachable, serving cached data", "collection", collection, "error", cause)
	if _, err := a.cache.IncrementCounter(ctx, store.CounterStaleServed); err != nil {
		a.logger.Warn("incrementing counter", "counter", store.CounterStaleServed, "error", err)
	}
}

// AddClient creates the client remotely, then caches it.
func (a *Adapter) AddClient(ctx context.Context, c model.Client) (*model.Client, error) {
	created, err := a.remote.AddClient(ctx, c)
	if err != nil {
		return nil, err
	}
	a.cacheClient(ctx, *created)
	return created, nil
}

// UpdateClient patches the remote client, then caches the result.
func (a *Adapter) UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (*model.Client, error) {
	updated, err := a.remote.UpdateClient(ctx, id, patch)
	if err != nil || updated == nil {
		return updated, err
	}
	a.cacheClient(ctx, *updated)
	return updated, nil
}

// ArchiveClient archives remotely and mirrors the status change locally.
func (a *Adapter) ArchiveClient(ctx context.Context, id string) error {
	if err := a.remote.ArchiveClient(ctx, id); err != nil {
		return err
	}
	status := model.ClientStatusChurned
	if _, err := a.cache.UpdateClient(ctx, id, model.ClientPatch{Status: &status}); err != nil {
		a.cacheFailed(ctx, CollectionClients, err)
	}
	return nil
}

// AddOnboardingCard creates the card remotely, then caches it.
func (a *Adapter) AddOnboardingCard(ctx context.Context, card model.OnboardingCard) (*model.OnboardingCard, error) {
	created, err := a.remote.AddOnboardingCard(ctx, card)
	if err != nil {
		return nil, err
	}
	a.cacheCard(ctx, *created)
	return created, nil
}

// MoveOnboardingCard moves the card remotely, then caches it.
func (a *Adapter) MoveOnboardingCard(ctx context.Context, id string, stage model.Stage) (*model.OnboardingCard, error) {
	moved, err := a.remote.MoveOnboardingCard(ctx, id, stage)
	if err != nil {
		return nil, err
	}
	a.cacheCard(ctx, *moved)
	return moved, nil
}

// ArchiveOnboardingCard archives remotely and locally.
func (a *Adapter) ArchiveOnboardingCard(ctx context.Context, id string) error {
	if err := a.remote.ArchiveOnboardingCard(ctx, id); err != nil {
		return err
	}
	archived := true
	if _, err := a.cache.UpdateOnboardingCard(ctx, id, model.OnboardingCardPatch{Archived: &archived}); err != nil {
		a.cacheFailed(ctx, CollectionCards, err)
	}
	return nil
}

// ConvertLead delegates to the remote when it owns the funnel.
func (a *Adapter) ConvertLead(ctx context.Context, leadID string) (*model.Client, error) {
	lc, ok := a.remote.(datasource.LeadConverter)
	if !ok {
		return nil, fmt.Errorf("%s data source cannot convert leads", a.remote.Kind())
	}
	client, err := lc.ConvertLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	a.cacheClient(ctx, *client)
	return client, nil
}

// cacheClient copies a single written client into the cache without
// touching the collection's fetch time.
func (a *Adapter) cacheClient(ctx context.Context, c model.Client) {
	if err := a.cache.BulkUpsertClients(ctx, []model.Client{c}); err != nil {
		a.cacheFailed(ctx, CollectionClients, err)
	}
}

func (a *Adapter) cacheCard(ctx context.Context, card model.OnboardingCard) {
	if err := a.cache.BulkUpsertOnboardingCards(ctx, []model.OnboardingCard{card}); err != nil {
		a.cacheFailed(ctx, CollectionCards, err)
	}
}

func (a *Adapter) cacheFailed(ctx context.Context, collection string, err error) {
	a.writeCache(ctx, collection, func() error { return err })
}

// Close closes the remote backend.
func (a *Adapter) Close() error {
	return a.remote.Close()
}

var (
	_ datasource.DataSource       = (*Adapter)(nil)
	_ datasource.ClientWriter     = (*Adapter)(nil)
	_ datasource.OnboardingWriter = (*Adapter)(nil)
	_ datasource.LeadConverter    = (*Adapter)(nil)
)
