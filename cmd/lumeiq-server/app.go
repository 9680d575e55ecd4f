package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lumeiq/core/assistant"
	"github.com/lumeiq/core/catalog"
	"github.com/lumeiq/core/events"
	"github.com/lumeiq/core/rewards"
	"github.com/lumeiq/core/scoring"
	"github.com/lumeiq/core/store"
	"github.com/lumeiq/core/transit"
	"github.com/lumeiq/core/trust"
	"github.com/lumeiq/core/types"
)

const userKeyPrefix = "lumeiq_user_"

// App wires every engine over one shared store and catalog.
type App struct {
	log        *zap.Logger
	store      store.Store
	catalog    *catalog.Catalog
	scoring    *scoring.Engine
	trust      *trust.Engine
	transit    *transit.Engine
	rewards    *rewards.Engine
	dispatcher *events.Dispatcher
	assistant  *assistant.Client
	closer     func() error
}

// NewApp builds the application from config. The SQLite store backs every
// engine; an empty DB path selects the in-memory store for tests.
func NewApp(cfg *Config, log *zap.Logger) (*App, error) {
	var (
		s      store.Store
		closer func() error
	)
	if cfg.DBPath == "" {
		s = store.NewMemoryStore()
		closer = func() error { return nil }
	} else {
		sq, err := store.OpenSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		s = sq
		closer = sq.Close
	}

	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var remote assistant.RemoteResponder
	if cfg.AssistantURL != "" {
		remote = &httpResponder{url: cfg.AssistantURL, apiKey: cfg.AssistantAPIKey}
	}

	return &App{
		log:        log,
		store:      s,
		catalog:    cat,
		scoring:    scoring.NewEngine(log),
		// Handlers derive per-request engines with ForDevice; the base
		// engine holds the shared lock, store and clock.
		trust:      trust.NewEngine(s, trust.DeviceSignals{}, log),
		transit:    transit.NewEngine(s, log),
		rewards:    rewards.NewEngine(cat, s, log),
		dispatcher: events.NewDispatcher(s, log),
		assistant:  assistant.NewClient(remote, log),
		closer:     closer,
	}, nil
}

// Close releases the backing store.
func (a *App) Close() error {
	return a.closer()
}

func (a *App) loadUser(id string) (*types.User, error) {
	var u types.User
	raw, err := a.store.Get(userKeyPrefix + id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, types.ErrUserNotFound
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("corrupt user record %s: %w", id, err)
	}
	return &u, nil
}

func (a *App) saveUser(u *types.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return a.store.Set(userKeyPrefix+u.ID, raw)
}

// httpResponder forwards chat messages to an external model endpoint.
type httpResponder struct {
	url    string
	apiKey string
}

func (h *httpResponder) Ask(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant endpoint returned %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Text, nil
}
