package panelstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	"github.com/lynxbot/lynx/pkg/entities"
	"github.com/lynxbot/lynx/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
)

const storeName = "panel_store"

const (
	// idAlphabet is the alphabet that panel IDs are drawn from.
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// idLength is the length of a panel ID.
	idLength = 8

	// maxIDAttempts bounds the uniqueness retry when generating a panel ID.
	maxIDAttempts = 10
)

// ErrPanelNotFound is returned when a panel ID does not resolve.
var ErrPanelNotFound = errors.New("panel not found")

// Store is the panel configuration store. Panels are persisted as a single
// id-keyed JSON table which is re-read on every operation; mutations rewrite
// the whole table. This is not safe across concurrently running instances.
type Store interface {
	// CreatePanel assigns a fresh panel ID to the given panel and persists it.
	CreatePanel(ctx context.Context, panel *entities.Panel) (*entities.Panel, error)

	// SavePanel persists an existing panel.
	SavePanel(ctx context.Context, panel *entities.Panel) error

	// GetPanel gets a panel by ID.
	GetPanel(ctx context.Context, panelID string) (*entities.Panel, error)

	// ListPanels returns a snapshot of all panels.
	ListPanels(ctx context.Context) ([]*entities.Panel, error)

	// DeletePanel removes a panel configuration. It does not retract the
	// posted panel message.
	DeletePanel(ctx context.Context, panelID string) error

	// AddClaimRole adds a claim role to a panel. Adding a role that is
	// already present is a no-op.
	AddClaimRole(ctx context.Context, panelID, roleID string) error

	// RemoveClaimRole removes a claim role from a panel. Removing a role that
	// is not present is a no-op.
	RemoveClaimRole(ctx context.Context, panelID, roleID string) error
}

type store struct {
	// l is the logger.
	l *slog.Logger

	// path is the location of the JSON panel table.
	path string
}

// New creates a new panel store backed by the JSON table at path.
func New(l *slog.Logger, path string) Store {
	return &store{
		l:    l.With(slog.String(logging.KeyStore, storeName)),
		path: path,
	}
}

// load reads the whole panel table from disk. A missing file is an empty
// table, not an error.
func (s *store) load() (map[string]*entities.Panel, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*entities.Panel), nil
		}
		return nil, fmt.Errorf("error reading panel table: %w", err)
	}

	panels := make(map[string]*entities.Panel)
	if err := json.Unmarshal(b, &panels); err != nil {
		return nil, fmt.Errorf("error decoding panel table: %w", err)
	}
	return panels, nil
}

// save rewrites the whole panel table. The table is written to a temporary
// file and renamed into place so a crash mid-write cannot truncate it.
func (s *store) save(panels map[string]*entities.Panel) error {
	b, err := json.MarshalIndent(panels, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding panel table: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("error creating temp panel table: %w", err)
	}

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("error writing panel table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("error closing panel table: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("error replacing panel table: %w", err)
	}
	return nil
}

// newPanelID generates a fresh panel ID that is not present in the given
// table. Attempts are bounded so a corrupt table cannot spin forever.
func newPanelID(existing map[string]*entities.Panel) (string, error) {
	alphabetLen := big.NewInt(int64(len(idAlphabet)))

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := make([]byte, idLength)
		for i := range id {
			n, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return "", fmt.Errorf("error generating panel id: %w", err)
			}
			id[i] = idAlphabet[n.Int64()]
		}
		if _, ok := existing[string(id)]; !ok {
			return string(id), nil
		}
	}
	return "", errors.New("exhausted attempts generating a unique panel id")
}

func (s *store) CreatePanel(_ context.Context, panel *entities.Panel) (*entities.Panel, error) {
	StoreTotalRequests.WithLabelValues("create_panel").Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues("create_panel"))
	defer t.ObserveDuration()

	panels, err := s.load()
	if err != nil {
		return nil, err
	}

	id, err := newPanelID(panels)
	if err != nil {
		return nil, err
	}

	panel.PanelID = id
	panels[id] = panel

	if err := s.save(panels); err != nil {
		return nil, err
	}

	s.l.Debug("Created panel", slog.String("panel_id", id))
	return panel, nil
}

func (s *store) SavePanel(_ context.Context, panel *entities.Panel) error {
	StoreTotalRequests.WithLabelValues("save_panel").Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues("save_panel"))
	defer t.ObserveDuration()

	panels, err := s.load()
	if err != nil {
		return err
	}

	panels[panel.PanelID] = panel
	return s.save(panels)
}

func (s *store) GetPanel(_ context.Context, panelID string) (*entities.Panel, error) {
	StoreTotalRequests.WithLabelValues("get_panel").Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues("get_panel"))
	defer t.ObserveDuration()

	panels, err := s.load()
	if err != nil {
		return nil, err
	}

	panel, ok := panels[panelID]
	if !ok {
		return nil, ErrPanelNotFound
	}
	return panel, nil
}

func (s *store) ListPanels(_ context.Context) ([]*entities.Panel, error) {
	StoreTotalRequests.WithLabelValues("list_panels").Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues("list_panels"))
	defer t.ObserveDuration()

	panels, err := s.load()
	if err != nil {
		return nil, err
	}

	list := make([]*entities.Panel, 0, len(panels))
	for _, p := range panels {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].PanelID < list[j].PanelID
	})
	return list, nil
}

func (s *store) DeletePanel(_ context.Context, panelID string) error {
	StoreTotalRequests.WithLabelValues("delete_panel").Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues("delete_panel"))
	defer t.ObserveDuration()

	panels, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := panels[panelID]; !ok {
		return ErrPanelNotFound
	}

	delete(panels, panelID)

	if err := s.save(panels); err != nil {
		return err
	}

	s.l.Debug("Deleted panel", slog.String("panel_id", panelID))
	return nil
}

func (s *store) AddClaimRole(_ context.Context, panelID, roleID string) error {
	StoreTotalRequests.WithLabelValues("add_claim_role").Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues("add_claim_role"))
	defer t.ObserveDuration()

	panels, err := s.load()
	if err != nil {
		return err
	}

	panel, ok := panels[panelID]
	if !ok {
		return ErrPanelNotFound
	}

	if panel.HasClaimRole(roleID) {
		return nil
	}

	panel.ClaimRoleIDs = append(panel.ClaimRoleIDs, roleID)
	return s.save(panels)
}

func (s *store) RemoveClaimRole(_ context.Context, panelID, roleID string) error {
	StoreTotalRequests.WithLabelValues("remove_claim_role").Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues("remove_claim_role"))
	defer t.ObserveDuration()

	panels, err := s.load()
	if err != nil {
		return err
	}

	panel, ok := panels[panelID]
	if !ok {
		return ErrPanelNotFound
	}

	if !panel.HasClaimRole(roleID) {
		return nil
	}

	roles := make([]string, 0, len(panel.ClaimRoleIDs))
	for _, id := range panel.ClaimRoleIDs {
		if id != roleID {
			roles = append(roles, id)
		}
	}
	panel.ClaimRoleIDs = roles

	return s.save(panels)
}
