// Package workspace persists named, saved result sets.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/monitoring"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/blob"
)

// StorageKey is the blob key holding the workspace list.
const StorageKey = "zuno-workspaces"

var (
	ErrEmptyName = errors.New("workspace: name is empty")
	ErrNotFound  = errors.New("workspace: not found")
)

// Workspace is a named snapshot of enriched rows.
type Workspace struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt string         `json:"createdAt"`
	Searches  []pipeline.Row `json:"searches"`
}

// Store keeps the workspace list in memory, newest first, and writes the whole list back
// to the blob store on every change.
type Store struct {
	blob    blob.Store
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu     sync.Mutex
	list   []Workspace
	lastID int64
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

func WithMetrics(m *monitoring.Metrics) Option { return func(s *Store) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func NewStore(b blob.Store, opts ...Option) *Store {
	s := &Store{blob: b, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load replaces the in-memory list with the persisted one. A missing, unreadable or
// undecodable blob leaves an empty list; the problem is logged, never returned.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil

	b, ok, err := s.blob.Get(ctx, StorageKey)
	s.metrics.IncWorkspaceOp("load", err)
	if err != nil {
		s.log.Error("failed to read workspaces", zap.Error(err))
		return
	}
	if !ok || len(b) == 0 {
		return
	}
	var list []Workspace
	if err := json.Unmarshal(b, &list); err != nil {
		s.log.Error("failed to decode workspaces; starting empty", zap.Error(err))
		return
	}
	s.list = list
	for _, ws := range list {
		if n, ok := idMillis(ws.ID); ok && n > s.lastID {
			s.lastID = n
		}
	}
}

// List returns the workspaces, newest first.
func (s *Store) List() []Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Workspace, len(s.list))
	copy(out, s.list)
	return out
}

func (s *Store) Get(id string) (Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.list {
		if ws.ID == id {
			return ws, nil
		}
	}
	return Workspace{}, ErrNotFound
}

// Save prepends a new workspace holding rows. The name is trimmed; an empty name is
// rejected and nothing changes.
//
// If persisting fails the workspace stays in memory and the write error is returned.
func (s *Store) Save(ctx context.Context, rows []pipeline.Row, name string) (Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workspace{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ws := Workspace{
		ID:        s.nextID(now),
		Name:      name,
		CreatedAt: now.UTC().Format("2006-01-02T15:04:05.000Z"),
		Searches:  append([]pipeline.Row(nil), rows...),
	}
	if ws.Searches == nil {
		ws.Searches = []pipeline.Row{}
	}
	s.list = append([]Workspace{ws}, s.list...)

	err := s.persist(ctx)
	s.metrics.IncWorkspaceOp("save", err)
	if err != nil {
		return ws, err
	}
	s.log.Info("workspace saved", zap.String("id", ws.ID), zap.String("name", ws.Name), zap.Int("rows", len(ws.Searches)))
	return ws, nil
}

// Delete removes workspace id once confirm approves it. Without confirmation nothing
// changes and deleted is false.
func (s *Store) Delete(ctx context.Context, id string, confirm func(Workspace) bool) (deleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, ws := range s.list {
		if ws.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrNotFound
	}
	if confirm == nil || !confirm(s.list[idx]) {
		return false, nil
	}

	next := make([]Workspace, 0, len(s.list)-1)
	next = append(next, s.list[:idx]...)
	next = append(next, s.list[idx+1:]...)
	s.list = next

	err = s.persist(ctx)
	s.metrics.IncWorkspaceOp("delete", err)
	if err != nil {
		return true, err
	}
	s.log.Info("workspace deleted", zap.String("id", id))
	return true, nil
}

// Sources lists the grounding sources of every row in ws, deduplicated by URI in
// first-seen order.
func Sources(ws Workspace) []enrich.GroundingSource {
	seen := make(map[string]struct{})
	out := []enrich.GroundingSource{}
	for _, row := range ws.Searches {
		for _, src := range row.GroundingSources {
			if _, dup := seen[src.URI]; dup {
				continue
			}
			seen[src.URI] = struct{}{}
			out = append(out, src)
		}
	}
	return out
}

func (s *Store) persist(ctx context.Context) error {
	list := s.list
	if list == nil {
		list = []Workspace{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return eris.Wrap(err, "workspace: encode list")
	}
	if err := s.blob.Put(ctx, StorageKey, b); err != nil {
		return eris.Wrap(err, "workspace: persist list")
	}
	return nil
}

// nextID returns ws_<unix millis>, bumped past the last issued id so two saves in the
// same millisecond never collide.
func (s *Store) nextID(now time.Time) string {
	n := now.UnixMilli()
	if n <= s.lastID {
		n = s.lastID + 1
	}
	s.lastID = n
	return "ws_" + strconv.FormatInt(n, 10)
}

func idMillis(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, "ws_"), 10, 64)
	if err != nil || !strings.HasPrefix(id, "ws_") {
		return 0, false
	}
	return n, true
}
