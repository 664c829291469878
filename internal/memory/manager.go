// Package memory manages per-user conversation logs: a bounded in-process
// cache backed by one human-readable JSON file per user. Reads degrade to an
// empty history, writes degrade to in-memory-only; neither failure reaches
// the caller.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/domain"
)

// DefaultMaxTurns bounds how many exchanges a user's log retains.
const DefaultMaxTurns = 10

// Manager owns the conversation logs. Operations on the same user are
// serialized; different users proceed independently.
type Manager struct {
	dir      string
	maxTurns int
	logger   *zap.Logger

	mu    sync.Mutex
	logs  map[string][]domain.Interaction
	locks map[string]*sync.Mutex
}

// New creates a Manager persisting logs under dir.
func New(dir string, maxTurns int, logger *zap.Logger) (*Manager, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory directory: %w", err)
	}
	return &Manager{
		dir:      dir,
		maxTurns: maxTurns,
		logger:   logger,
		logs:     make(map[string][]domain.Interaction),
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[userID]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[userID] = l
	return l
}

// GetContext returns the user's formatted history. Unknown users and
// unreadable logs both yield an empty history; GetContext never fails.
func (m *Manager) GetContext(userID string) domain.ConversationContext {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log := m.loadLocked(userID)
	exchanges := make([]domain.Interaction, len(log))
	copy(exchanges, log)

	return domain.ConversationContext{
		UserID:      userID,
		HistoryText: domain.FormatHistory(exchanges),
		Exchanges:   exchanges,
	}
}

// AddInteraction appends one exchange with a generation timestamp, evicts
// the oldest entries beyond maxTurns, and persists synchronously. A persist
// failure is logged; the exchange stays visible in memory either way.
func (m *Manager) AddInteraction(userID, question, answer string) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log := m.loadLocked(userID)
	log = append(log, domain.Interaction{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
	})
	if len(log) > m.maxTurns {
		log = log[len(log)-m.maxTurns:]
	}

	m.mu.Lock()
	m.logs[userID] = log
	m.mu.Unlock()

	m.persistLocked(userID, log)
}

// ClearHistory empties the user's log and persists immediately.
func (m *Manager) ClearHistory(userID string) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	m.logs[userID] = []domain.Interaction{}
	m.mu.Unlock()

	m.persistLocked(userID, []domain.Interaction{})
}

// loadLocked returns the cached log, reading it from disk on first access.
// Caller holds the user lock.
func (m *Manager) loadLocked(userID string) []domain.Interaction {
	m.mu.Lock()
	if log, ok := m.logs[userID]; ok {
		m.mu.Unlock()
		return log
	}
	m.mu.Unlock()

	log := m.readFile(userID)
	m.mu.Lock()
	m.logs[userID] = log
	m.mu.Unlock()
	return log
}

func (m *Manager) readFile(userID string) []domain.Interaction {
	data, err := os.ReadFile(m.path(userID))
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to read conversation log, starting empty",
				zap.String("user_id", userID), zap.Error(err))
		}
		return []domain.Interaction{}
	}

	var log []domain.Interaction
	if err := json.Unmarshal(data, &log); err != nil {
		m.logger.Warn("corrupt conversation log, starting empty",
			zap.String("user_id", userID), zap.Error(err))
		return []domain.Interaction{}
	}
	return log
}

// persistLocked writes the full log. Caller holds the user lock.
func (m *Manager) persistLocked(userID string, log []domain.Interaction) {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		m.logger.Warn("failed to marshal conversation log",
			zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := os.WriteFile(m.path(userID), data, 0o644); err != nil {
		m.logger.Warn("failed to persist conversation log, keeping in memory",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func (m *Manager) path(userID string) string {
	return filepath.Join(m.dir, sanitizeUserID(userID)+".json")
}

// sanitizeUserID keeps the file name safe regardless of what callers put in
// user_id. Distinct IDs may collide after sanitization; acceptable for IDs
// that are already plain identifiers.
func sanitizeUserID(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "anonymous"
	}
	return b.String()
}
