package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/abearman/mindful-sub000/client/kv"
	"github.com/abearman/mindful-sub000/client/notify"
	"github.com/abearman/mindful-sub000/client/remote"
	"github.com/abearman/mindful-sub000/models"
	"go.uber.org/zap"
)

const (
	WarningUnreadable = "Your saved bookmarks could not be verified. Showing the last copy that loaded correctly."
	WarningOffline    = "Could not reach bookmark storage. Showing a saved copy."
)

type Options struct {
	Local Strategy
	// Remote is nil for anonymous users.
	Remote      Strategy
	Preferences Preferences
	Cache       kv.Store
	Notifier    notify.Notifier
	Logger      *zap.Logger
}

type Manager struct {
	local    Strategy
	remote   Strategy
	prefs    Preferences
	cache    kv.Store
	notifier notify.Notifier
	logger   *zap.Logger

	mu          sync.Mutex
	userId      string
	active      Strategy
	groups      []models.BookmarkGroup
	haveGroups  bool
	isMigrating bool
	onChange    func(LoadResult)

	// writes counts Save and Delete calls between their migration check and
	// their completion. SwitchStorage waits for it before reading the source.
	writes sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		local:    opts.Local,
		remote:   opts.Remote,
		prefs:    opts.Preferences,
		cache:    opts.Cache,
		notifier: opts.Notifier,
		logger:   logger,
	}
}

// Start picks the active strategy from the user's saved preference. It
// falls back to local storage when no preference exists, the user is
// anonymous, or the preference cannot be read.
func (m *Manager) Start(ctx context.Context, userId string) (models.StorageType, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	active := m.local
	if userId != "" && m.remote != nil && m.prefs != nil {
		st, found, err := m.prefs.Get(ctx, userId)
		switch {
		case err != nil:
			m.logger.Warn("failed to read storage preference, using local", zap.String("user_id", userId), zap.Error(err))
		case found && st == models.StorageRemote:
			active = m.remote
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.userId = userId
	m.active = active
	m.groups = nil
	m.haveGroups = false
	return active.Type(), nil
}

func (m *Manager) StorageType() models.StorageType {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.Type()
}

func (m *Manager) IsMigrating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isMigrating
}

// OnChange registers fn to receive the state reloaded after another
// context changed the data.
func (m *Manager) OnChange(fn func(LoadResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// current returns the in-memory state with the placeholder group.
func (m *Manager) current() LoadResult {
	return LoadResult{Groups: models.EnsureAddNewGroup(m.groups)}
}

// Load reads from the active strategy. While a migration runs it returns
// the in-memory state without touching any strategy.
func (m *Manager) Load(ctx context.Context) (LoadResult, error) {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return LoadResult{}, ErrNotStarted
	}
	if m.isMigrating {
		res := m.current()
		m.mu.Unlock()
		return res, nil
	}
	active, userId := m.active, m.userId
	m.mu.Unlock()

	groups, err := active.Load(ctx, userId)
	if err != nil {
		return m.fallback(ctx, active, userId, err)
	}

	m.writeCache(ctx, active.Type(), userId, groups)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isMigrating || m.active != active {
		// a migration started while this load was in flight; its result wins
		return m.current(), nil
	}
	m.groups = groups
	m.haveGroups = true
	return m.current(), nil
}

// Reload is Load under the name used by visibility and change handlers.
func (m *Manager) Reload(ctx context.Context) (LoadResult, error) {
	return m.Load(ctx)
}

func (m *Manager) fallback(ctx context.Context, active Strategy, userId string, loadErr error) (LoadResult, error) {
	warning := WarningOffline
	if errors.Is(loadErr, remote.ErrAuthTagMismatch) {
		warning = WarningUnreadable
	}
	m.logger.Warn("load failed", zap.String("user_id", userId), zap.String("storage_type", active.Type().String()), zap.Error(loadErr))

	m.mu.Lock()
	if m.haveGroups && m.active == active {
		res := m.current()
		m.mu.Unlock()
		res.Warning = warning
		return res, nil
	}
	m.mu.Unlock()

	cached, ok := m.readCache(ctx, active.Type(), userId)
	if !ok {
		return LoadResult{}, loadErr
	}
	return LoadResult{
		Groups:    models.EnsureAddNewGroup(cached),
		Warning:   warning,
		FromCache: true,
	}, nil
}

// Save writes groups to the active strategy and tells other contexts.
func (m *Manager) Save(ctx context.Context, groups []models.BookmarkGroup) error {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.isMigrating {
		m.mu.Unlock()
		return ErrMigrationInProgress
	}
	active, userId := m.active, m.userId
	m.writes.Add(1)
	m.mu.Unlock()
	defer m.writes.Done()

	groups = models.StripAddNewGroup(groups)
	if err := active.Save(ctx, groups, userId); err != nil {
		return err
	}
	m.writeCache(ctx, active.Type(), userId, groups)

	m.mu.Lock()
	m.groups = groups
	m.haveGroups = true
	m.mu.Unlock()

	m.broadcast(ctx, userId, active.Type())
	return nil
}

func (m *Manager) Delete(ctx context.Context) error {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.isMigrating {
		m.mu.Unlock()
		return ErrMigrationInProgress
	}
	active, userId := m.active, m.userId
	m.writes.Add(1)
	m.mu.Unlock()
	defer m.writes.Done()

	if err := active.Delete(ctx, userId); err != nil {
		return err
	}
	if m.cache != nil {
		if err := m.cache.Delete(ctx, cacheKey(userId, active.Type())); err != nil {
			m.logger.Warn("failed to clear cache", zap.String("user_id", userId), zap.Error(err))
		}
	}

	m.mu.Lock()
	m.groups = []models.BookmarkGroup{}
	m.haveGroups = true
	m.mu.Unlock()

	m.broadcast(ctx, userId, active.Type())
	return nil
}

// SwitchStorage copies the user's bookmarks from the active strategy to
// target and only then makes target active. Reads and reloads during the
// copy see the in-memory state, so a reload cannot revert the switch.
func (m *Manager) SwitchStorage(ctx context.Context, target models.StorageType) error {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.isMigrating {
		m.mu.Unlock()
		return ErrMigrationInProgress
	}
	if m.active.Type() == target {
		m.mu.Unlock()
		return nil
	}
	next, err := m.strategyFor(target)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.isMigrating = true
	source, userId := m.active, m.userId
	m.mu.Unlock()

	// a write admitted before the flag was set must land in the source first
	m.writes.Wait()

	groups, err := m.migrate(ctx, source, next, userId)

	m.mu.Lock()
	if err == nil {
		m.active = next
		m.groups = groups
		m.haveGroups = true
	}
	m.mu.Unlock()

	if err == nil && m.prefs != nil && userId != "" {
		if perr := m.prefs.Set(ctx, userId, target); perr != nil {
			m.logger.Warn("failed to persist storage preference", zap.String("user_id", userId), zap.Error(perr))
		}
	}

	m.mu.Lock()
	m.isMigrating = false
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.logger.Info("storage switched", zap.String("user_id", userId), zap.String("from", source.Type().String()), zap.String("to", target.String()))
	m.broadcast(ctx, userId, target)
	return nil
}

func (m *Manager) strategyFor(target models.StorageType) (Strategy, error) {
	switch target {
	case models.StorageLocal:
		return m.local, nil
	case models.StorageRemote:
		if m.remote == nil || m.userId == "" {
			return nil, ErrRemoteUnavailable
		}
		return m.remote, nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrInvalidStorageType, target)
}

func (m *Manager) migrate(ctx context.Context, source, target Strategy, userId string) ([]models.BookmarkGroup, error) {
	groups, err := source.Load(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("reading %s storage: %w", source.Type(), err)
	}
	if err := target.Save(ctx, groups, userId); err != nil {
		return nil, fmt.Errorf("writing %s storage: %w", target.Type(), err)
	}
	m.writeCache(ctx, target.Type(), userId, groups)
	return groups, nil
}

// Listen reloads on change events from other contexts and hands the result
// to the OnChange callback. Events arriving during a migration are dropped.
func (m *Manager) Listen(ctx context.Context) error {
	if m.notifier == nil {
		return nil
	}
	return m.notifier.Listen(ctx, func(c notify.Change) {
		m.mu.Lock()
		userId, migrating, onChange := m.userId, m.isMigrating, m.onChange
		m.mu.Unlock()

		if migrating || (c.UserId != "" && c.UserId != userId) {
			return
		}
		res, err := m.Reload(ctx)
		if err != nil {
			m.logger.Warn("reload after change failed", zap.String("user_id", userId), zap.Error(err))
			return
		}
		if onChange != nil {
			onChange(res)
		}
	})
}

func (m *Manager) broadcast(ctx context.Context, userId string, storageType models.StorageType) {
	if m.notifier == nil {
		return
	}
	err := m.notifier.Broadcast(ctx, notify.Change{UserId: userId, StorageType: storageType})
	if err != nil {
		m.logger.Info("change broadcast failed", zap.String("user_id", userId), zap.Error(err))
	}
}

func cacheKey(userId string, storageType models.StorageType) string {
	return "cache:" + userId + ":" + storageType.String()
}

func (m *Manager) writeCache(ctx context.Context, storageType models.StorageType, userId string, groups []models.BookmarkGroup) {
	if m.cache == nil {
		return
	}
	data, err := json.Marshal(models.StripAddNewGroup(groups))
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, cacheKey(userId, storageType), data); err != nil {
		m.logger.Warn("failed to write cache", zap.String("user_id", userId), zap.Error(err))
	}
}

func (m *Manager) readCache(ctx context.Context, storageType models.StorageType, userId string) ([]models.BookmarkGroup, bool) {
	if m.cache == nil {
		return nil, false
	}
	data, err := m.cache.Get(ctx, cacheKey(userId, storageType))
	if err != nil {
		return nil, false
	}
	groups, err := models.ParseGroups(data)
	if err != nil {
		return nil, false
	}
	return groups, true
}
