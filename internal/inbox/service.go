package inbox

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"clipfeed/internal/domain"
	"clipfeed/internal/session"
)

// ErrNotReady indica que la sesión todavía carga o no hay usuario.
var ErrNotReady = errors.New("inbox: session not ready")

type NotificationsAPI interface {
	Notifications(ctx context.Context, access string) ([]domain.Notification, error)
	MarkAllNotificationsSeen(ctx context.Context, access string) error
}

// TokenSource entrega un access token vigente.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Service es la pantalla de inbox.
type Service struct {
	api    NotificationsAPI
	tokens TokenSource
	store  *session.Store
	logger *zap.Logger
}

func NewService(api NotificationsAPI, tokens TokenSource, store *session.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, tokens: tokens, store: store, logger: logger}
}

// Open trae las notificaciones y las marca como vistas en el servidor. Si
// el marcado falla se devuelven igual y el flag local no cambia.
func (s *Service) Open(ctx context.Context) ([]domain.Notification, error) {
	snap := s.store.Snapshot()
	if snap.Loading || snap.Identity == nil {
		return nil, ErrNotReady
	}
	access, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.api.Notifications(ctx, access)
	if err != nil {
		s.logger.Warn("fetch notifications failed", zap.Error(err))
		return nil, err
	}
	if err := s.api.MarkAllNotificationsSeen(ctx, access); err != nil {
		s.logger.Warn("mark notifications seen failed", zap.Error(err))
		return items, nil
	}
	s.store.MarkNotificationsSeen()
	return items, nil
}

// Badge mantiene el contador de no vistas de la barra de tabs. Recalcula
// cuando cambia el usuario o cuando el inbox marca todo como visto, y
// después resetea el flag.
type Badge struct {
	api    NotificationsAPI
	tokens TokenSource
	store  *session.Store
	logger *zap.Logger

	mu    sync.Mutex
	count int
}

func NewBadge(api NotificationsAPI, tokens TokenSource, store *session.Store, logger *zap.Logger) *Badge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Badge{api: api, tokens: tokens, store: store, logger: logger}
}

func (b *Badge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Run recalcula el badge hasta que ctx se cancele.
func (b *Badge) Run(ctx context.Context) error {
	trigger := make(chan struct{}, 1)
	poke := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	var lastUser string
	var lastMu sync.Mutex
	unsubscribe := b.store.Subscribe(func(snap domain.Snapshot) {
		key := userKey(snap.Identity)
		lastMu.Lock()
		changed := key != lastUser
		lastUser = key
		lastMu.Unlock()
		if changed || snap.NotificationsSeen {
			poke()
		}
	})
	defer unsubscribe()

	lastMu.Lock()
	lastUser = userKey(b.store.Snapshot().Identity)
	lastMu.Unlock()
	poke()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-trigger:
			if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
				b.logger.Warn("badge refresh failed", zap.Error(err))
			}
		}
	}
}

// Refresh recalcula el contador una vez.
func (b *Badge) Refresh(ctx context.Context) error {
	snap := b.store.Snapshot()
	if snap.Identity == nil {
		b.setCount(0)
		return nil
	}
	access, err := b.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	items, err := b.api.Notifications(ctx, access)
	if err != nil {
		return err
	}
	b.setCount(domain.CountUnseen(items))
	b.store.ResetNotificationsSeen()
	return nil
}

func (b *Badge) setCount(n int) {
	b.mu.Lock()
	b.count = n
	b.mu.Unlock()
}

func userKey(id *domain.Identity) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(id.User.ID, 10) + ":" + id.User.Username
}
