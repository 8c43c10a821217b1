// Package session mantiene la sesión autenticada del cliente: quién está
// logueado, el flag de carga y el flag de notificaciones vistas, y la
// sincroniza con el almacenamiento durable bajo la clave "user".
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"clipfeed/internal/crypto"
	"clipfeed/internal/domain"
	"clipfeed/internal/storage"
)

// IdentityKey es la clave fija bajo la que se persiste la identidad.
const IdentityKey = "user"

var (
	ErrInvalidIdentity  = errors.New("session: identity has no access token")
	ErrNotAuthenticated = errors.New("session: not authenticated")
)

// Navigator recibe la señal de navegar al home después de un login.
type Navigator interface {
	NavigateHome()
}

// NavigatorFunc adapta una función a Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) NavigateHome() { f() }

// ErrorHook recibe las fallas recuperables que el store se traga.
type ErrorHook func(op string, err error)

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSealer(sealer crypto.Sealer) Option {
	return func(s *Store) {
		if sealer != nil {
			s.sealer = sealer
		}
	}
}

func WithNavigator(nav Navigator) Option {
	return func(s *Store) { s.navigator = nav }
}

func WithErrorHook(hook ErrorHook) Option {
	return func(s *Store) { s.onError = hook }
}

// WithStorageTimeout acota cada llamada al almacenamiento; cero la desactiva.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Store es la única fuente de verdad sobre la sesión. Se construye en el
// entrypoint y se pasa por referencia a quien la necesite.
type Store struct {
	kv        storage.KV
	sealer    crypto.Sealer
	logger    *zap.Logger
	navigator Navigator
	onError   ErrorHook
	timeout   time.Duration

	mu      sync.Mutex
	snap    domain.Snapshot
	subs    map[int]func(domain.Snapshot)
	nextSub int

	restoreGroup singleflight.Group
	initOnce     sync.Once
}

func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		sealer: crypto.NoopSealer{},
		logger: zap.NewNop(),
		subs:   make(map[int]func(domain.Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init ejecuta Restore una sola vez en la vida del Store. El entrypoint
// debe esperarlo antes de habilitar cualquier consumidor.
func (s *Store) Init(ctx context.Context) domain.Snapshot {
	s.initOnce.Do(func() {
		s.Restore(ctx)
	})
	return s.Snapshot()
}

// Restore rehidrata la identidad desde el almacenamiento. Nunca falla:
// ausencia, error de lectura o blob corrupto resuelven a "sin identidad".
// Llamadas concurrentes comparten una sola lectura.
func (s *Store) Restore(ctx context.Context) domain.Snapshot {
	v, _, _ := s.restoreGroup.Do(IdentityKey, func() (any, error) {
		s.update(func(sn *domain.Snapshot) { sn.Loading = true })
		id := s.readIdentity(ctx)
		return s.update(func(sn *domain.Snapshot) {
			sn.Identity = id
			sn.Loading = false
			sn.Restored = true
		}), nil
	})
	return v.(domain.Snapshot)
}

// Login persiste la identidad y recién después actualiza la memoria y
// avisa al navigator. Una falla de escritura no impide el login.
func (s *Store) Login(ctx context.Context, identity domain.Identity) error {
	if !identity.Valid() {
		return ErrInvalidIdentity
	}
	s.persist(ctx, "login", &identity)
	s.update(func(sn *domain.Snapshot) {
		sn.Identity = identity.Clone()
		sn.Loading = false
		sn.Restored = true
	})
	if s.navigator != nil {
		s.navigator.NavigateHome()
	}
	return nil
}

// Logout borra la entrada durable y la identidad en memoria. Es local:
// no revoca nada en el servidor.
func (s *Store) Logout(ctx context.Context) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.kv.Remove(opCtx, IdentityKey); err != nil {
		s.report("logout", err)
	}
	s.update(func(sn *domain.Snapshot) {
		sn.Identity = nil
		sn.Restored = true
	})
}

// UpdateTokens reemplaza el par de credenciales de la identidad actual.
func (s *Store) UpdateTokens(ctx context.Context, tokens domain.TokenPair) error {
	s.mu.Lock()
	current := s.snap.Identity.Clone()
	s.mu.Unlock()
	if current == nil {
		return ErrNotAuthenticated
	}
	current.Tokens = tokens
	if !current.Valid() {
		return ErrInvalidIdentity
	}
	s.persist(ctx, "update_tokens", current)
	s.update(func(sn *domain.Snapshot) {
		// Un logout concurrente gana.
		if sn.Identity != nil {
			sn.Identity = current
		}
	})
	return nil
}

func (s *Store) SetLoading(loading bool) {
	s.updateIfChanged(func(sn *domain.Snapshot) bool {
		if sn.Loading == loading {
			return false
		}
		sn.Loading = loading
		return true
	})
}

func (s *Store) MarkNotificationsSeen() {
	s.setNotificationsSeen(true)
}

func (s *Store) ResetNotificationsSeen() {
	s.setNotificationsSeen(false)
}

func (s *Store) setNotificationsSeen(seen bool) {
	s.updateIfChanged(func(sn *domain.Snapshot) bool {
		if sn.NotificationsSeen == seen {
			return false
		}
		sn.NotificationsSeen = seen
		return true
	})
}

// Snapshot devuelve una copia del estado; la identidad no comparte memoria
// con el store.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySnap()
}

func (s *Store) State() domain.AuthState {
	return s.Snapshot().State()
}

// Identity devuelve una copia de la identidad actual, o nil.
func (s *Store) Identity() *domain.Identity {
	return s.Snapshot().Identity
}

func (s *Store) Loading() bool {
	return s.Snapshot().Loading
}

func (s *Store) NotificationsSeen() bool {
	return s.Snapshot().NotificationsSeen
}

// Subscribe registra fn para cada snapshot publicado. fn corre fuera del
// lock del store y puede llamar a sus métodos.
func (s *Store) Subscribe(fn func(domain.Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) update(fn func(*domain.Snapshot)) domain.Snapshot {
	return s.updateIfChanged(func(sn *domain.Snapshot) bool {
		fn(sn)
		return true
	})
}

func (s *Store) updateIfChanged(fn func(*domain.Snapshot) bool) domain.Snapshot {
	s.mu.Lock()
	if !fn(&s.snap) {
		snap := s.copySnap()
		s.mu.Unlock()
		return snap
	}
	snap := s.copySnap()
	subs := make([]func(domain.Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	// Cada suscriptor recibe su propia identidad.
	for _, sub := range subs {
		own := snap
		own.Identity = snap.Identity.Clone()
		sub(own)
	}
	return snap
}

// copySnap requiere s.mu tomado.
func (s *Store) copySnap() domain.Snapshot {
	snap := s.snap
	snap.Identity = s.snap.Identity.Clone()
	return snap
}

func (s *Store) readIdentity(ctx context.Context) *domain.Identity {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := s.kv.Get(opCtx, IdentityKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.report("restore", err)
		return nil
	}
	plain, err := s.sealer.Open(raw)
	if err != nil {
		s.report("restore", err)
		return nil
	}
	var id domain.Identity
	if err := json.Unmarshal([]byte(plain), &id); err != nil {
		s.report("restore", err)
		return nil
	}
	if !id.Valid() {
		s.report("restore", ErrInvalidIdentity)
		return nil
	}
	return &id
}

func (s *Store) persist(ctx context.Context, op string, id *domain.Identity) {
	blob, err := json.Marshal(id)
	if err != nil {
		s.report(op, err)
		return
	}
	sealed, err := s.sealer.Seal(string(blob))
	if err != nil {
		s.report(op, err)
		return
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.kv.Set(opCtx, IdentityKey, sealed); err != nil {
		s.report(op, err)
	}
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Store) report(op string, err error) {
	s.logger.Warn("session storage failure", zap.String("op", op), zap.Error(err))
	if s.onError != nil {
		s.onError(op, err)
	}
}
