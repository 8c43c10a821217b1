package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"clipfeed/internal/api"
	"clipfeed/internal/domain"
	"clipfeed/internal/session"
)

// ErrSessionExpired indica que el refresh token fue rechazado y la sesión
// se cerró localmente.
var ErrSessionExpired = errors.New("session expired")

// APIClient es el subconjunto de la API remota que usan los flujos de auth.
type APIClient interface {
	Login(ctx context.Context, username, password string) (domain.Identity, error)
	Register(ctx context.Context, username, email, password string) (domain.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	User(ctx context.Context, access string, id int64) (domain.User, error)
}

// Service coordina la API y el store de sesión.
type Service struct {
	api    APIClient
	store  *session.Store
	clock  clockwork.Clock
	skew   time.Duration
	logger *zap.Logger

	refreshGroup singleflight.Group
}

func NewService(client APIClient, store *session.Store, clock clockwork.Clock, skew time.Duration, logger *zap.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:    client,
		store:  store,
		clock:  clock,
		skew:   skew,
		logger: logger,
	}
}

// SignIn autentica contra la API y deja la identidad en el store. El flag
// de carga queda en false en cualquier salida.
func (s *Service) SignIn(ctx context.Context, username, password string) (domain.Identity, error) {
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)

	id, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.logger.Warn("sign in failed", zap.String("username", username), zap.Error(err))
		return domain.Identity{}, err
	}
	if err := s.store.Login(ctx, id); err != nil {
		return domain.Identity{}, err
	}
	s.logger.Info("signed in", zap.Int64("user_id", id.User.ID))
	return id, nil
}

func (s *Service) SignUp(ctx context.Context, username, email, password string) (domain.Identity, error) {
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)

	id, err := s.api.Register(ctx, username, email, password)
	if err != nil {
		s.logger.Warn("sign up failed", zap.String("username", username), zap.Error(err))
		return domain.Identity{}, err
	}
	if err := s.store.Login(ctx, id); err != nil {
		return domain.Identity{}, err
	}
	s.logger.Info("signed up", zap.Int64("user_id", id.User.ID))
	return id, nil
}

// SignOut es local; no hay endpoint de logout en la API.
func (s *Service) SignOut(ctx context.Context) {
	s.store.Logout(ctx)
}

// AccessToken devuelve un access token usable, refrescándolo una sola vez
// aunque lo pidan varias llamadas a la vez.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	id := s.store.Identity()
	if id == nil {
		return "", session.ErrNotAuthenticated
	}
	if !s.expiring(id.Tokens.Access) {
		return id.Tokens.Access, nil
	}

	v, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		cur := s.store.Identity()
		if cur == nil {
			return "", session.ErrNotAuthenticated
		}
		if !s.expiring(cur.Tokens.Access) {
			return cur.Tokens.Access, nil
		}
		if cur.Tokens.Refresh == "" || s.expiring(cur.Tokens.Refresh) {
			s.expire(ctx, "refresh token missing or expired")
			return "", ErrSessionExpired
		}

		pair, err := s.api.Refresh(ctx, cur.Tokens.Refresh)
		if errors.Is(err, api.ErrUnauthorized) {
			s.expire(ctx, "refresh token rejected")
			return "", ErrSessionExpired
		}
		if err != nil {
			return "", err
		}
		if pair.Refresh == "" {
			pair.Refresh = cur.Tokens.Refresh
		}
		if err := s.store.UpdateTokens(ctx, pair); err != nil {
			return "", err
		}
		return pair.Access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Profile trae el perfil actualizado del usuario en sesión. Los contadores
// guardados en el store pueden estar viejos.
func (s *Service) Profile(ctx context.Context) (domain.User, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return domain.User{}, err
	}
	id := s.store.Identity()
	if id == nil {
		return domain.User{}, session.ErrNotAuthenticated
	}
	u, err := s.api.User(ctx, token, id.User.ID)
	if err != nil {
		s.logger.Warn("fetch profile failed", zap.Int64("user_id", id.User.ID), zap.Error(err))
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) expire(ctx context.Context, reason string) {
	s.logger.Info("session expired", zap.String("reason", reason))
	s.store.Logout(ctx)
}

// expiring lee el exp del JWT sin verificar la firma: la firma la valida
// el servidor. Un token opaco o sin exp se considera vigente.
func (s *Service) expiring(token string) bool {
	if token == "" {
		return true
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.clock.Now().Add(s.skew).Before(claims.ExpiresAt.Time)
}
