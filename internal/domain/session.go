package domain

import "strings"

// TokenPair es el par de credenciales emitido por el servidor.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Identity agrupa el perfil del usuario autenticado y sus credenciales.
// Es el registro que se persiste bajo la clave "user".
type Identity struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Valid indica si la identidad trae una credencial de acceso usable.
func (i *Identity) Valid() bool {
	return i != nil && strings.TrimSpace(i.Tokens.Access) != ""
}

// Clone devuelve una copia independiente (nil-safe).
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

// AuthState es el estado observable de la sesion.
type AuthState int

const (
	StateUnknown AuthState = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot es una vista inmutable de la sesion en un instante.
type Snapshot struct {
	Identity          *Identity
	Loading           bool
	NotificationsSeen bool
	Restored          bool
}

// State deriva el estado de la maquina a partir del snapshot.
func (s Snapshot) State() AuthState {
	if s.Identity != nil {
		return StateAuthenticated
	}
	if !s.Restored {
		return StateUnknown
	}
	return StateUnauthenticated
}
