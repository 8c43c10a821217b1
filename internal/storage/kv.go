package storage

import (
	"context"
	"errors"
)

// ErrNotFound indica que la clave no existe en el almacenamiento.
var ErrNotFound = errors.New("storage: key not found")

// KV es el contrato de almacenamiento durable clave/valor.
// Remove sobre una clave inexistente no es un error.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
