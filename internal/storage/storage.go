package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indica que não há objeto sob a chave pedida.
var ErrNotFound = errors.New("storage: objeto não encontrado")

// BlobStore grava o corpo recebido sob uma chave lógica.
// Uma nova gravação na mesma chave substitui a anterior.
// size < 0 significa tamanho desconhecido.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
}
