// Package apperr содержит таксономию ошибок сервиса.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки, по нему API выбирает HTTP-статус.
type Kind string

const (
	UnsupportedFormat   Kind = "UnsupportedFormat"
	ExtractionFailed    Kind = "ExtractionFailed"
	ProviderUnavailable Kind = "ProviderUnavailable"
	StorageUnavailable  Kind = "StorageUnavailable"
	InvalidRequest      Kind = "InvalidRequest"
)

// Sentinel values for errors.Is checks.
var (
	ErrUnsupportedFormat   = &Error{Kind: UnsupportedFormat}
	ErrExtractionFailed    = &Error{Kind: ExtractionFailed}
	ErrProviderUnavailable = &Error{Kind: ProviderUnavailable}
	ErrStorageUnavailable  = &Error{Kind: StorageUnavailable}
	ErrInvalidRequest      = &Error{Kind: InvalidRequest}
)

// Error — ошибка с видом из таксономии.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New создаёт ошибку заданного вида.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает err видом kind. nil остаётся nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf возвращает вид первой *Error в цепочке или пустую строку.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the human-readable part of the first *Error in the chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ChunkError указывает, на каком чанке документа упала загрузка.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// ChunkIndex reports the failing chunk index, if err carries one.
func ChunkIndex(err error) (int, bool) {
	var ce *ChunkError
	if errors.As(err, &ce) {
		return ce.Index, true
	}
	return 0, false
}
