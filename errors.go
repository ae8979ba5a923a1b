package solentbase

import (
	"errors"

	"github.com/RogerMarsh/solentware-base-sub000/index"
	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

var (
	// ErrNoTransaction is returned by operations that need an open
	// transaction when none is.
	ErrNoTransaction = errors.New("no open transaction")

	// ErrTransactionOpen is returned by Begin, and by guard operations,
	// while a transaction is already open.
	ErrTransactionOpen = errors.New("transaction already open")

	// ErrUnknownFile is returned when a file was not declared at Open.
	ErrUnknownFile = errors.New("file not declared")

	// ErrUnknownField is returned when a field is not indexed on its file.
	ErrUnknownField = errors.New("field not indexed")
)

// The engine's error types live in the model package; callers matching with
// errors.As can use these names without a second import.
type (
	ConfigurationError  = model.ConfigurationError
	OriginMismatchError = model.OriginMismatchError
	ConsistencyError    = model.ConsistencyError
	NotSupportedError   = model.NotSupportedError
)

var (
	// ErrReadOnly reports a write through a read-only transaction.
	ErrReadOnly = store.ErrReadOnly

	// ErrValueByte reports an index value containing a NUL byte, which the
	// row-key encoding cannot carry.
	ErrValueByte = index.ErrValueByte
)
