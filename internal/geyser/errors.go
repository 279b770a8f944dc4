package geyser

import "fmt"

// ErrorKind classifies a PluginError the way the host reports it.
type ErrorKind uint8

const (
	ErrConfigFileOpen ErrorKind = iota
	ErrConfigFileRead
	ErrAccountsUpdate
	ErrSlotStatusUpdate
	ErrTransactionUpdate
	ErrCustom
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConfigFileOpen:
		return "config file open"
	case ErrConfigFileRead:
		return "config file read"
	case ErrAccountsUpdate:
		return "accounts update"
	case ErrSlotStatusUpdate:
		return "slot status update"
	case ErrTransactionUpdate:
		return "transaction update"
	default:
		return "custom"
	}
}

// PluginError is the error type returned across the host boundary.
type PluginError struct {
	Kind ErrorKind
	Err  error
}

// NewError wraps err as a PluginError of the given kind.
func NewError(kind ErrorKind, err error) *PluginError {
	return &PluginError{Kind: kind, Err: err}
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("geyser plugin %s error: %v", e.Kind, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }
