package scc

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки уровня файла: загрузка отклоняется целиком.
var (
	ErrVersionMismatch = errors.New("version mismatch")
	ErrSchemaMismatch  = errors.New("schema mismatch")
)

// Ошибки уровня строки/сегмента: строка пропускается, разбор продолжается.
var (
	ErrMalformedRow     = errors.New("malformed row")
	ErrOrphanGridEntry  = errors.New("grid entry before start_block")
	ErrDuplicateVolume  = errors.New("duplicate volume")
	ErrUnknownEntity    = errors.New("volume references unknown entity")
	ErrDuplicateEntity  = errors.New("duplicate entity in frame")
	ErrUnknownEntryKind = errors.New("unknown entry kind")
)

// SchemaError описывает расхождение заголовка с обязательными колонками
type SchemaError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: missing=[%s] unexpected=[%s]",
		ErrSchemaMismatch, strings.Join(e.Missing, ","), strings.Join(e.Unexpected, ","))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }

// RowError ошибка конкретной строки файла (нумерация с 1)
type RowError struct {
	Line int
	Kind string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.Kind, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
