package parser

import (
	"errors"
	"fmt"
)

// Kind - класс ошибки разбора лога
type Kind uint8

const (
	// FormatUnrecognized - ни CSV-заголовок, ни XML-пролог не распознаны
	FormatUnrecognized Kind = iota + 1
	// SchemaInvalid - нет обязательных колонок/атрибутов или нарушена структура XML
	SchemaInvalid
	// MalformedRecord - значение не приводится к нужному типу
	MalformedRecord
)

var (
	ErrFormatUnrecognized = errors.New("format unrecognized")
	ErrSchemaInvalid      = errors.New("schema invalid")
	ErrMalformedRecord    = errors.New("malformed record")
)

func (k Kind) sentinel() error {
	switch k {
	case FormatUnrecognized:
		return ErrFormatUnrecognized
	case SchemaInvalid:
		return ErrSchemaInvalid
	default:
		return ErrMalformedRecord
	}
}

func (k Kind) String() string {
	return k.sentinel().Error()
}

// ParseError - фатальная ошибка разбора. Частичный результат никогда не возвращается.
// Line - номер строки исходного файла (0, если неизвестен).
type ParseError struct {
	Kind   Kind
	Line   int
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Kind.String()
	if e.Line > 0 {
		msg = fmt.Sprintf("%s: line %d", msg, e.Line)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrSchemaInvalid)
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

func newError(kind Kind, line int, err error, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Line: line, Detail: fmt.Sprintf(format, args...), Err: err}
}
