package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"JMLogPump/internal/models"
)

// Result - нормализованные записи одного файла.
// Start - timestamp первой разобранной записи (для XML это первый sample, а не его потомок).
// Typed - в файле есть иерархия sample/httpSample.
type Result struct {
	Format  Format
	Records []models.Record
	Start   int64
	Typed   bool
}

// Decoder - общий контракт для разборщиков обоих форматов
type Decoder interface {
	Decode(r io.Reader) (*Result, error)
}

// Parse определяет формат по первой строке и разбирает весь поток целиком
func Parse(r io.Reader) (*Result, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read first line: %w", err)
	}

	format, err := Detect(first)
	if err != nil {
		return nil, err
	}

	var dec Decoder
	switch format {
	case FormatXML:
		dec = XMLDecoder{}
	default:
		dec = CSVDecoder{}
	}
	return dec.Decode(io.MultiReader(strings.NewReader(first), br))
}
