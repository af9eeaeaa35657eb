package parser

import (
	"fmt"
	"strings"
)

// XMLPrologue - первая строка XML-лога JMeter. Сравнение строгое, как в исходном формате.
const XMLPrologue = `<?xml version="1.0" encoding="UTF-8"?>`

// RequiredColumns - колонки, которые обязаны встречаться в CSV-заголовке
var RequiredColumns = []string{"timeStamp", "elapsed", "label", "success", "bytes", "allThreads", "Latency"}

// Format - формат исходного лога
type Format uint8

const (
	FormatCSV Format = iota + 1
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXML:
		return "xml"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Detect определяет формат по первой строке файла
func Detect(firstLine string) (Format, error) {
	line := strings.TrimPrefix(firstLine, "\uFEFF")
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == XMLPrologue:
		return FormatXML, nil
	case strings.TrimSpace(line) == "":
		return 0, newError(FormatUnrecognized, 1, nil, "empty first line")
	case strings.HasPrefix(strings.TrimSpace(line), "<"):
		return 0, newError(FormatUnrecognized, 1, nil, "xml without %q declaration", XMLPrologue)
	}
	return FormatCSV, nil
}

// ValidateHeader проверяет наличие обязательных колонок.
// Проверка нестрогая: достаточно, чтобы имя встречалось в строке заголовка как подстрока.
func ValidateHeader(line string) error {
	var missing []string
	for _, col := range RequiredColumns {
		if !strings.Contains(line, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return newError(SchemaInvalid, 1, nil, "invalid csv header, missing %s", strings.Join(missing, ","))
	}
	return nil
}
