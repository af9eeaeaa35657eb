package parser

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"JMLogPump/internal/models"
)

// RequiredAttrs - атрибуты, обязательные для sample и httpSample
var RequiredAttrs = []string{"t", "lt", "ts", "s", "lb", "by", "ng", "na"}

const (
	rootElement   = "testResults"
	sampleElement = "sample"
	httpElement   = "httpSample"
	schemaVersion = "1.2"
)

// XMLDecoder разбирает иерархический XML-лог.
// Структура проверяется по всему документу до того, как будут возвращены ошибки значений:
// при нарушении схемы результат всегда SchemaInvalid.
type XMLDecoder struct{}

func (XMLDecoder) Decode(r io.Reader) (*Result, error) {
	d := xml.NewDecoder(r)

	res := &Result{Format: FormatXML, Typed: true}
	var (
		depth      int
		seenRoot   bool
		started    bool
		parent     models.Record
		sumElapsed int64
		sumLatency int64
		badValue   error
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		line, _ := d.InputPos()
		if err != nil {
			return nil, newError(SchemaInvalid, line, err, "xml syntax")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch depth {
			case 0:
				if name != rootElement {
					return nil, newError(SchemaInvalid, line, nil, "root element %q, want %q", name, rootElement)
				}
				if v, ok := attr(t, "version"); ok && v != schemaVersion {
					return nil, newError(SchemaInvalid, line, nil, "%s version %q, want %q", rootElement, v, schemaVersion)
				}
				seenRoot = true
			case 1:
				if name != sampleElement {
					return nil, newError(SchemaInvalid, line, nil, "element %q not allowed in %s", name, rootElement)
				}
				if err := checkAttrs(t, line); err != nil {
					return nil, err
				}
				rec, err := sampleRecord(t, models.Sample, line)
				if err != nil && badValue == nil {
					badValue = err
				}
				parent = rec
				sumElapsed, sumLatency = 0, 0
				if !started {
					res.Start = rec.Timestamp
					started = true
				}
			case 2:
				if name != httpElement {
					return nil, newError(SchemaInvalid, line, nil, "element %q not allowed in %s", name, sampleElement)
				}
				if err := checkAttrs(t, line); err != nil {
					return nil, err
				}
				child, err := sampleRecord(t, models.HTTPSample, line)
				if err != nil && badValue == nil {
					badValue = err
				}
				res.Records = append(res.Records, child)
				sumElapsed += child.Elapsed
				sumLatency += child.Latency
			default:
				return nil, newError(SchemaInvalid, line, nil, "%s must be empty, found %q", httpElement, name)
			}
			depth++

		case xml.EndElement:
			depth--
			if depth == 1 {
				// собственные t/lt транзакции заменяются суммой по дочерним запросам
				parent.Elapsed = sumElapsed
				parent.Latency = sumLatency
				res.Records = append(res.Records, parent)
			}

		case xml.CharData:
			if depth > 0 && strings.TrimSpace(string(t)) != "" {
				return nil, newError(SchemaInvalid, line, nil, "unexpected text content")
			}
		}
	}

	if !seenRoot {
		return nil, newError(SchemaInvalid, 0, nil, "no %s root element", rootElement)
	}
	if badValue != nil {
		return nil, badValue
	}
	if len(res.Records) == 0 {
		return nil, newError(MalformedRecord, 0, nil, "no records")
	}
	return res, nil
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func checkAttrs(el xml.StartElement, line int) error {
	var missing []string
	for _, name := range RequiredAttrs {
		if _, ok := attr(el, name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return newError(SchemaInvalid, line, nil, "%s: missing attributes %s", el.Name.Local, strings.Join(missing, ","))
	}
	return nil
}

// sampleRecord собирает запись из атрибутов элемента.
// Ошибка значения не прерывает разбор: сначала должна завершиться проверка структуры.
func sampleRecord(el xml.StartElement, typ models.RecordType, line int) (models.Record, error) {
	rec := models.Record{Type: typ}
	rec.Label, _ = attr(el, "lb")
	rec.Success, _ = attr(el, "s")

	ints := []struct {
		name string
		dst  *int64
	}{
		{"ts", &rec.Timestamp},
		{"t", &rec.Elapsed},
		{"lt", &rec.Latency},
		{"by", &rec.RawBytes},
	}
	for _, f := range ints {
		raw, _ := attr(el, f.name)
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return rec, newError(MalformedRecord, line, err, "%s %s=%q", el.Name.Local, f.name, raw)
		}
		*f.dst = v
	}
	rec.Bytes = rec.RawBytes / 1024

	// na необязателен по значению: при ошибке число пользователей остаётся пустым
	raw, _ := attr(el, "na")
	if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
		rec.ActiveUsers = v
		rec.HasActiveUsers = true
	}
	return rec, nil
}
