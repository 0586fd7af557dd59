package taxonomy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a taxonomy row that cannot be loaded.
type ValidationError struct {
	Line   int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("taxonomy: line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("taxonomy: line %d: %s %s", e.Line, e.Field, e.Reason)
}

// Row is one raw CSV record before validation.
type Row struct {
	Level     string `validate:"required,oneof=L1 L2 L3"`
	Sector    string `validate:"required"`
	Subsector string `validate:"required_if=Level L2,required_if=Level L3"`
	Category  string `validate:"required_if=Level L3"`
	Slug      string `validate:"required"`
	Experts   string
}

var rowValidate = validator.New()

var requiredColumns = []string{"sector", "level", "url"}

// Load reads the taxonomy CSV at path.
func Load(path string) ([]Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: open %s: %w", path, err)
	}
	defer f.Close()
	entities, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return entities, nil
}

// Parse reads CSV with a header naming the columns sector, level, subsector,
// category, url and experts. The slug is the last path segment of url. Any
// invalid row aborts the whole load.
func Parse(r io.Reader) ([]Entity, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Line: 1, Reason: "missing header row"}
		}
		return nil, fmt.Errorf("taxonomy: read header: %w", err)
	}
	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, &ValidationError{Line: 1, Field: name, Reason: "column is missing"}
		}
	}

	var entities []Entity
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("taxonomy: read line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		row := Row{
			Level:     field("level"),
			Sector:    field("sector"),
			Subsector: field("subsector"),
			Category:  field("category"),
			Slug:      slugFromURL(field("url")),
			Experts:   field("experts"),
		}
		entity, err := row.Entity(line)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// Entity validates the row and converts it. Fields that do not belong to the
// row's level are dropped.
func (row Row) Entity(line int) (Entity, error) {
	if err := rowValidate.Struct(row); err != nil {
		return Entity{}, toValidationError(line, row, err)
	}
	e := Entity{
		Level:      Level(row.Level),
		Sector:     row.Sector,
		Slug:       row.Slug,
		Attributes: ParseAttributes(row.Experts),
	}
	if e.Level != L1 {
		e.Subsector = row.Subsector
	}
	if e.Level == L3 {
		e.Category = row.Category
	}
	return e, nil
}

func toValidationError(line int, row Row, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("taxonomy: line %d: %w", line, err)
	}
	first := fieldErrs[0]
	field := strings.ToLower(first.Field())
	if field == "slug" {
		field = "url"
	}
	reason := "is required"
	switch first.Tag() {
	case "oneof":
		reason = fmt.Sprintf("%q is not one of L1, L2, L3", row.Level)
	case "required_if":
		reason = fmt.Sprintf("is required for %s rows", row.Level)
	}
	return &ValidationError{Line: line, Field: field, Reason: reason}
}

func slugFromURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	parts := strings.Split(trimmed, "/")
	return strings.TrimSpace(parts[len(parts)-1])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
