package schema

import (
	"errors"
	"fmt"
)

// FieldType is an esri field type name as used in service definitions.
type FieldType string

const (
	TypeString  FieldType = "esriFieldTypeString"
	TypeInteger FieldType = "esriFieldTypeInteger"
	TypeDouble  FieldType = "esriFieldTypeDouble"
	TypeDate    FieldType = "esriFieldTypeDate"
)

// DefaultFieldLength is the hosted-table default for string fields.
const DefaultFieldLength = 256

// FlagFieldLength bounds True/False flag fields, which hosted tables store
// as strings.
const FlagFieldLength = 16

type Field struct {
	Name   string
	Alias  string
	Type   FieldType
	Length int
}

// Table declares a hosted table's schema. The schema is fixed at first
// creation; later runs only replace contents.
type Table struct {
	Name        string
	Description string
	Fields      []Field
}

func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var (
	ErrUnknownField = errors.New("unknown_field")
	ErrValueTooLong = errors.New("value_too_long")
	ErrInvalidDate  = errors.New("invalid_date_value")
)

// Validate checks a row attribute map against the declared fields. Builders
// truncate and encode at source, so a violation here means schema drift.
func (t Table) Validate(row map[string]any) error {
	for name, value := range row {
		f, ok := t.Field(name)
		if !ok {
			return fmt.Errorf("%s.%s: %w", t.Name, name, ErrUnknownField)
		}
		if value == nil {
			continue
		}
		switch f.Type {
		case TypeString:
			s, ok := value.(string)
			if !ok {
				continue
			}
			max := f.Length
			if max <= 0 {
				max = DefaultFieldLength
			}
			if len([]rune(s)) > max {
				return fmt.Errorf("%s.%s: %d chars exceeds %d: %w", t.Name, name, len([]rune(s)), max, ErrValueTooLong)
			}
		case TypeDate:
			// The edit endpoint takes date values as epoch milliseconds.
			switch value.(type) {
			case int64, int:
			default:
				return fmt.Errorf("%s.%s: %T is not epoch milliseconds: %w", t.Name, name, value, ErrInvalidDate)
			}
		}
	}
	return nil
}

// Definition produces the addToDefinition payload for the table, including
// the object ID field the portal manages.
func (t Table) Definition() map[string]any {
	fields := make([]map[string]any, 0, len(t.Fields)+1)
	fields = append(fields, map[string]any{
		"name":     "OBJECTID",
		"alias":    "OBJECTID",
		"type":     "esriFieldTypeOID",
		"sqlType":  "sqlTypeOther",
		"nullable": false,
		"editable": false,
	})
	for _, f := range t.Fields {
		def := map[string]any{
			"name":     f.Name,
			"alias":    fieldAlias(f),
			"type":     string(f.Type),
			"sqlType":  "sqlTypeOther",
			"nullable": true,
			"editable": true,
		}
		if f.Type == TypeString {
			length := f.Length
			if length <= 0 {
				length = DefaultFieldLength
			}
			def["length"] = length
		}
		fields = append(fields, def)
	}
	return map[string]any{
		"name":          t.Name,
		"type":          "Table",
		"description":   t.Description,
		"objectIdField": "OBJECTID",
		"fields":        fields,
		"capabilities":  "Query,Create,Delete,Update,Editing",
	}
}

func fieldAlias(f Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}
