package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Validation error codes.
const (
	CodeRequired = "required"
	CodeType     = "type"
	CodeEnum     = "enum"
	CodeRange    = "range"
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("Field '%s': %s", e.Field, e.Message)
}

// Validate checks fields against the schema. A nil schema accepts anything.
// Unknown fields are allowed; the contract is not closed. Errors are returned
// in schema declaration order, then by field name.
func (s *Schema) Validate(fields map[string]interface{}) []ValidationError {
	if s == nil {
		return nil
	}
	var errs []ValidationError

	for _, name := range s.Fields.Order {
		def := s.Fields.Defs[name]
		val, exists := fields[name]
		if !exists || val == nil {
			if def.Required && def.Default == nil {
				errs = append(errs, ValidationError{
					Field:   name,
					Code:    CodeRequired,
					Message: "Required field is missing",
				})
			}
			continue
		}
		if err := validateFieldValue(val, def); err != nil {
			errs = append(errs, *err.withField(name))
		}
	}
	return errs
}

type fieldErr struct {
	code string
	msg  string
}

func (e *fieldErr) withField(name string) *ValidationError {
	return &ValidationError{Field: name, Code: e.code, Message: e.msg}
}

func typeErr(format string, args ...interface{}) *fieldErr {
	return &fieldErr{code: CodeType, msg: fmt.Sprintf(format, args...)}
}

func validateFieldValue(value interface{}, def *FieldDefinition) *fieldErr {
	switch def.Type {
	case FieldTypeAny, "":
		return nil

	case FieldTypeString:
		if _, ok := AsString(value); !ok {
			return typeErr("expected string, got %s", Describe(value))
		}

	case FieldTypeNumber:
		n, ok := AsNumber(value)
		if !ok {
			return typeErr("expected number, got %s", Describe(value))
		}
		if def.Min != nil && n < *def.Min {
			return &fieldErr{code: CodeRange, msg: fmt.Sprintf("value %v is below minimum %v", n, *def.Min)}
		}
		if def.Max != nil && n > *def.Max {
			return &fieldErr{code: CodeRange, msg: fmt.Sprintf("value %v is above maximum %v", n, *def.Max)}
		}

	case FieldTypeBool:
		if _, ok := value.(bool); !ok {
			return typeErr("expected boolean, got %s", Describe(value))
		}

	case FieldTypeArray:
		arr, ok := value.([]interface{})
		if !ok {
			return typeErr("expected array, got %s", Describe(value))
		}
		if def.Items != "" && def.Items != FieldTypeAny {
			item := &FieldDefinition{Type: def.Items}
			for i, v := range arr {
				if err := validateFieldValue(v, item); err != nil {
					return typeErr("element %d: %s", i, err.msg)
				}
			}
		}

	case FieldTypeObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return typeErr("expected object, got %s", Describe(value))
		}

	case FieldTypeEnum:
		s, ok := AsString(value)
		if !ok {
			if n, isNum := AsNumber(value); isNum {
				s = formatNumber(n)
			} else if b, isBool := value.(bool); isBool {
				s = fmt.Sprintf("%t", b)
			} else {
				return typeErr("expected enum value (string), got %s", Describe(value))
			}
		}
		for _, allowed := range def.Values {
			if s == allowed {
				return nil
			}
		}
		return &fieldErr{
			code: CodeEnum,
			msg:  fmt.Sprintf("invalid enum value '%s', expected one of: %s", s, strings.Join(def.Values, ", ")),
		}
	}

	return nil
}

// AsString returns v as a string when it is a YAML string scalar. Timestamps
// decoded by the YAML library count as strings.
func AsString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case time.Time:
		return s.Format(time.RFC3339), true
	}
	return "", false
}

// AsNumber returns v as a float64 when it is any YAML numeric scalar.
func AsNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// Describe names the YAML kind of v for error messages.
func Describe(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string, time.Time:
		return "string"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	if _, ok := AsNumber(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// Scalar formats a scalar leaf as a string. ok is false for arrays, objects
// and null.
func Scalar(v interface{}) (string, bool) {
	if s, ok := AsString(v); ok {
		return s, true
	}
	if n, ok := AsNumber(v); ok {
		return formatNumber(n), true
	}
	if b, ok := v.(bool); ok {
		return fmt.Sprintf("%t", b), true
	}
	return "", false
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// SortedKeys returns the keys of a field map in lexical order.
func SortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
