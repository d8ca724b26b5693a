// Package snapshot renders tagged struct fields into a single human-readable
// line, for diagnostic log statements. It is a trimmed, single-line variant
// of a general struct-to-string utility: governor and semaphore snapshots
// are small, flat value types, so the multi-line pretty-printing a generic
// version would need is deliberately left out.
//
// A field is included when it carries `log:"include"`; its key defaults to
// the Go field name, overridable via `name:"..."`, and its rendering via
// `format:"..."` (a fmt verb, default "%v"). A value passed to Render that
// implements LogStringer is rendered via its LogString method instead of
// reflection; nested field values are always rendered through their tags,
// whether or not they implement LogStringer.
package snapshot

import (
	"fmt"
	"reflect"
	"strings"
)

// LogStringer is implemented by types that render themselves for logging
// instead of going through tag-driven reflection.
type LogStringer interface {
	LogString() string
}

const (
	includeTag = "log"
	includeVal = "include"
	nameTag    = "name"
	formatTag  = "format"
	defaultFmt = "%v"
	fieldSep   = ", "
	kvSep      = "="
)

// Render converts obj into a single-line, key=value rendering of its
// `log:"include"`-tagged fields. Nested structs, pointers, and interfaces
// are rendered recursively; pointer cycles render as "<cycle>".
func Render(obj any) string {
	if s, ok := obj.(LogStringer); ok {
		return s.LogString()
	}
	if vt := reflect.TypeOf(obj); vt != nil && vt.Kind() != reflect.Pointer {
		pv := reflect.New(vt)
		pv.Elem().Set(reflect.ValueOf(obj))
		if s, ok := pv.Interface().(LogStringer); ok {
			return s.LogString()
		}
	}
	return render(reflect.ValueOf(obj), make(map[uintptr]bool))
}

func render(v reflect.Value, visited map[uintptr]bool) string {
	if !v.IsValid() {
		return "<nil>"
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return "<nil>"
		}
		return render(v.Elem(), visited)
	case reflect.Pointer:
		if v.IsNil() {
			return "<nil>"
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return "<cycle>"
		}
		visited[ptr] = true
		return render(v.Elem(), visited)
	case reflect.Struct:
		return renderStruct(v, visited)
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func renderStruct(v reflect.Value, visited map[uintptr]bool) string {
	t := v.Type()
	var sb strings.Builder
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		ft := t.Field(i)
		if !field.CanInterface() {
			continue
		}
		if ft.Tag.Get(includeTag) != includeVal {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(fieldSep)
		}
		key := ft.Tag.Get(nameTag)
		if key == "" {
			key = ft.Name
		}
		sb.WriteString(key)
		sb.WriteString(kvSep)
		sb.WriteString(renderField(field, ft.Tag.Get(formatTag), visited))
	}
	return sb.String()
}

func renderField(field reflect.Value, format string, visited map[uintptr]bool) string {
	switch field.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Struct:
		return render(field, visited)
	}
	if format == "" {
		format = defaultFmt
	}
	return fmt.Sprintf(format, field.Interface())
}
