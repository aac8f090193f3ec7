package report

import (
	"reflect"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// table is rows flattened to named columns. Cell values keep their Go type
// (float64, int, bool, string, []string) or nil for absent pointers.
type table struct {
	header []string
	rows   [][]any
}

var timeType = reflect.TypeOf(time.Time{})

type field struct {
	name string
	path []int
}

// flatten turns a slice of structs into a table. Nested and embedded
// structs are inlined; a column name seen twice keeps its first position.
func flatten(rows any) (*table, error) {
	v := reflect.ValueOf(rows)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		s := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
		s.Index(0).Set(v)
		v = s
	}
	if v.Kind() != reflect.Slice {
		return nil, eris.Errorf("report: cannot tabulate %T", rows)
	}

	elem := v.Type().Elem()
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil, eris.Errorf("report: cannot tabulate slice of %s", elem)
	}

	fields := collect(elem, nil, map[string]bool{})
	t := &table{header: make([]string, len(fields))}
	for i, f := range fields {
		t.header[i] = f.name
	}

	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		for row.Kind() == reflect.Pointer {
			row = row.Elem()
		}
		cells := make([]any, len(fields))
		for j, f := range fields {
			cells[j] = cell(row, f.path)
		}
		t.rows = append(t.rows, cells)
	}
	return t, nil
}

func collect(t reflect.Type, prefix []int, seen map[string]bool) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		path := append(append([]int{}, prefix...), i)

		ft := sf.Type
		if ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.Struct {
			ft = ft.Elem()
		}
		name := jsonName(sf)
		if name == "-" {
			continue
		}
		if ft.Kind() == reflect.Struct && ft != timeType {
			out = append(out, collect(ft, path, seen)...)
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, field{name: name, path: path})
	}
	return out
}

func jsonName(sf reflect.StructField) string {
	tag := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
	if tag == "" {
		return strings.ToLower(sf.Name)
	}
	return tag
}

// cell walks path, returning nil when it crosses a nil pointer.
func cell(v reflect.Value, path []int) any {
	for _, i := range path {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.String {
			out := make([]string, v.Len())
			for i := range out {
				out[i] = v.Index(i).String()
			}
			return out
		}
	}
	return v.Interface()
}
