package localrt

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

type structInfo struct {
	tagged map[string][]int // `graphql:"name"`
	folded map[string][]int // lower-cased Go field name
}

func (si *structInfo) lookup(field string) ([]int, bool) {
	if idx, ok := si.tagged[field]; ok {
		return idx, true
	}
	idx, ok := si.folded[strings.ToLower(field)]
	return idx, ok
}

var structInfos sync.Map // reflect.Type -> *structInfo

// project reads field from source. Structs are matched by the `graphql`
// tag first and then by case-insensitive field name; maps by key. A nil
// source or a missing map key projects to nil.
func project(source any, field string) (any, error) {
	if source == nil {
		return nil, nil
	}
	if m, ok := source.(map[string]any); ok {
		return m[field], nil
	}

	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot read field %q from %T", field, source)
	}

	idx, ok := infoFor(rv.Type()).lookup(field)
	if !ok {
		return nil, fmt.Errorf("%s has no field for %q", rv.Type(), field)
	}
	return rv.FieldByIndex(idx).Interface(), nil
}

func infoFor(t reflect.Type) *structInfo {
	if v, ok := structInfos.Load(t); ok {
		return v.(*structInfo)
	}
	si := &structInfo{tagged: map[string][]int{}, folded: map[string][]int{}}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		switch tag := f.Tag.Get("graphql"); tag {
		case "-":
		case "":
			si.folded[strings.ToLower(f.Name)] = f.Index
		default:
			si.tagged[tag] = f.Index
		}
	}
	v, _ := structInfos.LoadOrStore(t, si)
	return v.(*structInfo)
}
