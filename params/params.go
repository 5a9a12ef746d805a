/*package params provides the typed key/value bags that configure each picell
subsystem. A List is built with Add, refined with Update (which refuses keys
that were never added), and consumed through the generic Get functions.*/
package params

import (
	"sort"

	"github.com/phil-mansfield/picell/errs"
)

// List is a typed key/value parameter bag.
type List struct {
	m map[string]interface{}
}

// New returns an empty parameter list.
func New() *List {
	return &List{m: map[string]interface{}{}}
}

// Add inserts or overwrites a parameter.
func (l *List) Add(key string, value interface{}) *List {
	l.m[key] = value
	return l
}

// Has reports whether key is present.
func (l *List) Has(key string) bool {
	_, ok := l.m[key]
	return ok
}

// Update changes the value of an existing parameter. Unlike Add it fails if
// the key was never added.
func (l *List) Update(key string, value interface{}) error {
	if !l.Has(key) {
		return errs.New("params", "Update", errs.Configuration,
			"no parameter named '%s'", key)
	}
	l.m[key] = value
	return nil
}

// Merge copies every parameter from o into l, overwriting on conflict.
func (l *List) Merge(o *List) {
	for k, v := range o.m {
		l.m[k] = v
	}
}

// Keys returns the parameter names in sorted order.
func (l *List) Keys() []string {
	keys := make([]string, 0, len(l.m))
	for k := range l.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get retrieves a parameter of type T. It fails if the key is missing or has
// a different type.
func Get[T any](l *List, key string) (T, error) {
	var zero T
	v, ok := l.m[key]
	if !ok {
		return zero, errs.New("params", "Get", errs.Configuration,
			"no parameter named '%s'", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, errs.New("params", "Get", errs.Configuration,
			"parameter '%s' holds %T, not the requested type", key, v)
	}
	return t, nil
}

// GetOr retrieves a parameter of type T, falling back to def when the key is
// absent. A present key of the wrong type is still an error.
func GetOr[T any](l *List, key string, def T) (T, error) {
	if !l.Has(key) {
		return def, nil
	}
	return Get[T](l, key)
}
