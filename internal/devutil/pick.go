// Package devutil has helpers for the debug commands.
package devutil

import (
	"strings"

	"canvas-sync/internal/docstore"
)

// Pick normaliza v vía JSON y devuelve solo las keys pedidas. Una key con
// puntos ("term.name") baja por objetos anidados; en el resultado queda
// con el nombre completo.
func Pick(v any, keys ...string) map[string]any {
	m, err := docstore.Normalize(v)
	if err != nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if val, ok := lookup(m, strings.Split(k, ".")); ok {
			out[k] = val
		}
	}
	return out
}

func lookup(m map[string]any, path []string) (any, bool) {
	val, ok := m[path[0]]
	if !ok || len(path) == 1 {
		return val, ok
	}
	next, ok := val.(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(next, path[1:])
}
