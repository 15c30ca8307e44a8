package model

// JSONMap is an opaque structured payload (checker details, raw evidence).
// It is carried through the pipeline unchanged and stored as JSONB; no schema
// is imposed on it.
type JSONMap map[string]any

// Clone returns a shallow copy, or nil for a nil map.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
