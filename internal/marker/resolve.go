package marker

type leafletLayerHolder interface {
	LeafletLayer() any
}

type layerHolder interface {
	Layer() any
}

type markerHolder interface {
	Marker() any
}

// Resolve finds the marker handle behind a subject.
//
// Subjects wrap their handle differently, so accessors are tried in a fixed
// order: LeafletLayer(), Layer(), Marker(), and finally the subject itself.
// The first candidate implementing Marker wins.
func Resolve(subject any) (Marker, bool) {
	if subject == nil {
		return nil, false
	}

	var candidates []any
	if h, ok := subject.(leafletLayerHolder); ok {
		candidates = append(candidates, h.LeafletLayer())
	}
	if h, ok := subject.(layerHolder); ok {
		candidates = append(candidates, h.Layer())
	}
	if h, ok := subject.(markerHolder); ok {
		candidates = append(candidates, h.Marker())
	}
	candidates = append(candidates, subject)

	for _, c := range candidates {
		if m, ok := c.(Marker); ok && m != nil {
			return m, true
		}
	}
	return nil, false
}
