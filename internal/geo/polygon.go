// Package geo implements multi-polygon point-in-polygon containment via
// ray casting. It replaces a circular geofence model (center + radius) with
// arbitrary polygon rings, since a real working area is rarely a circle.
package geo

import (
	"encoding/json"
	"fmt"
)

// Point is a [longitude, latitude] pair, matching GeoJSON coordinate order.
type Point struct {
	Lon float64
	Lat float64
}

// Ring is an ordered, closed-or-open loop of points; only the outer ring
// (index 0) of each Polygon participates in containment — holes are
// ignored, matching the scope of this core's working-area model.
type Ring []Point

// Polygon is one or more rings; index 0 is the outer boundary.
type Polygon []Ring

// MultiPolygon is an ordered set of polygons. A point is contained if it
// falls inside the outer ring of any one of them.
type MultiPolygon []Polygon

const minRingPoints = 3

// Parse decodes a working-area payload. The wire shape is either a single
// polygon (`[[[lon,lat],...]]` — one or more rings) or a list of polygons
// (`[[[[lon,lat],...]]]`); a bare single polygon is auto-wrapped into a
// one-element MultiPolygon.
func Parse(raw string) (MultiPolygon, error) {
	if raw == "" {
		return nil, fmt.Errorf("geo: empty working area payload")
	}

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("geo: invalid json: %w", err)
	}

	depth, err := coordinateDepth(generic)
	if err != nil {
		return nil, err
	}

	switch depth {
	case 3:
		var poly [][][]float64
		if err := json.Unmarshal([]byte(raw), &poly); err != nil {
			return nil, fmt.Errorf("geo: invalid single polygon: %w", err)
		}
		p, err := toPolygon(poly)
		if err != nil {
			return nil, err
		}
		return MultiPolygon{p}, nil
	case 4:
		var multi [][][][]float64
		if err := json.Unmarshal([]byte(raw), &multi); err != nil {
			return nil, fmt.Errorf("geo: invalid multi-polygon: %w", err)
		}
		if len(multi) == 0 {
			return nil, fmt.Errorf("geo: multi-polygon has no polygons")
		}
		mp := make(MultiPolygon, 0, len(multi))
		for _, poly := range multi {
			p, err := toPolygon(poly)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("geo: unrecognized working area shape (nesting depth %d)", depth)
	}
}

func toPolygon(rings [][][]float64) (Polygon, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("geo: polygon has no rings")
	}
	p := make(Polygon, 0, len(rings))
	for _, ring := range rings {
		if len(ring) < minRingPoints {
			return nil, fmt.Errorf("geo: ring has %d points, need at least %d", len(ring), minRingPoints)
		}
		r := make(Ring, 0, len(ring))
		for _, coord := range ring {
			if len(coord) != 2 {
				return nil, fmt.Errorf("geo: coordinate has %d elements, need exactly 2", len(coord))
			}
			r = append(r, Point{Lon: coord[0], Lat: coord[1]})
		}
		p = append(p, r)
	}
	return p, nil
}

// coordinateDepth inspects the decoded JSON to determine whether raw is a
// single polygon (rings of coordinate pairs, depth 3) or a multi-polygon
// (a list of those, depth 4).
func coordinateDepth(v any) (int, error) {
	depth := 0
	cur := v
	for {
		arr, ok := cur.([]any)
		if !ok {
			return 0, fmt.Errorf("geo: expected nested arrays, found %T at depth %d", cur, depth)
		}
		depth++
		if len(arr) == 0 {
			return 0, fmt.Errorf("geo: empty array at depth %d", depth)
		}
		// A coordinate is an array of numbers; arity is validated later so a
		// malformed (e.g. 3-element) coordinate fails with a clear error
		// instead of being misread as a deeper level of nesting.
		if depth >= 2 {
			if pair, ok := arr[0].([]any); ok && len(pair) > 0 {
				if _, isNum := pair[0].(float64); isNum {
					return depth + 1, nil
				}
			}
		}
		cur = arr[0]
	}
}

// Contains reports whether pt falls inside the outer ring of any polygon in
// mp, using the even-odd ray-casting rule.
func (mp MultiPolygon) Contains(pt Point) bool {
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		if poly[0].contains(pt) {
			return true
		}
	}
	return false
}

// contains implements the standard ray-casting point-in-polygon test against
// a single ring: cast a ray from pt to +infinity along x and count edge
// crossings; odd count means inside.
func (r Ring) contains(pt Point) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := r[i].Lon, r[i].Lat
		xj, yj := r[j].Lon, r[j].Lat
		if (yi > pt.Lat) != (yj > pt.Lat) {
			xCross := (xj-xi)*(pt.Lat-yi)/(yj-yi) + xi
			if pt.Lon < xCross {
				inside = !inside
			}
		}
	}
	return inside
}
