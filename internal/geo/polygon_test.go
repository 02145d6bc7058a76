package geo

import "testing"

const unitSquare = `[[[0,0],[0,10],[10,10],[10,0],[0,0]]]`
const unitSquareMulti = `[[[[0,0],[0,10],[10,10],[10,0],[0,0]]]]`

func TestParseSinglePolygonAutoWraps(t *testing.T) {
	mp, err := Parse(unitSquare)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mp) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(mp))
	}
}

func TestParseMultiPolygon(t *testing.T) {
	mp, err := Parse(unitSquareMulti)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mp) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(mp))
	}
}

func TestParseRejectsShortRing(t *testing.T) {
	_, err := Parse(`[[[0,0],[0,10]]]`)
	if err == nil {
		t.Fatal("expected error for ring with fewer than 3 points")
	}
}

func TestParseRejectsBadCoordinateArity(t *testing.T) {
	_, err := Parse(`[[[0,0,0],[0,10,0],[10,10,0],[0,0,0]]]`)
	if err == nil {
		t.Fatal("expected error for coordinate with 3 elements")
	}
}

func TestContainsCanonicalCases(t *testing.T) {
	mp, err := Parse(unitSquare)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name string
		pt   Point
		want bool
	}{
		{"center", Point{Lon: 5, Lat: 5}, true},
		{"outside east", Point{Lon: 15, Lat: 5}, false},
		{"outside west", Point{Lon: -5, Lat: 5}, false},
		{"outside north", Point{Lon: 5, Lat: 15}, false},
		{"outside south", Point{Lon: 5, Lat: -5}, false},
		{"near edge but inside", Point{Lon: 9.999, Lat: 5}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := mp.Contains(c.pt); got != c.want {
				t.Errorf("Contains(%v) = %v, want %v", c.pt, got, c.want)
			}
		})
	}
}

func TestContainsSecondPolygonInMulti(t *testing.T) {
	raw := `[[[[0,0],[0,10],[10,10],[10,0],[0,0]]],[[[100,100],[100,110],[110,110],[110,100],[100,100]]]]`
	mp, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mp.Contains(Point{Lon: 105, Lat: 105}) {
		t.Error("expected point inside second polygon to be contained")
	}
	if mp.Contains(Point{Lon: 50, Lat: 50}) {
		t.Error("expected point between the two polygons to be outside")
	}
}
