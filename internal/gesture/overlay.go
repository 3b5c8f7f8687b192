package gesture

// Connections lists the landmark pairs joined when drawing a hand skeleton.
var Connections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{5, 9}, {9, 10}, {10, 11}, {11, 12},
	{9, 13}, {13, 14}, {14, 15}, {15, 16},
	{13, 17}, {17, 18}, {18, 19}, {19, 20},
	{0, 17},
}

// Point is a pixel position on the preview.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is one line of the drawn skeleton.
type Segment struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Overlay is the skeleton projected onto a preview of the given size.
type Overlay struct {
	Points   []Point   `json:"points"`
	Segments []Segment `json:"segments"`
}

// Project maps landmarks to pixels. Mirror flips X for a user-facing
// camera whose preview is shown mirrored. Invalid landmarks give an empty
// overlay.
func Project(h HandLandmarks, width, height int, mirror bool) Overlay {
	if !h.Valid() {
		return Overlay{}
	}

	points := make([]Point, len(h))
	for i, l := range h {
		x := l.X
		if mirror {
			x = 1 - x
		}
		points[i] = Point{X: x * float64(width), Y: l.Y * float64(height)}
	}

	segments := make([]Segment, len(Connections))
	for i, c := range Connections {
		segments[i] = Segment{From: points[c[0]], To: points[c[1]]}
	}

	return Overlay{Points: points, Segments: segments}
}
