package room

// CityOwner is the sentinel owner of unsold parcels.
const CityOwner = "City"

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Parcel is one cell of the fixed N×N grid. Every coordinate has exactly
// one Parcel, created at room init and never destroyed.
type Parcel struct {
	Owner      string
	Price      float64
	LastPaid   float64 // price actually paid on the last sale
	BuildingID string  // empty when vacant
}

func (r *Room) initGrid() {
	n := r.cfg.GridSize
	r.grid = make([][]Parcel, n)
	for i := range r.grid {
		r.grid[i] = make([]Parcel, n)
		for j := range r.grid[i] {
			r.grid[i][j] = Parcel{Owner: CityOwner, Price: r.cfg.ParcelBasePrice}
		}
	}
}

func (r *Room) inBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < r.cfg.GridSize && c.Col >= 0 && c.Col < r.cfg.GridSize
}

func (r *Room) parcelAt(c Coord) *Parcel {
	if !r.inBounds(c) {
		return nil
	}
	return &r.grid[c.Row][c.Col]
}

// neighbors8 visits the 8-adjacent in-bounds coordinates.
func (r *Room) neighbors8(c Coord, fn func(Coord)) {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			n := Coord{Row: c.Row + dr, Col: c.Col + dc}
			if r.inBounds(n) {
				fn(n)
			}
		}
	}
}

func chebyshev(a, b Coord) int {
	dr := a.Row - b.Row
	if dr < 0 {
		dr = -dr
	}
	dc := a.Col - b.Col
	if dc < 0 {
		dc = -dc
	}
	if dr > dc {
		return dr
	}
	return dc
}
