// Package grid converts between linear cell indices and (x, y) coordinates
// on a row-major grid.
package grid

// GetGridCoords returns the column and row of cell index on a grid cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Index returns the linear index of cell (x, y) on a grid cols wide.
func Index(x, y, cols int) int {
	return y*cols + x
}

// Wrap reduces v into [0, size), also for negative values.
func Wrap(v, size int) int {
	v %= size
	if v < 0 {
		v += size
	}
	return v
}
