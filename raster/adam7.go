package raster

// Adam7 pass geometry. Pass p covers the pixels at
// (adam7XStart[p] + i*adam7XStep[p], adam7YStart[p] + j*adam7YStep[p]).
var (
	adam7XStart = [7]int{0, 4, 0, 2, 0, 1, 0}
	adam7YStart = [7]int{0, 0, 4, 0, 2, 0, 1}
	adam7XStep  = [7]int{8, 8, 4, 4, 2, 2, 1}
	adam7YStep  = [7]int{8, 8, 8, 4, 4, 2, 2}
)

// Adam7PassWidth returns the pixel width of pass p (0-based) for an image of
// the given width. Narrow images make some passes empty.
func Adam7PassWidth(p, width int) int {
	if width <= adam7XStart[p] {
		return 0
	}
	return (width - adam7XStart[p] + adam7XStep[p] - 1) / adam7XStep[p]
}

// Adam7PassHeight returns the row count of pass p for an image of the given
// height.
func Adam7PassHeight(p, height int) int {
	if height <= adam7YStart[p] {
		return 0
	}
	return (height - adam7YStart[p] + adam7YStep[p] - 1) / adam7YStep[p]
}

// Adam7Position returns the image coordinates of column i, row j of pass p.
func Adam7Position(p, i, j int) (x, y int) {
	return adam7XStart[p] + i*adam7XStep[p], adam7YStart[p] + j*adam7YStep[p]
}

// Adam7RowPass returns the earliest pass that contributes pixels to image
// row y.
func Adam7RowPass(y int) int {
	for p := 0; p < 7; p++ {
		if (y-adam7YStart[p])%adam7YStep[p] == 0 && y >= adam7YStart[p] {
			return p
		}
	}
	return 6
}
