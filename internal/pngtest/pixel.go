package pngtest

// Packed-row pixel access. Rows use the container's packing: sub-byte pixels
// fill each byte from the high bits down, multi-byte samples are big-endian.

// getPixel returns the raw bits of pixel x in a packed row, for pixel sizes
// up to 64 bits.
func getPixel(row []byte, bpp, x int) uint64 {
	if bpp >= 8 {
		n := bpp / 8
		off := x * n
		var v uint64
		for i := 0; i < n; i++ {
			v = v<<8 | uint64(row[off+i])
		}
		return v
	}
	bit := x * bpp
	shift := 8 - bpp - bit%8
	return uint64(row[bit/8]>>shift) & (1<<bpp - 1)
}

// putPixel stores the raw bits of pixel x in a packed row.
func putPixel(row []byte, bpp, x int, v uint64) {
	if bpp >= 8 {
		n := bpp / 8
		off := x * n
		for i := n - 1; i >= 0; i-- {
			row[off+i] = byte(v)
			v >>= 8
		}
		return
	}
	bit := x * bpp
	shift := 8 - bpp - bit%8
	mask := byte(1<<bpp-1) << shift
	row[bit/8] = row[bit/8]&^mask | byte(v)<<shift&mask
}

// copyPixel copies pixel sx of src to pixel dx of dst.
func copyPixel(dst, src []byte, dx, sx, bpp int) {
	putPixel(dst, bpp, dx, getPixel(src, bpp, sx))
}

// rowBytes returns the packed byte count of width pixels at bpp bits each.
func rowBytes(bpp, width int) int {
	return (bpp*width + 7) / 8
}
