package parallel

// MinBandRows is the smallest band handed to a worker. Smaller images run
// as a single band on the calling goroutine.
const MinBandRows = 16

// Bands splits [0, height) into contiguous row ranges, about four per
// worker, none shorter than MinBandRows except the last.
func Bands(height, workers int) [][2]int {
	if height <= 0 {
		return nil
	}
	n := max(workers*4, 1)
	rows := max((height+n-1)/n, MinBandRows)

	bands := make([][2]int, 0, (height+rows-1)/rows)
	for y := 0; y < height; y += rows {
		bands = append(bands, [2]int{y, min(y+rows, height)})
	}
	return bands
}

// ForRows calls fn once per band covering [0, height) and returns when
// every band is done. fn must only write rows inside its band.
func (p *WorkerPool) ForRows(height int, fn func(y0, y1 int)) {
	bands := Bands(height, p.workers)
	if len(bands) == 1 {
		fn(bands[0][0], bands[0][1])
		return
	}
	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() { fn(b[0], b[1]) }
	}
	p.ExecuteAll(work)
}
