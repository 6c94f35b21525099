package tui

import (
	"math"
	"strings"
)

const brailleBase = 0x2800

// dot bits of a braille cell, indexed by [row][column] of its 4x2 grid.
var brailleDots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// plot draws a polyline on a braille grid of w x h cells, each holding 2x4
// dots. Points are scaled to fit with equal aspect.
type plot struct {
	w, h  int
	cells [][]rune
}

func newPlot(w, h int) *plot {
	p := &plot{w: w, h: h, cells: make([][]rune, h)}
	for i := range p.cells {
		p.cells[i] = make([]rune, w)
		for j := range p.cells[i] {
			p.cells[i][j] = brailleBase
		}
	}
	return p
}

func (p *plot) dot(x, y int) {
	if x < 0 || y < 0 || x >= 2*p.w || y >= 4*p.h {
		return
	}
	p.cells[y/4][x/2] |= brailleDots[y%4][x%2]
}

func (p *plot) line(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		p.dot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// trace connects pts in order. The vertical axis points up.
func (p *plot) trace(pts [][2]float64) {
	if len(pts) == 0 {
		return
	}
	minX, maxX := pts[0][0], pts[0][0]
	minY, maxY := pts[0][1], pts[0][1]
	for _, q := range pts[1:] {
		minX, maxX = math.Min(minX, q[0]), math.Max(maxX, q[0])
		minY, maxY = math.Min(minY, q[1]), math.Max(maxY, q[1])
	}
	dotsW, dotsH := float64(2*p.w-1), float64(4*p.h-1)
	span := math.Max((maxX-minX)/dotsW, (maxY-minY)/dotsH)
	if span == 0 {
		span = 1
	}
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	project := func(q [2]float64) (int, int) {
		x := dotsW/2 + (q[0]-cx)/span
		y := dotsH/2 - (q[1]-cy)/span
		return int(math.Round(x)), int(math.Round(y))
	}

	x0, y0 := project(pts[0])
	p.dot(x0, y0)
	for _, q := range pts[1:] {
		x1, y1 := project(q)
		p.line(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
}

func (p *plot) String() string {
	var b strings.Builder
	for i, row := range p.cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(row))
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
