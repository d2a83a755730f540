package effect

import (
	"math"

	"github.com/coreman2200/neospi/internal/led"
)

// Cylon sweeps a red bar in from both ends of the strip and back out.
type Cylon struct {
	n     int
	table []int
	step  int
}

// NewCylon builds one sweep, 4n frames long.
func NewCylon(n int) *Cylon {
	table := make([]int, 4*n)
	for i := 0; i < 2*n; i++ {
		table[i] = i - n
		table[i+2*n] = n - i
	}
	return &Cylon{n: n, table: table}
}

func (c *Cylon) Name() string { return "cylon" }

func (c *Cylon) Step(p Painter) (bool, error) {
	if c.step >= len(c.table) {
		return false, nil
	}
	off := c.table[c.step]
	c.step++

	p.Clear()
	for k := 0; k < c.n/2; k++ {
		px := led.RGB(cylonLevel(k), 0, 0)
		for _, i := range [2]int{off + k, off + c.n - k - 1} {
			if i < 0 || i >= c.n {
				continue
			}
			if err := p.SetPixel(i, px); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// cylonLevel brightens geometrically towards the middle of the bar.
func cylonLevel(k int) uint8 {
	v := math.Pow(2.25, float64(k))
	if v > 255 {
		return 255
	}
	return uint8(v)
}
