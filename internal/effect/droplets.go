package effect

import "math/rand/v2"

// Droplets lights random pixels with random colours and lets every lit
// pixel fade out a little each frame.
type Droplets struct {
	rng   *rand.Rand
	drops int // droplets still to fall
	fade  int // frames left for the current droplet
}

func NewDroplets(rng *rand.Rand, drops int) *Droplets {
	return &Droplets{rng: rng, drops: drops}
}

func (d *Droplets) Name() string { return "droplets" }

func (d *Droplets) Step(p Painter) (bool, error) {
	if d.fade == 0 {
		if d.drops <= 0 {
			return false, nil
		}
		d.drops--
		i := d.rng.IntN(p.Len())
		px, err := p.Pixel(i)
		if err != nil {
			return false, err
		}
		px.R = uint8(d.rng.IntN(128))
		px.G = uint8(d.rng.IntN(128))
		px.B = uint8(d.rng.IntN(128))
		if err := p.SetPixel(i, px); err != nil {
			return false, err
		}
		d.fade = d.rng.IntN(10) + 1
	}
	d.fade--

	for i := 0; i < p.Len(); i++ {
		px, err := p.Pixel(i)
		if err != nil {
			return false, err
		}
		px.R = d.dim(px.R)
		px.G = d.dim(px.G)
		px.B = d.dim(px.B)
		if err := p.SetPixel(i, px); err != nil {
			return false, err
		}
	}
	return true, nil
}

// dim lowers v by a random step of up to a quarter of its value plus one.
func (d *Droplets) dim(v uint8) uint8 {
	if v == 0 {
		return 0
	}
	f := uint8(d.rng.IntN(int(v)/4+1) + 1)
	if f >= v {
		return 0
	}
	return v - f
}
