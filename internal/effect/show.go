package effect

import "math/rand/v2"

// Show alternates a random number of cylon sweeps with a random number of
// droplet showers, forever.
type Show struct {
	n     int
	rng   *rand.Rand
	queue []Effect
	cur   Effect
}

func NewShow(n int, rng *rand.Rand) *Show {
	return &Show{n: n, rng: rng}
}

func (s *Show) Name() string { return "show" }

// Current returns the effect being played, nil before the first Step.
func (s *Show) Current() Effect { return s.cur }

func (s *Show) Step(p Painter) (bool, error) {
	for {
		if s.cur != nil {
			more, err := s.cur.Step(p)
			if err != nil || more {
				return more, err
			}
			s.cur = nil
		}
		if len(s.queue) == 0 {
			s.queue = s.round()
		}
		s.cur, s.queue = s.queue[0], s.queue[1:]
	}
}

// round lines up the next cycle. Either count may be zero, but never both.
func (s *Show) round() []Effect {
	for {
		var q []Effect
		for i := s.rng.IntN(15); i > 0; i-- {
			q = append(q, NewCylon(s.n))
		}
		for i := s.rng.IntN(5); i > 0; i-- {
			q = append(q, NewDroplets(s.rng, s.rng.IntN(10)+10))
		}
		if len(q) > 0 {
			return q
		}
	}
}
