package grab

import (
	"math"

	"github.com/soypat/tetgrab"
	"github.com/soypat/tetgrab/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// XPBD deforms a grab region with extended position based dynamics. Every
// edge of the region's tetrahedra is a distance constraint whose compliance
// grows quadratically with the distance to the nearest handle, so material
// near the handles is stiff and material near the boundary is soft.
// Optionally each tetrahedron also preserves its rest volume.
//
// Particles are pinned (inverse mass 0) for handles and boundary vertices.
// Particle velocities persist between steps of the same grab.
type XPBD struct {
	Iterations        int
	Radius            float64
	ComplianceMin     float64
	ComplianceMax     float64
	VolumeConstraints bool
	VolumeCompliance  float64

	region    *Region
	rest      []r3.Vec
	particles []particle
	distance  []distanceConstraint
	volume    []volumeConstraint
}

var _ Solver = (*XPBD)(nil)

type particle struct {
	pos, pred, vel r3.Vec
	invMass        float64
}

type distanceConstraint struct {
	a, b       int
	rest       float64
	compliance float64
}

type volumeConstraint struct {
	p    [4]int
	rest float64
}

func (s *XPBD) Build(m tetgrab.Mesh, region *Region) error {
	s.region = region
	s.rest = restPositions(m, region)
	s.particles = make([]particle, region.Len())
	for l, p := range s.rest {
		s.particles[l] = particle{pos: p, pred: p}
		if !region.IsPinned(l) {
			s.particles[l].invMass = 1
		}
	}

	handlePos := make([]r3.Vec, len(region.Handles))
	for i, h := range region.Handles {
		l, _ := region.Local(h)
		handlePos[i] = s.rest[l]
	}
	nearest := newHandleTree(handlePos)
	handleDist := make([]float64, region.Len())
	for l, p := range s.rest {
		handleDist[l] = nearest.Distance(p)
	}

	s.distance = s.distance[:0]
	s.volume = s.volume[:0]
	seen := make(map[[2]int]bool)
	for _, tet := range region.Tetrahedra {
		var local [4]int
		for i, v := range m.Tetrahedron(tet) {
			local[i], _ = region.Local(v)
		}
		for i := 0; i < 3; i++ {
			for j := i + 1; j < 4; j++ {
				a, b := local[i], local[j]
				if a > b {
					a, b = b, a
				}
				if seen[[2]int{a, b}] {
					continue
				}
				seen[[2]int{a, b}] = true
				s.distance = append(s.distance, distanceConstraint{
					a:          a,
					b:          b,
					rest:       r3.Norm(r3.Sub(s.rest[b], s.rest[a])),
					compliance: s.compliance(math.Min(handleDist[a], handleDist[b])),
				})
			}
		}
		if s.VolumeConstraints {
			s.volume = append(s.volume, volumeConstraint{
				p:    local,
				rest: d3.SignedVolume(s.rest[local[0]], s.rest[local[1]], s.rest[local[2]], s.rest[local[3]]),
			})
		}
	}
	return nil
}

// compliance interpolates between ComplianceMin and ComplianceMax with the
// squared distance to the nearest handle normalized by Radius.
func (s *XPBD) compliance(dist float64) float64 {
	x := 1.0
	if s.Radius > 0 {
		x = d3.Clamp(dist/s.Radius, 0, 1)
	}
	return s.ComplianceMin + (s.ComplianceMax-s.ComplianceMin)*x*x
}

func (s *XPBD) Step(targets []tetgrab.Update, dt float64) ([]tetgrab.Update, error) {
	if s.region == nil {
		return nil, ErrNotBuilt
	}
	if !(dt > 0) {
		return nil, tetgrab.ErrMsg("non positive timestep")
	}
	pinned := pinnedTargets(s.region, s.rest, targets)
	ps := s.particles
	for l := range ps {
		p := &ps[l]
		if p.invMass == 0 {
			p.pos = pinned[l]
			p.pred = pinned[l]
			p.vel = r3.Vec{}
			continue
		}
		p.pred = r3.Add(p.pos, r3.Scale(dt, p.vel))
	}

	dt2 := dt * dt
	for it := 0; it < s.Iterations; it++ {
		for _, c := range s.distance {
			s.projectDistance(c, dt2)
		}
		for _, c := range s.volume {
			s.projectVolume(c, dt2)
		}
	}

	pos := make([]r3.Vec, len(ps))
	for l := range ps {
		p := &ps[l]
		if p.invMass != 0 {
			p.vel = r3.Scale(1/dt, r3.Sub(p.pred, p.pos))
			p.pos = p.pred
		}
		pos[l] = p.pos
	}
	return regionUpdates(s.region, pos), nil
}

func (s *XPBD) projectDistance(c distanceConstraint, dt2 float64) {
	pa, pb := &s.particles[c.a], &s.particles[c.b]
	wSum := pa.invMass + pb.invMass
	if wSum == 0 {
		return
	}
	delta := r3.Sub(pb.pred, pa.pred)
	length := r3.Norm(delta)
	if length < 1e-6 {
		return
	}
	lambda := -(length - c.rest) / (wSum + c.compliance/dt2)
	corr := r3.Scale(lambda/length, delta)
	pa.pred = r3.Sub(pa.pred, r3.Scale(pa.invMass, corr))
	pb.pred = r3.Add(pb.pred, r3.Scale(pb.invMass, corr))
}

func (s *XPBD) projectVolume(c volumeConstraint, dt2 float64) {
	var p [4]*particle
	for i, l := range c.p {
		p[i] = &s.particles[l]
	}
	x0, x1, x2, x3 := p[0].pred, p[1].pred, p[2].pred, p[3].pred
	grad := [4]r3.Vec{
		r3.Scale(1./6, r3.Cross(r3.Sub(x3, x1), r3.Sub(x2, x1))),
		r3.Scale(1./6, r3.Cross(r3.Sub(x2, x0), r3.Sub(x3, x0))),
		r3.Scale(1./6, r3.Cross(r3.Sub(x3, x0), r3.Sub(x1, x0))),
		r3.Scale(1./6, r3.Cross(r3.Sub(x1, x0), r3.Sub(x2, x0))),
	}
	var gradSum float64
	for i := range grad {
		gradSum += p[i].invMass * r3.Norm2(grad[i])
	}
	if gradSum < 1e-9 {
		return
	}
	vol := d3.SignedVolume(x0, x1, x2, x3)
	lambda := -(vol - c.rest) / (gradSum + s.VolumeCompliance/dt2)
	for i := range p {
		p[i].pred = r3.Add(p[i].pred, r3.Scale(lambda*p[i].invMass, grad[i]))
	}
}
