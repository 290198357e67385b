package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/pass"
)

type sphere struct {
	center     mgl32.Vec3
	radius     float32
	albedo     mgl32.Vec3
	smoothness float32
}

// scene is three spheres on a glossy floor under a bright sky, ray cast
// into a colour target and a G-buffer.
type scene struct {
	width, height int

	color, depth, normals, specular pass.Surface

	spheres []sphere
	near    float32
	far     float32
	fov     float32
}

func newScene(dev pass.Device, w, h int) (*scene, error) {
	sc := &scene{
		width:  w,
		height: h,
		near:   0.1,
		far:    50,
		fov:    50,
		spheres: []sphere{
			{center: mgl32.Vec3{-1.6, -0.4, -6}, radius: 0.6, albedo: mgl32.Vec3{0.9, 0.2, 0.1}, smoothness: 0.4},
			{center: mgl32.Vec3{0, 0, -9}, radius: 1, albedo: mgl32.Vec3{0.2, 0.8, 0.3}, smoothness: 0.6},
			{center: mgl32.Vec3{2.2, -0.2, -14}, radius: 0.8, albedo: mgl32.Vec3{0.2, 0.3, 0.9}, smoothness: 0.2},
		},
	}
	targets := []struct {
		dst    *pass.Surface
		label  string
		format pass.Format
	}{
		{&sc.color, "scene.color", pass.FormatRGBA16F},
		{&sc.depth, "scene.depth", pass.FormatR32F},
		{&sc.normals, "scene.normals", pass.FormatRGBA8},
		{&sc.specular, "scene.specular", pass.FormatRGBA8},
	}
	for _, t := range targets {
		s, err := dev.NewSurface(pass.SurfaceDesc{Label: t.label, Width: w, Height: h, Format: t.format})
		if err != nil {
			sc.destroy(dev)
			return nil, err
		}
		*t.dst = s
	}
	return sc, nil
}

func (sc *scene) destroy(dev pass.Device) {
	for _, s := range []pass.Surface{sc.color, sc.depth, sc.normals, sc.specular} {
		if s != nil {
			dev.DestroySurface(s)
		}
	}
}

func (sc *scene) camera() *camera.Camera {
	return camera.New(sc.width, sc.height, sc.fov, sc.near, sc.far)
}

func (sc *scene) gbuffer() camera.GBuffer {
	return camera.GBuffer{Depth: sc.depth, Normals: sc.normals, Specular: sc.specular}
}

// render casts one ray per pixel, offset by the sub-pixel jitter in the
// camera projection, and uploads the four targets.
func (sc *scene) render(dev pass.Device, cam *camera.Camera) error {
	w, h := sc.width, sc.height
	color := make([]float32, w*h*4)
	depth := make([]float32, w*h*4)
	normals := make([]float32, w*h*4)
	specular := make([]float32, w*h*4)

	// A clip-space translation t of the projection shows up as -t in the
	// third column.
	jx := -cam.Projection[2] * float32(w) / 2
	jy := -cam.Projection[6] * float32(h) / 2
	tanHalf := float32(math.Tan(float64(sc.fov) * math.Pi / 360))
	aspect := float32(w) / float32(h)

	for y := range h {
		for x := range w {
			u := (2*(float32(x)+0.5-jx)/float32(w) - 1) * tanHalf * aspect
			v := (1 - 2*(float32(y)+0.5+jy)/float32(h)) * tanHalf
			dir := mgl32.Vec3{u, v, -1}.Normalize()

			c, n, z, spec := sc.shade(dir)
			i := (y*w + x) * 4
			copy(color[i:], []float32{c[0], c[1], c[2], 1})
			depth[i] = min(z*-dir[2]/sc.far, 1)
			copy(normals[i:], []float32{n[0]*0.5 + 0.5, n[1]*0.5 + 0.5, n[2]*0.5 + 0.5, 1})
			copy(specular[i:], spec[:])
		}
	}

	uploads := []struct {
		s   pass.Surface
		pix []float32
	}{
		{sc.color, color},
		{sc.depth, depth},
		{sc.normals, normals},
		{sc.specular, specular},
	}
	for _, up := range uploads {
		if err := dev.WriteSurface(up.s, up.pix); err != nil {
			return err
		}
	}
	return nil
}

var sunDir = mgl32.Vec3{0.4, 0.8, 0.3}.Normalize()

// shade returns the HDR colour, the normal, the distance along dir and the
// specular colour with smoothness of the first surface dir hits. The sky
// is at infinity.
func (sc *scene) shade(dir mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3, float32, [4]float32) {
	best := float32(math.Inf(1))
	var hit *sphere
	for i := range sc.spheres {
		if t, ok := intersectSphere(dir, &sc.spheres[i]); ok && t < best {
			best, hit = t, &sc.spheres[i]
		}
	}
	floorT := float32(math.Inf(1))
	if dir.Y() < 0 {
		floorT = -1 / dir.Y()
	}

	switch {
	case hit != nil && best < floorT:
		p := dir.Mul(best)
		n := p.Sub(hit.center).Normalize()
		return lit(hit.albedo, n), n, best, [4]float32{0.5, 0.5, 0.5, hit.smoothness}
	case !math.IsInf(float64(floorT), 1):
		p := dir.Mul(floorT)
		albedo := mgl32.Vec3{0.15, 0.15, 0.17}
		if (int(math.Floor(float64(p.X())))+int(math.Floor(float64(p.Z()))))%2 == 0 {
			albedo = mgl32.Vec3{0.6, 0.6, 0.6}
		}
		n := mgl32.Vec3{0, 1, 0}
		return lit(albedo, n), n, floorT, [4]float32{0.8, 0.8, 0.8, 0.9}
	default:
		sky := mgl32.Vec3{0.4 + 2*dir.Y(), 0.6 + 2*dir.Y(), 1.2 + 3*dir.Y()}
		return sky, mgl32.Vec3{0, 0, 1}, float32(math.Inf(1)), [4]float32{}
	}
}

// intersectSphere returns the nearest positive distance along dir, from the
// origin, at which dir meets s.
func intersectSphere(dir mgl32.Vec3, s *sphere) (float32, bool) {
	b := dir.Dot(s.center)
	c := s.center.Dot(s.center) - s.radius*s.radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	t := b - float32(math.Sqrt(float64(disc)))
	return t, t > 0
}

// lit applies an HDR sun and a flat ambient term.
func lit(albedo, n mgl32.Vec3) mgl32.Vec3 {
	return albedo.Mul(0.15 + 3*max(n.Dot(sunDir), 0))
}
