package renderer

import (
	"github.com/ivlev/slideshow/internal/effects"
)

// Pose is where and how an asset is drawn at one moment of a transition,
// relative to the centered resting position.
type Pose struct {
	X, Y     float64 // offset of the asset center in display pixels
	Rotation float64 // degrees, clockwise
	Scale    float64 // 1.0 = fitted size
	Opacity  float64 // 0..1
}

var rest = Pose{Scale: 1, Opacity: 1}

// popKeyframes is the scale curve of an incoming asset in random-exit mode:
// it grows past its size and settles back.
var popKeyframes = []struct{ at, scale float64 }{
	{0, 0.1},
	{0.7, 1.2},
	{1, 1},
}

// IncomingPose interpolates the pose of the asset being shown. progress runs
// from 0 (transition start) to 1 (at rest).
func IncomingPose(tr effects.Transition, progress float64, unit float64) Pose {
	t := easeInOutCubic(clamp01(progress))
	if t >= 1 {
		return rest
	}
	if tr.Pops() {
		return Pose{Scale: popScale(clamp01(progress)), Opacity: t}
	}
	enter := tr.Enter().Scale(unit)
	return Pose{
		X:        lerp(enter.DX, 0, t),
		Y:        lerp(enter.DY, 0, t),
		Rotation: lerp(enter.Rotation, 0, t),
		Scale:    1,
		Opacity:  t,
	}
}

// OutgoingPose interpolates the pose of the asset being replaced.
func OutgoingPose(tr effects.Transition, progress float64, unit float64) Pose {
	t := easeInOutCubic(clamp01(progress))
	exit := tr.Exit().Scale(unit)
	p := Pose{
		X:        lerp(0, exit.DX, t),
		Y:        lerp(0, exit.DY, t),
		Rotation: lerp(0, exit.Rotation, t),
		Scale:    1,
		Opacity:  1 - t,
	}
	if tr.Pops() {
		p.Scale = lerp(1, 0.1, t)
	}
	return p
}

func popScale(progress float64) float64 {
	for i := 0; i < len(popKeyframes)-1; i++ {
		a, b := popKeyframes[i], popKeyframes[i+1]
		if progress >= a.at && progress <= b.at {
			t := (progress - a.at) / (b.at - a.at)
			return lerp(a.scale, b.scale, easeInOutCubic(t))
		}
	}
	return popKeyframes[len(popKeyframes)-1].scale
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

// pow calculates x^n
func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}
