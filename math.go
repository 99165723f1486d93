package prerotate

import (
	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// ComputeTransform scales by scale, then counter-rotates about Z by 90 or
// 270 degrees when pretransform is a quarter turn, so content drawn into the
// identity extent shows upright once the compositor applies pretransform.
//
// A 180 degree pretransform is left uncorrected. caps is currently unused.
func ComputeTransform(caps vk.SurfaceCapabilities, pretransform vk.SurfaceTransformFlagBits, scale [3]float32) lin.Mat4x4 {
	var identity, scaled, out lin.Mat4x4
	identity.Identity()
	scaled.ScaleAniso(&identity, scale[0], scale[1], scale[2])

	switch {
	case pretransform&vk.SurfaceTransformRotate90Bit != 0:
		out.RotateZ(&scaled, lin.DegreesToRadians(90))
	case pretransform&vk.SurfaceTransformRotate270Bit != 0:
		out.RotateZ(&scaled, lin.DegreesToRadians(270))
	default:
		out = scaled
	}
	return out
}
