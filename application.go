package prerotate

import vk "github.com/vulkan-go/vulkan"

// SurfaceProvider hands the renderer a native drawable as a vk.Surface. The
// host passes one to Renderer.Attach whenever its window is (re)created.
type SurfaceProvider interface {
	// CreateSurface creates a new surface on instance. The renderer owns
	// and destroys the result.
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// InstanceExtender is implemented by providers that need instance
// extensions, which NewInstance must be given before any surface exists.
type InstanceExtender interface {
	InstanceExtensions() []string
}

// RequiredInstanceExtensions returns what p needs enabled on the instance,
// or nil when p does not say.
func RequiredInstanceExtensions(p SurfaceProvider) []string {
	if e, ok := p.(InstanceExtender); ok {
		return e.InstanceExtensions()
	}
	return nil
}

// Sizer is implemented by providers that know the pixel size of their
// drawable. It is only consulted when the surface leaves the swapchain extent
// undefined, as Wayland does.
type Sizer interface {
	Size() (width, height int)
}

func sizeSource(p SurfaceProvider) func() (int, int) {
	if s, ok := p.(Sizer); ok {
		return s.Size
	}
	return nil
}
