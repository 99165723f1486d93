//go:build android

// Package display adapts window systems to prerotate.SurfaceProvider.
package display

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// AndroidSurface presents into an ANativeWindow handed over by the activity.
// A new one is created for every window the activity receives.
type AndroidSurface struct {
	window unsafe.Pointer
}

// NewAndroidSurface wraps an ANativeWindow pointer.
func NewAndroidSurface(window unsafe.Pointer) *AndroidSurface {
	return &AndroidSurface{window: window}
}

func (a *AndroidSurface) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	if a.window == nil {
		return vk.NullSurface, errors.New("nil native window")
	}
	var surface vk.Surface
	ret := vk.CreateAndroidSurface(instance, &vk.AndroidSurfaceCreateInfo{
		SType:  vk.StructureTypeAndroidSurfaceCreateInfo,
		Window: (*vk.ANativeWindow)(a.window),
	}, nil, &surface)
	if err := vk.Error(ret); err != nil {
		return vk.NullSurface, errors.Wrap(err, "create android surface")
	}
	return surface, nil
}

func (a *AndroidSurface) InstanceExtensions() []string {
	return []string{"VK_KHR_surface", "VK_KHR_android_surface"}
}
