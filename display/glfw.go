//go:build !android

// Package display adapts window systems to prerotate.SurfaceProvider.
package display

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// GLFWSurface presents into a GLFW window created with ClientAPI set to NoAPI.
type GLFWSurface struct {
	window *glfw.Window
}

func NewGLFWSurface(window *glfw.Window) *GLFWSurface {
	return &GLFWSurface{window: window}
}

func (g *GLFWSurface) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := g.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "glfw create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// InstanceExtensions lists what GLFW needs on the instance for this platform.
func (g *GLFWSurface) InstanceExtensions() []string {
	return g.window.GetRequiredInstanceExtensions()
}

// Size is the framebuffer size in pixels, used when the surface leaves the
// swapchain extent to the application.
func (g *GLFWSurface) Size() (width, height int) {
	return g.window.GetFramebufferSize()
}
