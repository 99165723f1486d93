package prerotate

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SurfaceCapabilitySnapshot is what the surface reported at one point in
// time. It is captured fresh for every swapchain build and never cached
// across frames.
type SurfaceCapabilitySnapshot struct {
	CurrentExtent           vk.Extent2D
	MinImageExtent          vk.Extent2D
	MaxImageExtent          vk.Extent2D
	CurrentTransform        vk.SurfaceTransformFlagBits
	SupportedTransforms     vk.SurfaceTransformFlags
	SupportedCompositeAlpha vk.CompositeAlphaFlags
	MinImageCount           uint32
	MaxImageCount           uint32
	Formats                 []vk.SurfaceFormat
	PresentModes            []vk.PresentMode
}

func captureSnapshot(drv AdapterDriver, gpu vk.PhysicalDevice, surface vk.Surface) (SurfaceCapabilitySnapshot, error) {
	caps, err := drv.SurfaceCapabilities(gpu, surface)
	if err != nil {
		return SurfaceCapabilitySnapshot{}, wrapOp("query surface capabilities", err)
	}
	formats, err := drv.SurfaceFormats(gpu, surface)
	if err != nil {
		return SurfaceCapabilitySnapshot{}, wrapOp("query surface formats", err)
	}
	modes, err := drv.PresentModes(gpu, surface)
	if err != nil {
		return SurfaceCapabilitySnapshot{}, wrapOp("query present modes", err)
	}
	return SurfaceCapabilitySnapshot{
		CurrentExtent:           caps.CurrentExtent,
		MinImageExtent:          caps.MinImageExtent,
		MaxImageExtent:          caps.MaxImageExtent,
		CurrentTransform:        caps.CurrentTransform,
		SupportedTransforms:     caps.SupportedTransforms,
		SupportedCompositeAlpha: caps.SupportedCompositeAlpha,
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		Formats:                 formats,
		PresentModes:            modes,
	}, nil
}

// quarterTurn is true for the transforms that swap the axes of the surface.
func quarterTurn(t vk.SurfaceTransformFlagBits) bool {
	return t&(vk.SurfaceTransformRotate90Bit|vk.SurfaceTransformRotate270Bit) != 0
}

// IdentityExtent is the size of the surface in its natural orientation:
// CurrentExtent with width and height swapped under a 90 or 270 degree
// transform. Everything downstream renders at this size and the transform
// matrix compensates for the rotation.
func IdentityExtent(s SurfaceCapabilitySnapshot) vk.Extent2D {
	if quarterTurn(s.CurrentTransform) {
		return vk.Extent2D{Width: s.CurrentExtent.Height, Height: s.CurrentExtent.Width}
	}
	return s.CurrentExtent
}

// surfaceExtent is CurrentExtent, unless the surface leaves the size to the
// swapchain (width 0xFFFFFFFF). Then size, the drawable size reported by the
// surface provider, is used, clamped to the supported image extents.
func surfaceExtent(s SurfaceCapabilitySnapshot, size func() (int, int)) (vk.Extent2D, error) {
	if s.CurrentExtent.Width != vk.MaxUint32 {
		return s.CurrentExtent, nil
	}
	if size == nil {
		return vk.Extent2D{}, configError("build swapchain", errors.New("surface extent is undefined and the provider reports no size"))
	}
	w, h := size()
	e := vk.Extent2D{
		Width:  clampDim(w, s.MinImageExtent.Width, s.MaxImageExtent.Width),
		Height: clampDim(h, s.MinImageExtent.Height, s.MaxImageExtent.Height),
	}
	if e.Width == 0 || e.Height == 0 {
		return vk.Extent2D{}, configError("build swapchain", errors.Errorf("provider size %dx%d gives an empty extent", w, h))
	}
	return e, nil
}

// clampDim clamps v into [lo, hi]; hi of 0 means no upper bound.
func clampDim(v int, lo, hi uint32) uint32 {
	if v < 0 {
		v = 0
	}
	d := uint32(v)
	if d < lo {
		d = lo
	}
	if hi > 0 && d > hi {
		d = hi
	}
	return d
}

// imageCount asks for one image more than the minimum, clamped to the maximum
// unless the maximum is 0 (unbounded).
func imageCount(min, max uint32) uint32 {
	n := min + 1
	if max > 0 && n > max {
		n = max
	}
	return n
}

// chooseFormat returns preferred when the surface lists it, else the first format.
func chooseFormat(formats []vk.SurfaceFormat, preferred vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == preferred.Format && f.ColorSpace == preferred.ColorSpace {
			return f
		}
	}
	return formats[0]
}

// compositeAlpha prefers inheriting the platform's blending; desktop
// surfaces usually only offer opaque.
func compositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, bit := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaInheritBit,
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
	} {
		if supported&vk.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// SwapchainResources is one generation of presentation objects. The slices
// always have equal length while the generation is alive.
type SwapchainResources struct {
	Generation uint64

	Swapchain    vk.Swapchain
	RenderPass   vk.RenderPass
	Images       []vk.Image
	Views        []vk.ImageView
	Framebuffers []vk.Framebuffer

	Format vk.SurfaceFormat
	// Extent is the identity extent; the chain itself is created at this size.
	Extent    vk.Extent2D
	Transform vk.SurfaceTransformFlagBits
}

// Swapchain owns the image chain of one surface and everything derived from
// it. The chain is only ever replaced as a whole.
type Swapchain struct {
	dev       *Device
	surface   vk.Surface
	preferred vk.SurfaceFormat

	// size reports the drawable size for surfaces without a fixed extent.
	size func() (int, int)

	res        SwapchainResources
	built      bool
	generation uint64
	onRebuild  []func(old, cur SwapchainResources) error
}

func NewSwapchain(dev *Device, surface vk.Surface, preferred vk.SurfaceFormat) *Swapchain {
	return &Swapchain{dev: dev, surface: surface, preferred: preferred}
}

// Resources returns the live generation. It is the zero value when nothing is built.
func (s *Swapchain) Resources() SwapchainResources { return s.res }

func (s *Swapchain) Built() bool { return s.built }

// OnRebuild registers fn to run after every successful Recreate with the
// previous and the new generation.
func (s *Swapchain) OnRebuild(fn func(old, cur SwapchainResources) error) {
	s.onRebuild = append(s.onRebuild, fn)
}

// SetSurface points the manager at a replacement surface. The current
// generation, if any, must be torn down first.
func (s *Swapchain) SetSurface(surface vk.Surface) {
	s.surface = surface
}

// SetSizeSource sets where the extent comes from when the surface does not
// fix one. nil clears it.
func (s *Swapchain) SetSizeSource(size func() (width, height int)) {
	s.size = size
}

// Build creates the chain, its views, the render pass and one framebuffer
// per image from a fresh capability snapshot. On failure everything created
// so far is destroyed and the manager stays empty.
func (s *Swapchain) Build() (err error) {
	if s.built {
		s.Teardown()
	}
	drv, device := s.dev.Driver(), s.dev.Handle()
	snap, err := captureSnapshot(drv, s.dev.PhysicalDevice(), s.surface)
	if err != nil {
		return err
	}
	if len(snap.Formats) == 0 {
		return configError("build swapchain", errors.New("surface reports no formats"))
	}
	if snap.CurrentExtent, err = surfaceExtent(snap, s.size); err != nil {
		return err
	}
	res := SwapchainResources{
		Generation: s.generation + 1,
		Format:     chooseFormat(snap.Formats, s.preferred),
		Extent:     IdentityExtent(snap),
		Transform:  snap.CurrentTransform,
	}
	defer func() {
		if err != nil {
			destroyResources(drv, device, &res)
		}
	}()

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    imageCount(snap.MinImageCount, snap.MaxImageCount),
		ImageFormat:      res.Format.Format,
		ImageColorSpace:  res.Format.ColorSpace,
		ImageExtent:      res.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     snap.CurrentTransform,
		CompositeAlpha:   compositeAlpha(snap.SupportedCompositeAlpha),
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if families := s.dev.Families(); families.Separate() {
		indices := families.Unique()
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = uint32(len(indices))
		info.PQueueFamilyIndices = indices
	}
	if res.Swapchain, err = drv.CreateSwapchain(device, &info); err != nil {
		return wrapOp("create swapchain", err)
	}
	if res.Images, err = drv.SwapchainImages(device, res.Swapchain); err != nil {
		return wrapOp("get swapchain images", err)
	}

	for _, image := range res.Images {
		view, err := drv.CreateImageView(device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   res.Format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		})
		if err != nil {
			return wrapOp("create image view", err)
		}
		res.Views = append(res.Views, view)
	}

	if res.RenderPass, err = newRenderPass(drv, device, res.Format.Format); err != nil {
		return err
	}

	for _, view := range res.Views {
		fb, err := drv.CreateFramebuffer(device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      res.RenderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           res.Extent.Width,
			Height:          res.Extent.Height,
			Layers:          1,
		})
		if err != nil {
			return wrapOp("create framebuffer", err)
		}
		res.Framebuffers = append(res.Framebuffers, fb)
	}

	s.generation = res.Generation
	s.res = res
	s.built = true
	Logger().Info("swapchain built",
		"generation", res.Generation,
		"width", res.Extent.Width,
		"height", res.Extent.Height,
		"transform", uint32(res.Transform),
		"images", len(res.Images),
		"format", uint32(res.Format.Format))
	return nil
}

// Teardown destroys framebuffers, views, render pass and chain in that
// order. The caller guarantees the GPU no longer uses them.
func (s *Swapchain) Teardown() {
	if !s.built {
		return
	}
	destroyResources(s.dev.Driver(), s.dev.Handle(), &s.res)
	s.built = false
	Logger().Debug("swapchain torn down", "generation", s.res.Generation)
}

// Recreate waits for the device to drain and rebuilds the chain from scratch.
// cause is only logged.
func (s *Swapchain) Recreate(cause string) error {
	Logger().Info("recreating swapchain", "cause", cause)
	if err := s.dev.WaitIdle(); err != nil {
		return err
	}
	old := s.res
	s.Teardown()
	if err := s.Build(); err != nil {
		return err
	}
	for _, fn := range s.onRebuild {
		if err := fn(old, s.res); err != nil {
			return err
		}
	}
	return nil
}

func destroyResources(drv PresentDriver, device vk.Device, res *SwapchainResources) {
	for _, fb := range res.Framebuffers {
		drv.DestroyFramebuffer(device, fb)
	}
	res.Framebuffers = nil
	for _, view := range res.Views {
		drv.DestroyImageView(device, view)
	}
	res.Views = nil
	if res.RenderPass != vk.NullRenderPass {
		drv.DestroyRenderPass(device, res.RenderPass)
		res.RenderPass = vk.NullRenderPass
	}
	if res.Swapchain != vk.NullSwapchain {
		drv.DestroySwapchain(device, res.Swapchain)
		res.Swapchain = vk.NullSwapchain
	}
	res.Images = nil
}
