package prerotate

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Renderer is the frame presentation pipeline for one surface. It is driven
// from a single goroutine: Attach, Detach, NotifyOrientationChanged, Render
// and Destroy must not be called concurrently.
//
// GPU setup is deferred to the first Attach. Between Detach and the next
// Attach, Render does nothing.
type Renderer struct {
	cfg      Config
	drv      Driver
	instance vk.Instance
	shaders  ShaderSource
	variant  Variant
	mesh     Mesh

	surface     vk.Surface
	initialized bool

	dev       *Device
	pool      *CommandPool
	transfer  *Transfer
	swapchain *Swapchain
	pipeline  *Pipeline
	vertices  *GPUBuffer
	indices   *GPUBuffer
	ring      *frameRing
	sched     *scheduler
}

// New validates cfg and prepares the mesh. No GPU object exists until Attach.
func New(cfg Config, drv Driver, instance vk.Instance, shaders ShaderSource) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	variant, err := ParseVariant(cfg.Variant)
	if err != nil {
		return nil, err
	}
	mesh := BuiltinMesh(variant)
	if cfg.MeshPath != "" {
		if mesh, err = LoadGLTF(cfg.MeshPath); err != nil {
			return nil, configError("load mesh", err)
		}
	}
	if err := mesh.Validate(); err != nil {
		return nil, configError("mesh", err)
	}
	return &Renderer{
		cfg:      cfg,
		drv:      drv,
		instance: instance,
		shaders:  shaders,
		variant:  variant,
		mesh:     mesh,
		surface:  vk.NullSurface,
	}, nil
}

// Attached reports whether a surface is currently attached.
func (r *Renderer) Attached() bool {
	return r.surface != vk.NullSurface
}

// Attach creates a surface from p and renders to it. The first call builds
// the whole pipeline; later calls replace the surface and rebuild only the
// swapchain. A nil p is the same as Detach.
func (r *Renderer) Attach(p SurfaceProvider) error {
	if p == nil {
		return r.Detach()
	}
	if r.Attached() {
		if err := r.Detach(); err != nil {
			return err
		}
	}
	surface, err := p.CreateSurface(r.instance)
	if err != nil {
		return wrapOp("create surface", err)
	}
	if surface == vk.NullSurface {
		return configError("attach", errors.New("provider returned a null surface"))
	}
	if !r.initialized {
		if err := r.init(p, surface); err != nil {
			r.Destroy()
			return err
		}
		Logger().Info("surface attached", "variant", r.variant.String(), "frames_in_flight", r.cfg.FramesInFlight)
		return nil
	}
	return r.reattach(p, surface)
}

func (r *Renderer) init(p SurfaceProvider, surface vk.Surface) error {
	r.surface = surface
	adapter, err := SelectDevice(r.drv, r.instance, surface)
	if err != nil {
		return err
	}
	opts := DeviceOptions{WideLines: r.variant.Spec().LineWidth > 1}
	if r.cfg.Validation {
		opts.Layers = []string{validationLayer}
	}
	if r.dev, err = NewDevice(r.drv, adapter, opts); err != nil {
		return err
	}
	if r.pool, err = NewCommandPool(r.dev); err != nil {
		return err
	}

	r.transfer = NewTransfer(r.dev, r.pool, r.cfg.DebugReadback)
	bufs, err := r.transfer.UploadAll([]UploadRequest{
		{Usage: vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), Data: r.mesh.VertexBytes()},
		{Usage: vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), Data: r.mesh.IndexBytes()},
	})
	if err != nil {
		return err
	}
	r.vertices, r.indices = bufs[0], bufs[1]

	r.swapchain = NewSwapchain(r.dev, surface, vk.SurfaceFormat{
		Format:     r.cfg.PreferredFormat,
		ColorSpace: r.cfg.PreferredColorSpace,
	})
	r.swapchain.SetSizeSource(sizeSource(p))
	if err = r.swapchain.Build(); err != nil {
		return err
	}
	res := r.swapchain.Resources()
	if r.pipeline, err = NewPipeline(r.dev, r.variant.Spec(), res.RenderPass, r.shaders); err != nil {
		return err
	}
	r.swapchain.OnRebuild(r.rebuildPipeline)

	if r.ring, err = newFrameRing(r.dev, r.pool, r.pipeline.SetLayout, r.cfg.FramesInFlight); err != nil {
		return err
	}
	r.sched = &scheduler{
		dev:       r.dev,
		swapchain: r.swapchain,
		ring:      r.ring,
		recorder:  NewRecorder(r.drv, r.cfg.clearColor()),
		scale:     r.cfg.scale(),
		surface:   surface,
		draw: DrawState{
			Pipeline:   r.pipeline,
			Vertices:   r.vertices,
			Indices:    r.indices,
			IndexCount: uint32(len(r.mesh.Indices)),
		},
	}
	r.initialized = true
	return nil
}

// reattach points the existing device at a replacement surface.
func (r *Renderer) reattach(p SurfaceProvider, surface vk.Surface) error {
	ok, err := r.dev.SupportsPresent(surface)
	if err != nil {
		r.drv.DestroySurface(r.instance, surface)
		return wrapOp("query surface support", err)
	}
	if !ok {
		r.drv.DestroySurface(r.instance, surface)
		return configError("attach", errors.Wrap(ErrIncompleteQueues, "present family cannot present to the new surface"))
	}
	r.surface = surface
	r.sched.surface = surface
	r.swapchain.SetSurface(surface)
	r.swapchain.SetSizeSource(sizeSource(p))

	old := r.swapchain.Resources()
	Logger().Info("recreating swapchain", "cause", "reattach")
	if err := r.swapchain.Build(); err != nil {
		return err
	}
	return r.rebuildPipeline(old, r.swapchain.Resources())
}

// rebuildPipeline keeps the pipeline compatible with the new render pass.
// Passes of equal format are compatible, so only a format change costs a rebuild.
func (r *Renderer) rebuildPipeline(old, cur SwapchainResources) error {
	if old.Format.Format == cur.Format.Format {
		return nil
	}
	Logger().Info("surface format changed, rebuilding pipeline", "from", uint32(old.Format.Format), "to", uint32(cur.Format.Format))
	return r.pipeline.Rebuild(cur.RenderPass)
}

// Detach drains the GPU, drops the swapchain and destroys the surface. The
// device and static resources survive for the next Attach.
func (r *Renderer) Detach() error {
	if !r.Attached() {
		return nil
	}
	if r.initialized {
		if err := r.dev.WaitIdle(); err != nil {
			return err
		}
		r.swapchain.Teardown()
	}
	r.drv.DestroySurface(r.instance, r.surface)
	r.surface = vk.NullSurface
	if r.sched != nil {
		r.sched.surface = vk.NullSurface
	}
	Logger().Info("surface detached")
	return nil
}

// NotifyOrientationChanged asks for a swapchain rebuild at the start of the
// next frame.
func (r *Renderer) NotifyOrientationChanged() {
	if r.sched != nil {
		r.sched.markRebuild("orientation")
	}
}

// Render draws and presents one frame. It is a no-op while detached.
// Returned errors are fatal or configuration errors; out-of-date and
// suboptimal surfaces are handled internally.
func (r *Renderer) Render() error {
	if !r.initialized || !r.Attached() || !r.swapchain.Built() {
		return nil
	}
	return r.sched.renderFrame()
}

// Viewport is the viewport the next frame records, derived from the
// identity extent of the live swapchain.
func (r *Renderer) Viewport() vk.Viewport {
	if r.swapchain == nil {
		return vk.Viewport{}
	}
	return Viewport(r.swapchain.Resources().Extent)
}

// SlotState reports the state of frame slot i.
func (r *Renderer) SlotState(i int) SlotState {
	if r.ring == nil || i < 0 || i >= r.ring.len() {
		return SlotIdle
	}
	return r.ring.slots[i].state
}

// Transfer exposes the staging engine, e.g. for ReadBack in debug builds.
func (r *Renderer) Transfer() *Transfer { return r.transfer }

// Buffers returns the uploaded vertex and index buffers.
func (r *Renderer) Buffers() (vertices, indices *GPUBuffer) { return r.vertices, r.indices }

// Destroy releases everything the renderer created, after the GPU is idle.
// The instance stays with the caller.
func (r *Renderer) Destroy() {
	if r.dev != nil && r.dev.Handle() != nil {
		if err := r.dev.WaitIdle(); err != nil {
			Logger().Warn("wait idle before destroy", "err", err)
		}
	}
	if r.ring != nil {
		r.ring.destroy()
		r.ring = nil
	}
	if r.pipeline != nil {
		r.pipeline.Destroy()
		r.pipeline = nil
	}
	r.vertices.Destroy()
	r.indices.Destroy()
	r.vertices, r.indices = nil, nil
	if r.swapchain != nil {
		r.swapchain.Teardown()
		r.swapchain = nil
	}
	if r.pool != nil {
		r.pool.Destroy()
		r.pool = nil
	}
	if r.surface != vk.NullSurface {
		r.drv.DestroySurface(r.instance, r.surface)
		r.surface = vk.NullSurface
	}
	if r.dev != nil {
		r.dev.Destroy()
		r.dev = nil
	}
	r.sched = nil
	r.initialized = false
}
