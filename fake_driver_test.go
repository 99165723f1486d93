package prerotate

import (
	"fmt"
	"testing/fstest"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// fakeObject is the state behind every handle minted by fakeDriver.
type fakeObject struct {
	kind       string
	persistent bool
	owner      unsafe.Pointer

	// fences
	signaled bool
	pending  bool
	cmds     []*fakeObject

	// memory and buffers
	data  []byte
	size  vk.DeviceSize
	bound *fakeObject
	usage vk.BufferUsageFlags

	// command buffers
	recording bool
	inFlight  bool
	ops       []func()

	// swapchains
	surface unsafe.Pointer
	images  []vk.Image
	next    uint32
}

type fakeGPU struct {
	handle     vk.PhysicalDevice
	families   []vk.QueueFamilyProperties
	present    map[uint32]bool
	extensions []string
	wideLines  bool
}

// fakeDriver is a Driver that keeps every object in Go memory. It executes
// buffer copies on submit, completes work when a fence is waited on, and
// records misuse in violations instead of failing.
type fakeDriver struct {
	objects map[unsafe.Pointer]*fakeObject
	minted  int
	calls   []string

	gpus     []*fakeGPU
	caps     vk.SurfaceCapabilities
	formats  []vk.SurfaceFormat
	modes    []vk.PresentMode
	memProps vk.PhysicalDeviceMemoryProperties

	// rejectSurface makes SurfaceSupport report false for the given surface.
	rejectSurface map[vk.Surface]bool
	// failOn makes the named method fail once with the given error.
	failOn map[string]error

	acquireResults []vk.Result
	presentResults []vk.Result

	queues map[string]vk.Queue

	violations     []string
	swapchainInfos []vk.SwapchainCreateInfo
	deviceInfos    []vk.DeviceCreateInfo
	pipelineInfos  []fakePipelineInfo
	framebuffers   []vk.FramebufferCreateInfo
	viewports      []vk.Viewport
	submitQueues   []vk.Queue
	presentQueues  []vk.Queue
}

type fakePipelineInfo struct {
	topology  vk.PrimitiveTopology
	lineWidth float32
	pass      vk.RenderPass
}

const (
	fakeDeviceLocal = 0
	fakeHostVisible = 1
)

func newFakeDriver() *fakeDriver {
	f := &fakeDriver{
		objects:       map[unsafe.Pointer]*fakeObject{},
		rejectSurface: map[vk.Surface]bool{},
		failOn:        map[string]error{},
		queues:        map[string]vk.Queue{},
		formats: []vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		modes: []vk.PresentMode{vk.PresentModeFifo},
		caps: vk.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           3,
			CurrentExtent:           vk.Extent2D{Width: 1080, Height: 2280},
			CurrentTransform:        vk.SurfaceTransformIdentityBit,
			SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit | vk.SurfaceTransformRotate90Bit | vk.SurfaceTransformRotate180Bit | vk.SurfaceTransformRotate270Bit),
			SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit | vk.CompositeAlphaInheritBit),
		},
	}
	f.memProps.MemoryTypeCount = 2
	f.memProps.MemoryTypes[fakeDeviceLocal].PropertyFlags = deviceLocal
	f.memProps.MemoryTypes[fakeHostVisible].PropertyFlags = hostVisible
	f.addGPU(true, vk.KhrSwapchainExtensionName)
	return f
}

// addGPU appends an adapter with a single family that renders and presents.
func (f *fakeDriver) addGPU(wideLines bool, extensions ...string) *fakeGPU {
	g := &fakeGPU{
		handle: vk.PhysicalDevice(f.mint("physicalDevice", nil, true)),
		families: []vk.QueueFamilyProperties{{
			QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit),
			QueueCount: 1,
		}},
		present:    map[uint32]bool{0: true},
		extensions: extensions,
		wideLines:  wideLines,
	}
	f.gpus = append(f.gpus, g)
	return g
}

// fakeHandleBase keeps minted handles clear of the zero page. Handles are
// never dereferenced; they only key objects.
const fakeHandleBase = 1 << 20

// mint returns a fresh off-heap address standing in for a Vulkan handle.
// vulkan-go handle types are incomplete C pointers, so they must not point
// into the Go heap or reflect (and with it testify) panics on them.
func (f *fakeDriver) mint(kind string, owner unsafe.Pointer, persistent bool) unsafe.Pointer {
	f.minted++
	p := unsafe.Add(unsafe.Pointer(nil), fakeHandleBase+f.minted*16)
	f.objects[p] = &fakeObject{kind: kind, owner: owner, persistent: persistent}
	return p
}

func (f *fakeDriver) instance() vk.Instance {
	return vk.Instance(f.mint("instance", nil, true))
}

func (f *fakeDriver) obj(p unsafe.Pointer) *fakeObject {
	return f.objects[p]
}

func (f *fakeDriver) violate(format string, args ...any) {
	f.violations = append(f.violations, fmt.Sprintf(format, args...))
}

func (f *fakeDriver) call(name string) error {
	f.calls = append(f.calls, name)
	if err, ok := f.failOn[name]; ok {
		delete(f.failOn, name)
		return err
	}
	return nil
}

func (f *fakeDriver) destroy(kind string, p unsafe.Pointer) {
	o, ok := f.objects[p]
	if !ok {
		f.violate("destroy of unknown or already destroyed %s", kind)
		return
	}
	if o.kind != kind {
		f.violate("destroy %s called on a %s", kind, o.kind)
	}
	delete(f.objects, p)
	for q, child := range f.objects {
		if child.owner == p {
			delete(f.objects, q)
		}
	}
}

// live counts non-persistent objects of kind, or of every kind when kind is empty.
func (f *fakeDriver) live(kind string) int {
	n := 0
	for _, o := range f.objects {
		if o.persistent || o.kind == "image" {
			continue
		}
		if kind == "" || o.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeDriver) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeDriver) resetCalls() { f.calls = nil }

func (f *fakeDriver) gpu(p vk.PhysicalDevice) *fakeGPU {
	for _, g := range f.gpus {
		if g.handle == p {
			return g
		}
	}
	return nil
}

// complete retires everything submitted under fence.
func (f *fakeDriver) complete(fence *fakeObject) {
	fence.pending = false
	fence.signaled = true
	for _, c := range fence.cmds {
		c.inFlight = false
	}
	fence.cmds = nil
}

// AdapterDriver

func (f *fakeDriver) PhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	if err := f.call("PhysicalDevices"); err != nil {
		return nil, err
	}
	var out []vk.PhysicalDevice
	for _, g := range f.gpus {
		out = append(out, g.handle)
	}
	return out, nil
}

func (f *fakeDriver) QueueFamilies(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	f.call("QueueFamilies")
	return f.gpu(gpu).families
}

func (f *fakeDriver) SurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, error) {
	if err := f.call("SurfaceSupport"); err != nil {
		return false, err
	}
	if f.rejectSurface[surface] {
		return false, nil
	}
	return f.gpu(gpu).present[family], nil
}

func (f *fakeDriver) DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	if err := f.call("DeviceExtensions"); err != nil {
		return nil, err
	}
	return f.gpu(gpu).extensions, nil
}

func (f *fakeDriver) Features(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	f.call("Features")
	if f.gpu(gpu).wideLines {
		return vk.PhysicalDeviceFeatures{WideLines: vk.True}
	}
	return vk.PhysicalDeviceFeatures{}
}

func (f *fakeDriver) MemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	f.call("MemoryProperties")
	return f.memProps
}

func (f *fakeDriver) SurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, error) {
	if err := f.call("SurfaceCapabilities"); err != nil {
		return vk.SurfaceCapabilities{}, err
	}
	if f.obj(unsafe.Pointer(surface)) == nil {
		f.violate("surface capabilities of a destroyed surface")
	}
	return f.caps, nil
}

func (f *fakeDriver) SurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error) {
	if err := f.call("SurfaceFormats"); err != nil {
		return nil, err
	}
	return f.formats, nil
}

func (f *fakeDriver) PresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error) {
	if err := f.call("PresentModes"); err != nil {
		return nil, err
	}
	return f.modes, nil
}

func (f *fakeDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error) {
	if err := f.call("CreateDevice"); err != nil {
		return nil, err
	}
	f.deviceInfos = append(f.deviceInfos, *info)
	return vk.Device(f.mint("device", nil, false)), nil
}

func (f *fakeDriver) DeviceQueue(device vk.Device, family uint32) vk.Queue {
	f.call("DeviceQueue")
	key := fmt.Sprintf("%p/%d", unsafe.Pointer(device), family)
	if q, ok := f.queues[key]; ok {
		return q
	}
	q := vk.Queue(f.mint("queue", nil, true))
	f.queues[key] = q
	return q
}

func (f *fakeDriver) DeviceWaitIdle(device vk.Device) error {
	if err := f.call("DeviceWaitIdle"); err != nil {
		return err
	}
	for _, o := range f.objects {
		if o.kind == "fence" && o.pending {
			f.complete(o)
		}
	}
	return nil
}

func (f *fakeDriver) DestroyDevice(device vk.Device) {
	f.call("DestroyDevice")
	if n := f.live("") - f.live("surface") - 1; n > 0 {
		f.violate("device destroyed with %d objects alive", n)
	}
	f.destroy("device", unsafe.Pointer(device))
}

func (f *fakeDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	f.call("DestroySurface")
	for _, o := range f.objects {
		if o.kind == "swapchain" && o.surface == unsafe.Pointer(surface) {
			f.violate("surface destroyed before its swapchain")
		}
	}
	f.destroy("surface", unsafe.Pointer(surface))
}

// PresentDriver

func (f *fakeDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	if err := f.call("CreateSwapchain"); err != nil {
		return vk.NullSwapchain, err
	}
	for _, o := range f.objects {
		if o.kind == "swapchain" && o.surface == unsafe.Pointer(info.Surface) {
			f.violate("second swapchain on one surface")
		}
	}
	f.swapchainInfos = append(f.swapchainInfos, *info)
	p := f.mint("swapchain", nil, false)
	sc := f.obj(p)
	sc.surface = unsafe.Pointer(info.Surface)
	for i := uint32(0); i < info.MinImageCount; i++ {
		sc.images = append(sc.images, vk.Image(f.mint("image", p, false)))
	}
	return vk.Swapchain(p), nil
}

func (f *fakeDriver) SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, error) {
	if err := f.call("SwapchainImages"); err != nil {
		return nil, err
	}
	return f.obj(unsafe.Pointer(swapchain)).images, nil
}

func (f *fakeDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	f.call("DestroySwapchain")
	f.destroy("swapchain", unsafe.Pointer(swapchain))
}

func (f *fakeDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result) {
	f.call("AcquireNextImage")
	ret := vk.Success
	if len(f.acquireResults) > 0 {
		ret, f.acquireResults = f.acquireResults[0], f.acquireResults[1:]
	}
	if ret != vk.Success && ret != vk.Suboptimal {
		return 0, ret
	}
	sc := f.obj(unsafe.Pointer(swapchain))
	if sc == nil {
		f.violate("acquire on a destroyed swapchain")
		return 0, vk.ErrorOutOfDate
	}
	i := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return i, ret
}

func (f *fakeDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	f.call("QueuePresent")
	f.presentQueues = append(f.presentQueues, queue)
	if len(f.presentResults) > 0 {
		var ret vk.Result
		ret, f.presentResults = f.presentResults[0], f.presentResults[1:]
		return ret
	}
	return vk.Success
}

func (f *fakeDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	if err := f.call("CreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	return vk.ImageView(f.mint("imageView", nil, false)), nil
}

func (f *fakeDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	f.call("DestroyImageView")
	f.destroy("imageView", unsafe.Pointer(view))
}

func (f *fakeDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	if err := f.call("CreateRenderPass"); err != nil {
		return vk.NullRenderPass, err
	}
	return vk.RenderPass(f.mint("renderPass", nil, false)), nil
}

func (f *fakeDriver) DestroyRenderPass(device vk.Device, pass vk.RenderPass) {
	f.call("DestroyRenderPass")
	f.destroy("renderPass", unsafe.Pointer(pass))
}

func (f *fakeDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	if err := f.call("CreateFramebuffer"); err != nil {
		return vk.NullFramebuffer, err
	}
	f.framebuffers = append(f.framebuffers, *info)
	return vk.Framebuffer(f.mint("framebuffer", nil, false)), nil
}

func (f *fakeDriver) DestroyFramebuffer(device vk.Device, fb vk.Framebuffer) {
	f.call("DestroyFramebuffer")
	f.destroy("framebuffer", unsafe.Pointer(fb))
}

// SyncDriver

func (f *fakeDriver) CreateFence(device vk.Device, signaled bool) (vk.Fence, error) {
	if err := f.call("CreateFence"); err != nil {
		return vk.NullFence, err
	}
	p := f.mint("fence", nil, false)
	f.obj(p).signaled = signaled
	return vk.Fence(p), nil
}

func (f *fakeDriver) WaitForFence(device vk.Device, fence vk.Fence, timeout uint64) error {
	if err := f.call("WaitForFence"); err != nil {
		return err
	}
	o := f.obj(unsafe.Pointer(fence))
	switch {
	case o == nil:
		return errors.New("fake: wait on destroyed fence")
	case o.signaled:
		return nil
	case o.pending:
		f.complete(o)
		return nil
	}
	f.violate("wait on a fence nothing will signal")
	return NewError(vk.Timeout)
}

func (f *fakeDriver) ResetFence(device vk.Device, fence vk.Fence) error {
	if err := f.call("ResetFence"); err != nil {
		return err
	}
	o := f.obj(unsafe.Pointer(fence))
	if o.pending {
		f.violate("reset of a fence with pending work")
	}
	o.signaled = false
	return nil
}

func (f *fakeDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	f.call("DestroyFence")
	if o := f.obj(unsafe.Pointer(fence)); o != nil && o.pending {
		f.violate("destroy of a fence with pending work")
	}
	f.destroy("fence", unsafe.Pointer(fence))
}

func (f *fakeDriver) CreateSemaphore(device vk.Device) (vk.Semaphore, error) {
	if err := f.call("CreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return vk.Semaphore(f.mint("semaphore", nil, false)), nil
}

func (f *fakeDriver) DestroySemaphore(device vk.Device, sem vk.Semaphore) {
	f.call("DestroySemaphore")
	f.destroy("semaphore", unsafe.Pointer(sem))
}

func (f *fakeDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	if err := f.call("QueueSubmit"); err != nil {
		return err
	}
	f.submitQueues = append(f.submitQueues, queue)
	var fo *fakeObject
	if fence != vk.NullFence {
		fo = f.obj(unsafe.Pointer(fence))
		if fo.signaled || fo.pending {
			f.violate("submit with a fence that is not reset")
		}
		fo.pending = true
	}
	for _, s := range submits {
		for _, cmd := range s.PCommandBuffers {
			c := f.obj(unsafe.Pointer(cmd))
			if c.recording {
				f.violate("submit of a command buffer still recording")
			}
			for _, op := range c.ops {
				op()
			}
			c.inFlight = true
			if fo != nil {
				fo.cmds = append(fo.cmds, c)
			}
		}
	}
	return nil
}

// CommandDriver

func (f *fakeDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	if err := f.call("CreateCommandPool"); err != nil {
		return vk.NullCommandPool, err
	}
	return vk.CommandPool(f.mint("commandPool", nil, false)), nil
}

func (f *fakeDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	f.call("DestroyCommandPool")
	f.destroy("commandPool", unsafe.Pointer(pool))
}

func (f *fakeDriver) AllocateCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	if err := f.call("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]vk.CommandBuffer, count)
	for i := range out {
		out[i] = vk.CommandBuffer(f.mint("commandBuffer", unsafe.Pointer(pool), false))
	}
	return out, nil
}

func (f *fakeDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, cmds []vk.CommandBuffer) {
	f.call("FreeCommandBuffers")
	for _, c := range cmds {
		if o := f.obj(unsafe.Pointer(c)); o != nil && o.inFlight {
			f.violate("free of a command buffer in flight")
		}
		f.destroy("commandBuffer", unsafe.Pointer(c))
	}
}

func (f *fakeDriver) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	if err := f.call("BeginCommandBuffer"); err != nil {
		return err
	}
	c := f.obj(unsafe.Pointer(cmd))
	if c.inFlight {
		f.violate("begin on a command buffer in flight")
	}
	c.recording = true
	c.ops = nil
	return nil
}

func (f *fakeDriver) EndCommandBuffer(cmd vk.CommandBuffer) error {
	if err := f.call("EndCommandBuffer"); err != nil {
		return err
	}
	f.obj(unsafe.Pointer(cmd)).recording = false
	return nil
}

func (f *fakeDriver) ResetCommandBuffer(cmd vk.CommandBuffer) error {
	if err := f.call("ResetCommandBuffer"); err != nil {
		return err
	}
	c := f.obj(unsafe.Pointer(cmd))
	if c.inFlight {
		f.violate("reset of a command buffer in flight")
	}
	c.ops = nil
	return nil
}

func (f *fakeDriver) CmdSetViewport(cmd vk.CommandBuffer, viewport vk.Viewport) {
	f.call("CmdSetViewport")
	f.viewports = append(f.viewports, viewport)
}

func (f *fakeDriver) CmdSetScissor(cmd vk.CommandBuffer, scissor vk.Rect2D) { f.call("CmdSetScissor") }

func (f *fakeDriver) CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	f.call("CmdBeginRenderPass")
	if f.obj(unsafe.Pointer(info.Framebuffer)) == nil {
		f.violate("render pass begun on a destroyed framebuffer")
	}
}

func (f *fakeDriver) CmdEndRenderPass(cmd vk.CommandBuffer) { f.call("CmdEndRenderPass") }

func (f *fakeDriver) CmdBindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline) {
	f.call("CmdBindPipeline")
	if f.obj(unsafe.Pointer(pipeline)) == nil {
		f.violate("bind of a destroyed pipeline")
	}
}

func (f *fakeDriver) CmdBindDescriptorSet(cmd vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet) {
	f.call("CmdBindDescriptorSet")
}

func (f *fakeDriver) CmdBindVertexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer) {
	f.call("CmdBindVertexBuffer")
}

func (f *fakeDriver) CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, indexType vk.IndexType) {
	f.call("CmdBindIndexBuffer")
}

func (f *fakeDriver) CmdDrawIndexed(cmd vk.CommandBuffer, indexCount uint32) { f.call("CmdDrawIndexed") }

func (f *fakeDriver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, size vk.DeviceSize) {
	f.call("CmdCopyBuffer")
	c := f.obj(unsafe.Pointer(cmd))
	s, d := f.obj(unsafe.Pointer(src)), f.obj(unsafe.Pointer(dst))
	if s.usage&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) == 0 {
		f.violate("copy from a buffer without TRANSFER_SRC")
	}
	if d.usage&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) == 0 {
		f.violate("copy into a buffer without TRANSFER_DST")
	}
	c.ops = append(c.ops, func() {
		copy(d.bound.data[:size], s.bound.data[:size])
	})
}

// ResourceDriver

func (f *fakeDriver) CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error) {
	if err := f.call("CreateBuffer"); err != nil {
		return vk.NullBuffer, err
	}
	p := f.mint("buffer", nil, false)
	f.obj(p).size = info.Size
	f.obj(p).usage = info.Usage
	return vk.Buffer(p), nil
}

func (f *fakeDriver) DestroyBuffer(device vk.Device, buffer vk.Buffer) {
	f.call("DestroyBuffer")
	f.destroy("buffer", unsafe.Pointer(buffer))
}

func (f *fakeDriver) BufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	f.call("BufferMemoryRequirements")
	return vk.MemoryRequirements{
		Size:           f.obj(unsafe.Pointer(buffer)).size,
		Alignment:      4,
		MemoryTypeBits: 1<<f.memProps.MemoryTypeCount - 1,
	}
}

func (f *fakeDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	if err := f.call("AllocateMemory"); err != nil {
		return vk.NullDeviceMemory, err
	}
	p := f.mint("memory", nil, false)
	f.obj(p).data = make([]byte, info.AllocationSize)
	return vk.DeviceMemory(p), nil
}

func (f *fakeDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory) {
	f.call("FreeMemory")
	f.destroy("memory", unsafe.Pointer(memory))
}

func (f *fakeDriver) BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory) error {
	if err := f.call("BindBufferMemory"); err != nil {
		return err
	}
	f.obj(unsafe.Pointer(buffer)).bound = f.obj(unsafe.Pointer(memory))
	return nil
}

func (f *fakeDriver) MapMemory(device vk.Device, memory vk.DeviceMemory, size vk.DeviceSize) (unsafe.Pointer, error) {
	if err := f.call("MapMemory"); err != nil {
		return nil, err
	}
	m := f.obj(unsafe.Pointer(memory))
	if vk.DeviceSize(len(m.data)) < size {
		f.violate("map of %d bytes past a %d byte allocation", size, len(m.data))
	}
	return unsafe.Pointer(&m.data[0]), nil
}

func (f *fakeDriver) UnmapMemory(device vk.Device, memory vk.DeviceMemory) { f.call("UnmapMemory") }

func (f *fakeDriver) CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	if err := f.call("CreateDescriptorSetLayout"); err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	return vk.DescriptorSetLayout(f.mint("descriptorSetLayout", nil, false)), nil
}

func (f *fakeDriver) DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout) {
	f.call("DestroyDescriptorSetLayout")
	f.destroy("descriptorSetLayout", unsafe.Pointer(layout))
}

func (f *fakeDriver) CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	if err := f.call("CreateDescriptorPool"); err != nil {
		return vk.NullDescriptorPool, err
	}
	return vk.DescriptorPool(f.mint("descriptorPool", nil, false)), nil
}

func (f *fakeDriver) DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool) {
	f.call("DestroyDescriptorPool")
	f.destroy("descriptorPool", unsafe.Pointer(pool))
}

func (f *fakeDriver) AllocateDescriptorSet(device vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	if err := f.call("AllocateDescriptorSet"); err != nil {
		return vk.NullDescriptorSet, err
	}
	return vk.DescriptorSet(f.mint("descriptorSet", unsafe.Pointer(pool), false)), nil
}

func (f *fakeDriver) UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet) {
	f.call("UpdateDescriptorSets")
}

func (f *fakeDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	if err := f.call("CreatePipelineLayout"); err != nil {
		return vk.NullPipelineLayout, err
	}
	return vk.PipelineLayout(f.mint("pipelineLayout", nil, false)), nil
}

func (f *fakeDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	f.call("DestroyPipelineLayout")
	f.destroy("pipelineLayout", unsafe.Pointer(layout))
}

func (f *fakeDriver) CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	if err := f.call("CreateGraphicsPipeline"); err != nil {
		return vk.NullPipeline, err
	}
	f.pipelineInfos = append(f.pipelineInfos, fakePipelineInfo{
		topology:  info.PInputAssemblyState.Topology,
		lineWidth: info.PRasterizationState.LineWidth,
		pass:      info.RenderPass,
	})
	if f.obj(unsafe.Pointer(info.RenderPass)) == nil {
		f.violate("pipeline created against a destroyed render pass")
	}
	return vk.Pipeline(f.mint("pipeline", nil, false)), nil
}

func (f *fakeDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	f.call("DestroyPipeline")
	f.destroy("pipeline", unsafe.Pointer(pipeline))
}

func (f *fakeDriver) CreateShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error) {
	if err := f.call("CreateShaderModule"); err != nil {
		return vk.NullShaderModule, err
	}
	return vk.ShaderModule(f.mint("shaderModule", nil, false)), nil
}

func (f *fakeDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	f.call("DestroyShaderModule")
	f.destroy("shaderModule", unsafe.Pointer(module))
}

// fakeProvider mints surfaces on the fake driver.
type fakeProvider struct {
	f   *fakeDriver
	err error
	// reject marks new surfaces as unsupported by every queue family.
	reject bool

	created []vk.Surface
}

func (p *fakeProvider) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	if p.err != nil {
		return vk.NullSurface, p.err
	}
	s := vk.Surface(p.f.mint("surface", nil, false))
	if p.reject {
		p.f.rejectSurface[s] = true
	}
	p.created = append(p.created, s)
	return s, nil
}

func (p *fakeProvider) InstanceExtensions() []string {
	return []string{"VK_KHR_surface", "VK_KHR_fake_surface"}
}

// sizedProvider is a fakeProvider that also reports its drawable size.
type sizedProvider struct {
	*fakeProvider
	width, height int
}

func (p sizedProvider) Size() (int, int) { return p.width, p.height }

// testShaders holds placeholder SPIR-V for every variant.
func testShaders() FSShaderSource {
	code := &fstest.MapFile{Data: []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}}
	return FSShaderSource{FS: fstest.MapFS{
		"001_shader.vert.spv": code,
		"001_shader.frag.spv": code,
		"002_shader.vert.spv": code,
		"002_shader.frag.spv": code,
	}}
}

// newTestDevice selects and opens the first fake adapter.
func newTestDevice(f *fakeDriver, surface vk.Surface) (*Device, error) {
	adapter, err := SelectDevice(f, f.instance(), surface)
	if err != nil {
		return nil, err
	}
	return NewDevice(f, adapter, DeviceOptions{WideLines: true})
}
