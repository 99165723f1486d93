package prerotate

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// NewVulkanDriver returns the Driver backed by the loaded Vulkan library.
// vk.Init (and vk.InitInstance where the platform needs it) must have run.
func NewVulkanDriver() Driver {
	return vulkanDriver{}
}

type vulkanDriver struct{}

func (vulkanDriver) PhysicalDevices(instance vk.Instance) (gpus []vk.PhysicalDevice, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.EnumeratePhysicalDevices(instance, &count, nil)))
	gpus = make([]vk.PhysicalDevice, count)
	orPanic(NewError(vk.EnumeratePhysicalDevices(instance, &count, gpus)))
	return gpus[:count], nil
}

func (vulkanDriver) QueueFamilies(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	for i := range props {
		props[i].Deref()
	}
	return props
}

func (vulkanDriver) SurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, error) {
	var supported vk.Bool32
	if err := NewError(vk.GetPhysicalDeviceSurfaceSupport(gpu, family, surface, &supported)); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (vulkanDriver) DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	return DeviceExtensions(gpu)
}

func (vulkanDriver) Features(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()
	return features
}

func (vulkanDriver) MemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &props)
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
	}
	return props
}

func (vulkanDriver) SurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := NewError(vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &caps)); err != nil {
		return caps, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func (vulkanDriver) SurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) (formats []vk.SurfaceFormat, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil)))
	formats = make([]vk.SurfaceFormat, count)
	orPanic(NewError(vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, formats)))
	for i := range formats {
		formats[i].Deref()
	}
	return formats, nil
}

func (vulkanDriver) PresentModes(gpu vk.PhysicalDevice, surface vk.Surface) (modes []vk.PresentMode, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil)))
	modes = make([]vk.PresentMode, count)
	orPanic(NewError(vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes)))
	return modes, nil
}

func (vulkanDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error) {
	var device vk.Device
	ret := vk.CreateDevice(gpu, info, nil, &device)
	return device, NewError(ret)
}

func (vulkanDriver) DeviceQueue(device vk.Device, family uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(device, family, 0, &queue)
	return queue
}

func (vulkanDriver) DeviceWaitIdle(device vk.Device) error {
	return NewError(vk.DeviceWaitIdle(device))
}

func (vulkanDriver) DestroyDevice(device vk.Device) {
	vk.DestroyDevice(device, nil)
}

func (vulkanDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	vk.DestroySurface(instance, surface, nil)
}

func (vulkanDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(device, info, nil, &swapchain)
	return swapchain, NewError(ret)
}

func (vulkanDriver) SwapchainImages(device vk.Device, swapchain vk.Swapchain) (images []vk.Image, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.GetSwapchainImages(device, swapchain, &count, nil)))
	images = make([]vk.Image, count)
	orPanic(NewError(vk.GetSwapchainImages(device, swapchain, &count, images)))
	return images[:count], nil
}

func (vulkanDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	vk.DestroySwapchain(device, swapchain, nil)
}

func (vulkanDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result) {
	var index uint32
	ret := vk.AcquireNextImage(device, swapchain, timeout, signal, vk.NullFence, &index)
	return index, ret
}

func (vulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (vulkanDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, info, nil, &view)
	return view, NewError(ret)
}

func (vulkanDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	vk.DestroyImageView(device, view, nil)
}

func (vulkanDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(device, info, nil, &pass)
	return pass, NewError(ret)
}

func (vulkanDriver) DestroyRenderPass(device vk.Device, pass vk.RenderPass) {
	vk.DestroyRenderPass(device, pass, nil)
}

func (vulkanDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(device, info, nil, &fb)
	return fb, NewError(ret)
}

func (vulkanDriver) DestroyFramebuffer(device vk.Device, fb vk.Framebuffer) {
	vk.DestroyFramebuffer(device, fb, nil)
}

func (vulkanDriver) CreateFence(device vk.Device, signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(device, &info, nil, &fence)
	return fence, NewError(ret)
}

func (vulkanDriver) WaitForFence(device vk.Device, fence vk.Fence, timeout uint64) error {
	return NewError(vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, timeout))
}

func (vulkanDriver) ResetFence(device vk.Device, fence vk.Fence) error {
	return NewError(vk.ResetFences(device, 1, []vk.Fence{fence}))
}

func (vulkanDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	vk.DestroyFence(device, fence, nil)
}

func (vulkanDriver) CreateSemaphore(device vk.Device) (vk.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	return sem, NewError(ret)
}

func (vulkanDriver) DestroySemaphore(device vk.Device, sem vk.Semaphore) {
	vk.DestroySemaphore(device, sem, nil)
}

func (vulkanDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	return NewError(vk.QueueSubmit(queue, uint32(len(submits)), submits, fence))
}

func (vulkanDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, info, nil, &pool)
	return pool, NewError(ret)
}

func (vulkanDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(device, pool, nil)
}

func (vulkanDriver) AllocateCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	cmds := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}, cmds)
	return cmds, NewError(ret)
}

func (vulkanDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, cmds []vk.CommandBuffer) {
	vk.FreeCommandBuffers(device, pool, uint32(len(cmds)), cmds)
}

func (vulkanDriver) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	return NewError(vk.BeginCommandBuffer(cmd, info))
}

func (vulkanDriver) EndCommandBuffer(cmd vk.CommandBuffer) error {
	return NewError(vk.EndCommandBuffer(cmd))
}

func (vulkanDriver) ResetCommandBuffer(cmd vk.CommandBuffer) error {
	return NewError(vk.ResetCommandBuffer(cmd, 0))
}

func (vulkanDriver) CmdSetViewport(cmd vk.CommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport})
}

func (vulkanDriver) CmdSetScissor(cmd vk.CommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})
}

func (vulkanDriver) CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(cmd, info, vk.SubpassContentsInline)
}

func (vulkanDriver) CmdEndRenderPass(cmd vk.CommandBuffer) {
	vk.CmdEndRenderPass(cmd)
}

func (vulkanDriver) CmdBindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, pipeline)
}

func (vulkanDriver) CmdBindDescriptorSet(cmd vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
}

func (vulkanDriver) CmdBindVertexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer) {
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{buffer}, []vk.DeviceSize{0})
}

func (vulkanDriver) CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(cmd, buffer, 0, indexType)
}

func (vulkanDriver) CmdDrawIndexed(cmd vk.CommandBuffer, indexCount uint32) {
	vk.CmdDrawIndexed(cmd, indexCount, 1, 0, 0, 0)
}

func (vulkanDriver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, size vk.DeviceSize) {
	vk.CmdCopyBuffer(cmd, src, dst, 1, []vk.BufferCopy{{Size: size}})
}

func (vulkanDriver) CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(device, info, nil, &buffer)
	return buffer, NewError(ret)
}

func (vulkanDriver) DestroyBuffer(device vk.Device, buffer vk.Buffer) {
	vk.DestroyBuffer(device, buffer, nil)
}

func (vulkanDriver) BufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &reqs)
	reqs.Deref()
	return reqs
}

func (vulkanDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var memory vk.DeviceMemory
	ret := vk.AllocateMemory(device, info, nil, &memory)
	return memory, NewError(ret)
}

func (vulkanDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory) {
	vk.FreeMemory(device, memory, nil)
}

func (vulkanDriver) BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory) error {
	return NewError(vk.BindBufferMemory(device, buffer, memory, 0))
}

func (vulkanDriver) MapMemory(device vk.Device, memory vk.DeviceMemory, size vk.DeviceSize) (unsafe.Pointer, error) {
	var data unsafe.Pointer
	ret := vk.MapMemory(device, memory, 0, size, 0, &data)
	return data, NewError(ret)
}

func (vulkanDriver) UnmapMemory(device vk.Device, memory vk.DeviceMemory) {
	vk.UnmapMemory(device, memory)
}

func (vulkanDriver) CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(device, info, nil, &layout)
	return layout, NewError(ret)
}

func (vulkanDriver) DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(device, layout, nil)
}

func (vulkanDriver) CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(device, info, nil, &pool)
	return pool, NewError(ret)
}

func (vulkanDriver) DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(device, pool, nil)
}

func (vulkanDriver) AllocateDescriptorSet(device vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	return set, NewError(ret)
}

func (vulkanDriver) UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
}

func (vulkanDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, info, nil, &layout)
	return layout, NewError(ret)
}

func (vulkanDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(device, layout, nil)
}

func (vulkanDriver) CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret := vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{*info}, nil, pipelines)
	return pipelines[0], NewError(ret)
}

func (vulkanDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(device, pipeline, nil)
}

func (vulkanDriver) CreateShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	return module, NewError(ret)
}

func (vulkanDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(device, module, nil)
}
