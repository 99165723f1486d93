package prerotate

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Driver is the set of Vulkan entry points the renderer issues. Every call
// the core makes on the GPU goes through it; NewVulkanDriver forwards each
// method to github.com/vulkan-go/vulkan.
//
// Methods that create objects return the handle plus a fatal *Error built by
// NewError. Acquire and present return the raw vk.Result because callers
// branch on out-of-date and suboptimal.
type Driver interface {
	AdapterDriver
	PresentDriver
	SyncDriver
	CommandDriver
	ResourceDriver
}

// AdapterDriver covers physical device queries and logical device lifetime.
type AdapterDriver interface {
	PhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error)
	QueueFamilies(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties
	SurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, error)
	DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error)
	Features(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures
	MemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties
	SurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, error)
	SurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error)
	PresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error)

	CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, error)
	DeviceQueue(device vk.Device, family uint32) vk.Queue
	DeviceWaitIdle(device vk.Device) error
	DestroyDevice(device vk.Device)
	DestroySurface(instance vk.Instance, surface vk.Surface)
}

// PresentDriver covers the image chain and the objects derived from it.
type PresentDriver interface {
	CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, error)
	DestroySwapchain(device vk.Device, swapchain vk.Swapchain)
	AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(device vk.Device, view vk.ImageView)
	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(device vk.Device, pass vk.RenderPass)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(device vk.Device, fb vk.Framebuffer)
}

// SyncDriver covers fences, semaphores and queue submission.
type SyncDriver interface {
	CreateFence(device vk.Device, signaled bool) (vk.Fence, error)
	WaitForFence(device vk.Device, fence vk.Fence, timeout uint64) error
	ResetFence(device vk.Device, fence vk.Fence) error
	DestroyFence(device vk.Device, fence vk.Fence)
	CreateSemaphore(device vk.Device) (vk.Semaphore, error)
	DestroySemaphore(device vk.Device, sem vk.Semaphore)
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error
}

// CommandDriver covers command pools, buffers and the recorded commands.
type CommandDriver interface {
	CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, error)
	DestroyCommandPool(device vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(device vk.Device, pool vk.CommandPool, cmds []vk.CommandBuffer)
	BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error
	EndCommandBuffer(cmd vk.CommandBuffer) error
	ResetCommandBuffer(cmd vk.CommandBuffer) error

	CmdSetViewport(cmd vk.CommandBuffer, viewport vk.Viewport)
	CmdSetScissor(cmd vk.CommandBuffer, scissor vk.Rect2D)
	CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(cmd vk.CommandBuffer)
	CmdBindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline)
	CmdBindDescriptorSet(cmd vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet)
	CmdBindVertexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer)
	CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, indexType vk.IndexType)
	CmdDrawIndexed(cmd vk.CommandBuffer, indexCount uint32)
	CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, size vk.DeviceSize)
}

// ResourceDriver covers buffers, memory, descriptors, pipelines and shaders.
type ResourceDriver interface {
	CreateBuffer(device vk.Device, info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(device vk.Device, buffer vk.Buffer)
	BufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements
	AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error)
	FreeMemory(device vk.Device, memory vk.DeviceMemory)
	BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory) error
	MapMemory(device vk.Device, memory vk.DeviceMemory, size vk.DeviceSize) (unsafe.Pointer, error)
	UnmapMemory(device vk.Device, memory vk.DeviceMemory)

	CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout)
	CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool)
	AllocateDescriptorSet(device vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error)
	UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet)

	CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout)
	CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(device vk.Device, pipeline vk.Pipeline)
	CreateShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error)
	DestroyShaderModule(device vk.Device, module vk.ShaderModule)
}
