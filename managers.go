package prerotate

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandPool allocates primary command buffers on the graphics family.
// Buffers from it can be reset individually.
type CommandPool struct {
	drv    Driver
	device vk.Device
	pool   vk.CommandPool
}

func NewCommandPool(dev *Device) (*CommandPool, error) {
	pool, err := dev.Driver().CreateCommandPool(dev.Handle(), &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dev.Families().Graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	})
	if err != nil {
		return nil, wrapOp("create command pool", err)
	}
	return &CommandPool{drv: dev.Driver(), device: dev.Handle(), pool: pool}, nil
}

func (c *CommandPool) Handle() vk.CommandPool { return c.pool }

func (c *CommandPool) Allocate(count uint32) ([]vk.CommandBuffer, error) {
	cmds, err := c.drv.AllocateCommandBuffers(c.device, c.pool, count)
	return cmds, wrapOp("allocate command buffers", err)
}

func (c *CommandPool) Free(cmds ...vk.CommandBuffer) {
	if len(cmds) > 0 {
		c.drv.FreeCommandBuffers(c.device, c.pool, cmds)
	}
}

// Destroy frees every buffer still allocated from the pool.
func (c *CommandPool) Destroy() {
	if c.pool != vk.NullCommandPool {
		c.drv.DestroyCommandPool(c.device, c.pool)
		c.pool = vk.NullCommandPool
	}
}

// frameSync is the synchronization triple of one in-flight slot.
type frameSync struct {
	imageAcquired  vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       vk.Fence
}

// newFrameSync creates the fence signaled so the first wait on a fresh slot
// returns at once.
func newFrameSync(drv SyncDriver, device vk.Device) (s frameSync, err error) {
	defer func() {
		if err != nil {
			s.destroy(drv, device)
		}
	}()
	if s.imageAcquired, err = drv.CreateSemaphore(device); err != nil {
		return s, wrapOp("create semaphore", err)
	}
	if s.renderFinished, err = drv.CreateSemaphore(device); err != nil {
		return s, wrapOp("create semaphore", err)
	}
	if s.inFlight, err = drv.CreateFence(device, true); err != nil {
		return s, wrapOp("create fence", err)
	}
	return s, nil
}

func (s *frameSync) destroy(drv SyncDriver, device vk.Device) {
	if s.inFlight != vk.NullFence {
		drv.DestroyFence(device, s.inFlight)
		s.inFlight = vk.NullFence
	}
	if s.renderFinished != vk.NullSemaphore {
		drv.DestroySemaphore(device, s.renderFinished)
		s.renderFinished = vk.NullSemaphore
	}
	if s.imageAcquired != vk.NullSemaphore {
		drv.DestroySemaphore(device, s.imageAcquired)
		s.imageAcquired = vk.NullSemaphore
	}
}
