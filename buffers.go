package prerotate

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// GPUBuffer is one buffer with its own dedicated allocation.
type GPUBuffer struct {
	drv    Driver
	device vk.Device

	Buffer vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags
}

// newBuffer creates a buffer of size bytes and binds it to fresh memory of
// the lowest compatible type carrying props.
func newBuffer(dev *Device, size vk.DeviceSize, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*GPUBuffer, error) {
	drv, device := dev.Driver(), dev.Handle()
	buffer, err := drv.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	})
	if err != nil {
		return nil, wrapOp("create buffer", err)
	}

	reqs := drv.BufferMemoryRequirements(device, buffer)
	memType, err := FindMemoryType(dev.MemoryProperties(), reqs.MemoryTypeBits, props)
	if err != nil {
		drv.DestroyBuffer(device, buffer)
		return nil, err
	}
	memory, err := drv.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	})
	if err != nil {
		drv.DestroyBuffer(device, buffer)
		return nil, wrapOp("allocate buffer memory", err)
	}
	if err := drv.BindBufferMemory(device, buffer, memory); err != nil {
		drv.FreeMemory(device, memory)
		drv.DestroyBuffer(device, buffer)
		return nil, wrapOp("bind buffer memory", err)
	}
	return &GPUBuffer{
		drv:    drv,
		device: device,
		Buffer: buffer,
		Memory: memory,
		Size:   size,
		Usage:  usage,
	}, nil
}

// Write maps the buffer, copies data to its start and unmaps. The memory
// must be host visible and coherent.
func (b *GPUBuffer) Write(data []byte) error {
	if vk.DeviceSize(len(data)) > b.Size {
		return errors.Errorf("write of %d bytes overflows %d byte buffer", len(data), b.Size)
	}
	if len(data) == 0 {
		return nil
	}
	ptr, err := b.drv.MapMemory(b.device, b.Memory, vk.DeviceSize(len(data)))
	if err != nil {
		return wrapOp("map memory", err)
	}
	if n := vk.Memcopy(ptr, data); n != len(data) {
		b.drv.UnmapMemory(b.device, b.Memory)
		return errors.Errorf("copied %d of %d bytes", n, len(data))
	}
	b.drv.UnmapMemory(b.device, b.Memory)
	return nil
}

// Read maps the whole buffer and returns a copy of its contents.
func (b *GPUBuffer) Read() ([]byte, error) {
	ptr, err := b.drv.MapMemory(b.device, b.Memory, b.Size)
	if err != nil {
		return nil, wrapOp("map memory", err)
	}
	out := make([]byte, b.Size)
	copy(out, unsafe.Slice((*byte)(ptr), int(b.Size)))
	b.drv.UnmapMemory(b.device, b.Memory)
	return out, nil
}

func (b *GPUBuffer) Destroy() {
	if b == nil || b.device == nil {
		return
	}
	b.drv.DestroyBuffer(b.device, b.Buffer)
	b.drv.FreeMemory(b.device, b.Memory)
	b.device = nil
}
