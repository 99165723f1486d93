package prerotate

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// uniformSize is one column-major mat4.
const uniformSize = 16 * 4

// SlotState is where a frame slot is in its acquire-to-present cycle.
type SlotState uint8

const (
	SlotIdle SlotState = iota
	SlotAcquiring
	SlotRecording
	SlotSubmitted
	SlotPresenting
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotAcquiring:
		return "acquiring"
	case SlotRecording:
		return "recording"
	case SlotSubmitted:
		return "submitted"
	case SlotPresenting:
		return "presenting"
	}
	return fmt.Sprintf("SlotState(%d)", uint8(s))
}

// frameSlot is everything one in-flight frame touches on the CPU side. Its
// command buffer, uniform buffer and descriptor set may only be rewritten
// after sync.inFlight has signaled.
type frameSlot struct {
	index      int
	state      SlotState
	sync       frameSync
	cmd        vk.CommandBuffer
	uniform    *GPUBuffer
	descriptor vk.DescriptorSet
}

// frameRing owns the slots and the descriptor pool their sets come from.
type frameRing struct {
	drv    Driver
	device vk.Device
	pool   *CommandPool

	descriptorPool vk.DescriptorPool
	slots          []*frameSlot
	lease          *leaseTable
}

func newFrameRing(dev *Device, pool *CommandPool, setLayout vk.DescriptorSetLayout, n int) (_ *frameRing, err error) {
	r := &frameRing{
		drv:    dev.Driver(),
		device: dev.Handle(),
		pool:   pool,
		lease:  newLeaseTable(n),
	}
	defer func() {
		if err != nil {
			r.destroy()
		}
	}()

	r.descriptorPool, err = r.drv.CreateDescriptorPool(r.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(n),
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: uint32(n),
		}},
	})
	if err != nil {
		return nil, wrapOp("create descriptor pool", err)
	}

	cmds, err := pool.Allocate(uint32(n))
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		slot := &frameSlot{index: i, cmd: cmds[i]}
		r.slots = append(r.slots, slot)

		if slot.sync, err = newFrameSync(r.drv, r.device); err != nil {
			return nil, err
		}
		if slot.uniform, err = newBuffer(dev, uniformSize, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), hostVisible); err != nil {
			return nil, err
		}
		if slot.descriptor, err = r.drv.AllocateDescriptorSet(r.device, r.descriptorPool, setLayout); err != nil {
			return nil, wrapOp("allocate descriptor set", err)
		}
		r.drv.UpdateDescriptorSets(r.device, []vk.WriteDescriptorSet{{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          slot.descriptor,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: slot.uniform.Buffer,
				Offset: 0,
				Range:  uniformSize,
			}},
		}})
	}
	return r, nil
}

func (r *frameRing) len() int { return len(r.slots) }

// checkout hands out slot i for one frame.
func (r *frameRing) checkout(i int) (*frameSlot, Token, error) {
	tok, err := r.lease.acquire(i)
	if err != nil {
		return nil, tok, err
	}
	return r.slots[i], tok, nil
}

// slot resolves tok, failing with ErrStaleToken once it has been released.
func (r *frameRing) slot(tok Token) (*frameSlot, error) {
	if err := r.lease.check(tok); err != nil {
		return nil, err
	}
	return r.slots[tok.Slot], nil
}

func (r *frameRing) release(tok Token) error {
	return r.lease.release(tok)
}

// destroy expects the device to be idle. Descriptor sets go with their pool.
func (r *frameRing) destroy() {
	var cmds []vk.CommandBuffer
	for _, s := range r.slots {
		s.sync.destroy(r.drv, r.device)
		s.uniform.Destroy()
		if s.cmd != nil {
			cmds = append(cmds, s.cmd)
		}
	}
	r.pool.Free(cmds...)
	r.slots = nil
	if r.descriptorPool != vk.NullDescriptorPool {
		r.drv.DestroyDescriptorPool(r.device, r.descriptorPool)
		r.descriptorPool = vk.NullDescriptorPool
	}
}
