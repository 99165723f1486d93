package prerotate

import (
	vk "github.com/vulkan-go/vulkan"
)

// scheduler drives the slot ring: one call to renderFrame is one trip
// through wait, acquire, update, record, submit and present for the
// current slot.
type scheduler struct {
	dev       *Device
	swapchain *Swapchain
	ring      *frameRing
	recorder  *Recorder
	draw      DrawState
	scale     [3]float32

	surface            vk.Surface
	current            int
	frames             uint64
	orientationChanged bool
	rebuildCause       string

	// onState, when set, sees every slot transition.
	onState func(slot int, state SlotState)
}

func (s *scheduler) setState(slot *frameSlot, state SlotState) {
	slot.state = state
	if s.onState != nil {
		s.onState(slot.index, state)
	}
}

// markRebuild defers a swapchain rebuild to the start of the next frame.
// The first cause marked before that rebuild is the one logged.
func (s *scheduler) markRebuild(cause string) {
	if !s.orientationChanged {
		s.rebuildCause = cause
	}
	s.orientationChanged = true
}

// renderFrame presents one frame. Out-of-date at acquire rebuilds the chain
// and returns without advancing, so the same slot runs next time.
// Suboptimal at present is only noted and handled at the top of the next
// call; out-of-date at present rebuilds at once.
func (s *scheduler) renderFrame() (err error) {
	if s.orientationChanged {
		cause := s.rebuildCause
		s.orientationChanged, s.rebuildCause = false, ""
		if err := s.swapchain.Recreate(cause); err != nil {
			return err
		}
	}

	drv, device := s.dev.Driver(), s.dev.Handle()
	slot, tok, err := s.ring.checkout(s.current)
	if err != nil {
		return wrapOp("checkout frame slot", err)
	}
	defer func() {
		s.setState(slot, SlotIdle)
		if rerr := s.ring.release(tok); err == nil && rerr != nil {
			err = wrapOp("release frame slot", rerr)
		}
	}()

	s.setState(slot, SlotAcquiring)
	if err := drv.WaitForFence(device, slot.sync.inFlight, vk.MaxUint64); err != nil {
		return wrapOp("wait frame fence", err)
	}
	res := s.swapchain.Resources()
	imageIndex, ret := drv.AcquireNextImage(device, res.Swapchain, vk.MaxUint64, slot.sync.imageAcquired)
	switch ret {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return s.swapchain.Recreate("out-of-date")
	default:
		return resultError("acquire next image", ret)
	}
	// Only reset once work is certain to be submitted, or the next wait on
	// this slot would never return.
	if err := drv.ResetFence(device, slot.sync.inFlight); err != nil {
		return wrapOp("reset frame fence", err)
	}

	s.setState(slot, SlotRecording)
	caps, err := drv.SurfaceCapabilities(s.dev.PhysicalDevice(), s.surface)
	if err != nil {
		return wrapOp("query surface capabilities", err)
	}
	// The rotation must match the chain's PreTransform, not the live one,
	// until the chain is rebuilt.
	if err := s.recorder.WriteTransform(slot.uniform, ComputeTransform(caps, res.Transform, s.scale)); err != nil {
		return wrapOp("update uniform buffer", err)
	}
	if err := s.recorder.Record(slot.cmd, res, imageIndex, slot.descriptor, s.draw); err != nil {
		return err
	}

	if _, err := s.ring.slot(tok); err != nil {
		return err
	}
	err = drv.QueueSubmit(s.dev.GraphicsQueue(), []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.sync.imageAcquired},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.sync.renderFinished},
	}}, slot.sync.inFlight)
	if err != nil {
		return wrapOp("submit frame", err)
	}
	s.setState(slot, SlotSubmitted)

	s.setState(slot, SlotPresenting)
	ret = drv.QueuePresent(s.dev.PresentQueue(), &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.sync.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{res.Swapchain},
		PImageIndices:      []uint32{imageIndex},
	})
	switch ret {
	case vk.Success:
	case vk.Suboptimal:
		s.markRebuild("suboptimal")
	case vk.ErrorOutOfDate:
		if err := s.swapchain.Recreate("out-of-date"); err != nil {
			return err
		}
	default:
		return resultError("present", ret)
	}

	s.current = (s.current + 1) % s.ring.len()
	s.frames++
	return nil
}
