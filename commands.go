package prerotate

import (
	"encoding/binary"
	"math"

	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// DrawState is what one frame draws.
type DrawState struct {
	Pipeline   *Pipeline
	Vertices   *GPUBuffer
	Indices    *GPUBuffer
	IndexCount uint32
}

// Recorder fills per-frame command buffers and uniform buffers.
type Recorder struct {
	drv   CommandDriver
	clear [4]float32
}

func NewRecorder(drv CommandDriver, clear [4]float32) *Recorder {
	return &Recorder{drv: drv, clear: clear}
}

// Viewport covers the whole identity extent.
func Viewport(extent vk.Extent2D) vk.Viewport {
	return vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

// Record resets cmd and records one pass over framebuffer imageIndex of res.
// The slot fence guarding cmd must have signaled.
func (r *Recorder) Record(cmd vk.CommandBuffer, res SwapchainResources, imageIndex uint32, set vk.DescriptorSet, draw DrawState) error {
	if err := r.drv.ResetCommandBuffer(cmd); err != nil {
		return wrapOp("reset command buffer", err)
	}
	if err := r.drv.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}); err != nil {
		return wrapOp("begin command buffer", err)
	}

	area := vk.Rect2D{Offset: vk.Offset2D{}, Extent: res.Extent}
	r.drv.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      res.RenderPass,
		Framebuffer:     res.Framebuffers[imageIndex],
		RenderArea:      area,
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{vk.NewClearValue(r.clear[:])},
	})
	r.drv.CmdBindPipeline(cmd, draw.Pipeline.Handle)
	r.drv.CmdSetViewport(cmd, Viewport(res.Extent))
	r.drv.CmdSetScissor(cmd, area)
	r.drv.CmdBindVertexBuffer(cmd, draw.Vertices.Buffer)
	r.drv.CmdBindIndexBuffer(cmd, draw.Indices.Buffer, vk.IndexTypeUint16)
	r.drv.CmdBindDescriptorSet(cmd, draw.Pipeline.Layout, set)
	r.drv.CmdDrawIndexed(cmd, draw.IndexCount)
	r.drv.CmdEndRenderPass(cmd)

	return wrapOp("end command buffer", r.drv.EndCommandBuffer(cmd))
}

// WriteTransform stores m in ub as 16 little-endian floats, column by column.
func (r *Recorder) WriteTransform(ub *GPUBuffer, m lin.Mat4x4) error {
	data := make([]byte, 0, uniformSize)
	for _, f := range m.Slice() {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
	}
	return ub.Write(data)
}
