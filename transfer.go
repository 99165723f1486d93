package prerotate

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// UploadRequest is one static resource: its final usage and initial contents.
type UploadRequest struct {
	Usage vk.BufferUsageFlags
	Data  []byte
}

// Transfer moves bytes between host and device-local buffers through
// short-lived staging buffers. Every operation blocks until the copy is done;
// it is meant for startup and debugging, never for the frame loop.
type Transfer struct {
	dev   *Device
	pool  *CommandPool
	debug bool
	lease *leaseTable
}

// NewTransfer returns a Transfer recording on pool. With debug set, uploaded
// buffers also carry TRANSFER_SRC so ReadBack can copy them out again.
func NewTransfer(dev *Device, pool *CommandPool, debug bool) *Transfer {
	return &Transfer{dev: dev, pool: pool, debug: debug, lease: newLeaseTable(1)}
}

func (t *Transfer) Upload(usage vk.BufferUsageFlags, data []byte) (*GPUBuffer, error) {
	bufs, err := t.UploadAll([]UploadRequest{{Usage: usage, Data: data}})
	if err != nil {
		return nil, err
	}
	return bufs[0], nil
}

// UploadAll creates a device-local buffer per request and fills them all
// with one command buffer, one submit and one fence wait. Staging buffers
// are gone when it returns.
func (t *Transfer) UploadAll(reqs []UploadRequest) (out []*GPUBuffer, err error) {
	var staging []*GPUBuffer
	defer func() {
		for _, s := range staging {
			s.Destroy()
		}
		if err != nil {
			for _, b := range out {
				b.Destroy()
			}
			out = nil
		}
	}()

	var total int
	for i, req := range reqs {
		if len(req.Data) == 0 {
			return out, errors.Errorf("upload %d is empty", i)
		}
		size := vk.DeviceSize(len(req.Data))
		src, err := newBuffer(t.dev, size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible)
		if err != nil {
			return out, err
		}
		staging = append(staging, src)
		if err := src.Write(req.Data); err != nil {
			return out, err
		}
		usage := req.Usage | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
		if t.debug {
			usage |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
		}
		dst, err := newBuffer(t.dev, size, usage, deviceLocal)
		if err != nil {
			return out, err
		}
		out = append(out, dst)
		total += len(req.Data)
	}

	err = t.oneShot(func(drv CommandDriver, cmd vk.CommandBuffer) {
		for i := range out {
			drv.CmdCopyBuffer(cmd, staging[i].Buffer, out[i].Buffer, out[i].Size)
		}
	})
	if err != nil {
		return out, err
	}
	Logger().Debug("staged upload complete", "buffers", len(out), "bytes", total)
	return out, nil
}

// ReadBack copies buf into a host-visible buffer and returns its bytes. buf
// must have been created with TRANSFER_SRC, which Upload does in debug mode.
func (t *Transfer) ReadBack(buf *GPUBuffer) ([]byte, error) {
	if buf.Usage&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) == 0 {
		return nil, errors.New("read back needs a buffer created with TRANSFER_SRC (enable debug readback)")
	}
	dst, err := newBuffer(t.dev, buf.Size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), hostVisible)
	if err != nil {
		return nil, err
	}
	defer dst.Destroy()

	err = t.oneShot(func(drv CommandDriver, cmd vk.CommandBuffer) {
		drv.CmdCopyBuffer(cmd, buf.Buffer, dst.Buffer, buf.Size)
	})
	if err != nil {
		return nil, err
	}
	return dst.Read()
}

// oneShot records with record into a fresh command buffer, submits it on the
// graphics queue behind a dedicated fence and waits for that fence.
func (t *Transfer) oneShot(record func(drv CommandDriver, cmd vk.CommandBuffer)) (err error) {
	tok, err := t.lease.acquire(0)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := t.lease.release(tok); err == nil {
			err = rerr
		}
	}()

	drv, device := t.dev.Driver(), t.dev.Handle()
	cmds, err := t.pool.Allocate(1)
	if err != nil {
		return err
	}
	defer t.pool.Free(cmds...)
	cmd := cmds[0]

	if err := drv.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}); err != nil {
		return wrapOp("begin transfer commands", err)
	}
	record(drv, cmd)
	if err := drv.EndCommandBuffer(cmd); err != nil {
		return wrapOp("end transfer commands", err)
	}

	fence, err := drv.CreateFence(device, false)
	if err != nil {
		return wrapOp("create transfer fence", err)
	}
	defer drv.DestroyFence(device, fence)

	if err := t.lease.check(tok); err != nil {
		return err
	}
	if err := drv.QueueSubmit(t.dev.GraphicsQueue(), []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmds,
	}}, fence); err != nil {
		return wrapOp("submit transfer", err)
	}
	return wrapOp("wait transfer fence", drv.WaitForFence(device, fence, vk.MaxUint64))
}
