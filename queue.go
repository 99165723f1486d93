package prerotate

import (
	vk "github.com/vulkan-go/vulkan"
)

// QueueFamilySelection holds the graphics and present queue family indices
// of one physical device. The two may name the same family.
type QueueFamilySelection struct {
	Graphics    uint32
	Present     uint32
	hasGraphics bool
	hasPresent  bool
}

// IsComplete is true once both families are resolved.
func (q QueueFamilySelection) IsComplete() bool {
	return q.hasGraphics && q.hasPresent
}

// Separate is true when presentation happens on a different family than rendering.
func (q QueueFamilySelection) Separate() bool {
	return q.Graphics != q.Present
}

// Unique lists the distinct family indices, graphics first.
func (q QueueFamilySelection) Unique() []uint32 {
	if q.Separate() {
		return []uint32{q.Graphics, q.Present}
	}
	return []uint32{q.Graphics}
}

// createInfos yields one queue with priority 1 per distinct family.
func (q QueueFamilySelection) createInfos() []vk.DeviceQueueCreateInfo {
	families := q.Unique()
	infos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		infos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}
	return infos
}

// findQueueFamilies picks the first graphics family and the first family able
// to present to surface, each independently. It stops early when both are known.
func findQueueFamilies(drv AdapterDriver, gpu vk.PhysicalDevice, surface vk.Surface) (QueueFamilySelection, error) {
	var sel QueueFamilySelection
	for i, props := range drv.QueueFamilies(gpu) {
		family := uint32(i)
		if !sel.hasGraphics && props.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			sel.Graphics, sel.hasGraphics = family, true
		}
		if !sel.hasPresent {
			supported, err := drv.SurfaceSupport(gpu, family, surface)
			if err != nil {
				return sel, err
			}
			if supported {
				sel.Present, sel.hasPresent = family, true
			}
		}
		if sel.IsComplete() {
			break
		}
	}
	return sel, nil
}
