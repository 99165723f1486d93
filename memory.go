package prerotate

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const (
	hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
)

// FindMemoryType returns the lowest memory type index whose bit is set in
// typeBits and whose property flags contain all of required. Having none is
// a fatal ErrNoMemoryType.
func FindMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, required vk.MemoryPropertyFlags) (uint32, error) {
	count := props.MemoryTypeCount
	if count > vk.MaxMemoryTypes {
		count = vk.MaxMemoryTypes
	}
	for i := uint32(0); i < count; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		if props.MemoryTypes[i].PropertyFlags&required == required {
			return i, nil
		}
	}
	return 0, &Error{
		Kind: KindFatal,
		Op:   "find memory type",
		Err:  errors.Wrapf(ErrNoMemoryType, "type bits %#b, required flags %#x", typeBits, required),
	}
}
