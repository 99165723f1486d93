package prerotate

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// RequiredDeviceExtensions must all be present for an adapter to be suitable.
var RequiredDeviceExtensions = []string{vk.KhrSwapchainExtensionName}

// InstanceExtensions gets a list of instance extensions available on the platform.
func InstanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.EnumerateInstanceExtensionProperties("", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	orPanic(NewError(vk.EnumerateInstanceExtensionProperties("", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// DeviceExtensions gets a list of extensions available on the provided physical device.
func DeviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	orPanic(NewError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// ValidationLayers gets a list of validation layers available on the platform.
func ValidationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.EnumerateInstanceLayerProperties(&count, nil)))
	list := make([]vk.LayerProperties, count)
	orPanic(NewError(vk.EnumerateInstanceLayerProperties(&count, list)))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// missing returns the entries of want that are absent from have. Names coming
// back from the loader are NUL-terminated so both sides are normalized.
func missing(want, have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[safeString(h)] = struct{}{}
	}
	var out []string
	for _, w := range want {
		if _, ok := set[safeString(w)]; !ok {
			out = append(out, safeString(w))
		}
	}
	return out
}

// checkDeviceExtensions fails with ErrMissingExtension naming the first absent extension.
func checkDeviceExtensions(available []string) error {
	if gone := missing(RequiredDeviceExtensions, available); len(gone) > 0 {
		return configError("device extensions", errors.Wrap(ErrMissingExtension, gone[0]))
	}
	return nil
}

func safeString(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\x00' {
		return s[:n-1]
	}
	return s
}

// safeStrings appends the NUL terminator vulkan-go expects on name lists.
func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s) + "\x00"
	}
	return out
}
