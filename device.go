package prerotate

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Adapter is a physical device that passed selection.
type Adapter struct {
	GPU    vk.PhysicalDevice
	Index  int
	Queues QueueFamilySelection
}

// SelectDevice returns the first physical device that has graphics and
// present queue families for surface, every extension in
// RequiredDeviceExtensions, and at least one surface format and present mode.
// No device or no suitable device is a KindConfig error.
func SelectDevice(drv AdapterDriver, instance vk.Instance, surface vk.Surface) (Adapter, error) {
	gpus, err := drv.PhysicalDevices(instance)
	if err != nil {
		return Adapter{}, wrapOp("enumerate physical devices", err)
	}
	if len(gpus) == 0 {
		return Adapter{}, configError("select device", errors.Wrap(ErrNoAdapter, "no physical devices"))
	}
	log := Logger()
	for i, gpu := range gpus {
		reason, err := suitability(drv, gpu, surface)
		if err != nil {
			return Adapter{}, err
		}
		if reason != "" {
			log.Debug("adapter rejected", "index", i, "reason", reason)
			continue
		}
		queues, _ := findQueueFamilies(drv, gpu, surface)
		log.Info("adapter selected", "index", i, "graphics_family", queues.Graphics, "present_family", queues.Present)
		return Adapter{GPU: gpu, Index: i, Queues: queues}, nil
	}
	return Adapter{}, configError("select device", errors.Wrapf(ErrNoAdapter, "%d devices, none suitable", len(gpus)))
}

// suitability returns an empty reason when gpu can drive surface.
func suitability(drv AdapterDriver, gpu vk.PhysicalDevice, surface vk.Surface) (string, error) {
	queues, err := findQueueFamilies(drv, gpu, surface)
	if err != nil {
		return "", wrapOp("query surface support", err)
	}
	if !queues.IsComplete() {
		return ErrIncompleteQueues.Error(), nil
	}
	exts, err := drv.DeviceExtensions(gpu)
	if err != nil {
		return "", wrapOp("enumerate device extensions", err)
	}
	if err := checkDeviceExtensions(exts); err != nil {
		return err.Error(), nil
	}
	formats, err := drv.SurfaceFormats(gpu, surface)
	if err != nil {
		return "", wrapOp("query surface formats", err)
	}
	modes, err := drv.PresentModes(gpu, surface)
	if err != nil {
		return "", wrapOp("query present modes", err)
	}
	if len(formats) == 0 || len(modes) == 0 {
		return "no surface formats or present modes", nil
	}
	return "", nil
}

// DeviceOptions tunes logical device creation.
type DeviceOptions struct {
	// Layers are enabled on the device for older loaders.
	Layers []string
	// WideLines requests the wideLines feature when the adapter has it.
	WideLines bool
}

// Device is the logical device plus the queues and properties the
// presentation core keeps consulting.
type Device struct {
	drv      Driver
	gpu      vk.PhysicalDevice
	handle   vk.Device
	families QueueFamilySelection

	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	memoryProperties vk.PhysicalDeviceMemoryProperties
	wideLines        bool
}

func NewDevice(drv Driver, adapter Adapter, opts DeviceOptions) (*Device, error) {
	if !adapter.Queues.IsComplete() {
		return nil, configError("create device", ErrIncompleteQueues)
	}
	features := vk.PhysicalDeviceFeatures{}
	wide := opts.WideLines && drv.Features(adapter.GPU).WideLines.B()
	if wide {
		features.WideLines = vk.True
	}
	queueInfos := adapter.Queues.createInfos()
	handle, err := drv.CreateDevice(adapter.GPU, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(RequiredDeviceExtensions)),
		PpEnabledExtensionNames: safeStrings(RequiredDeviceExtensions),
		EnabledLayerCount:       uint32(len(opts.Layers)),
		PpEnabledLayerNames:     safeStrings(opts.Layers),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	})
	if err != nil {
		return nil, wrapOp("create device", err)
	}
	d := &Device{
		drv:              drv,
		gpu:              adapter.GPU,
		handle:           handle,
		families:         adapter.Queues,
		memoryProperties: drv.MemoryProperties(adapter.GPU),
		wideLines:        wide,
	}
	d.graphicsQueue = drv.DeviceQueue(handle, adapter.Queues.Graphics)
	d.presentQueue = d.graphicsQueue
	if adapter.Queues.Separate() {
		d.presentQueue = drv.DeviceQueue(handle, adapter.Queues.Present)
	}
	return d, nil
}

func (d *Device) Handle() vk.Device                 { return d.handle }
func (d *Device) Driver() Driver                    { return d.drv }
func (d *Device) PhysicalDevice() vk.PhysicalDevice { return d.gpu }
func (d *Device) Families() QueueFamilySelection    { return d.families }
func (d *Device) GraphicsQueue() vk.Queue           { return d.graphicsQueue }
func (d *Device) PresentQueue() vk.Queue            { return d.presentQueue }
func (d *Device) WideLines() bool                   { return d.wideLines }

func (d *Device) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return d.memoryProperties
}

// SupportsPresent reports whether the chosen present family can present to surface.
func (d *Device) SupportsPresent(surface vk.Surface) (bool, error) {
	return d.drv.SurfaceSupport(d.gpu, d.families.Present, surface)
}

func (d *Device) WaitIdle() error {
	return wrapOp("device wait idle", d.drv.DeviceWaitIdle(d.handle))
}

func (d *Device) Destroy() {
	if d.handle != nil {
		d.drv.DestroyDevice(d.handle)
		d.handle = nil
	}
}
