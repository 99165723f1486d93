package prerotate

import (
	"context"
	"log/slog"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

const engineName = "prerotate"

// Instance owns the vk.Instance and, when validation is on, the debug report
// callback registered on it.
type Instance struct {
	handle        vk.Instance
	debugCallback vk.DebugReportCallback

	Extensions []string
	Layers     []string
}

// NewInstance creates the Vulkan instance for cfg. required lists the
// instance extensions the surface provider needs, e.g. the result of
// glfw.Window.GetRequiredInstanceExtensions. Missing extensions or layers are
// logged and skipped; the surface creation that depends on them fails later
// with a clearer error.
func NewInstance(cfg Config, required []string) (inst *Instance, err error) {
	defer checkErr(&err)
	log := Logger()

	wanted := append([]string{}, required...)
	if cfg.Validation {
		wanted = append(wanted, vk.ExtDebugReportExtensionName)
	}
	actual, err := InstanceExtensions()
	orPanic(err)
	extensions, absent := checkExisting(actual, wanted)
	if absent > 0 {
		log.Warn("missing instance extensions", "count", absent, "wanted", wanted)
	}

	var layers []string
	if cfg.Validation {
		available, err := ValidationLayers()
		orPanic(err)
		if layers, absent = checkExisting(available, []string{validationLayer}); absent > 0 {
			log.Warn("validation layer unavailable", "layer", validationLayer)
		}
	}
	log.Info("creating instance", "extensions", len(extensions), "layers", len(layers))

	var handle vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         vk.MakeVersion(1, 0, 0),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PApplicationName:   safeString(cfg.AppName) + "\x00",
			PEngineName:        engineName + "\x00",
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}, nil, &handle)
	orPanic(wrapOp("create instance", NewError(ret)))
	vk.InitInstance(handle)

	inst = &Instance{handle: handle, Extensions: extensions, Layers: layers}
	if cfg.Validation && containsName(extensions, vk.ExtDebugReportExtensionName) {
		ret := vk.CreateDebugReportCallback(handle, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}, nil, &inst.debugCallback)
		if err := NewError(ret); err != nil {
			vk.DestroyInstance(handle, nil)
			return nil, wrapOp("create debug report callback", err)
		}
		log.Debug("debug report callback enabled")
	}
	return inst, nil
}

func (i *Instance) Handle() vk.Instance { return i.handle }

// Destroy releases the callback and the instance. Any Renderer built on the
// instance must be destroyed first.
func (i *Instance) Destroy() {
	if i.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.handle, i.debugCallback, nil)
		i.debugCallback = vk.NullDebugReportCallback
	}
	if i.handle != nil {
		vk.DestroyInstance(i.handle, nil)
		i.handle = nil
	}
}

// checkExisting keeps the names of want found in actual, reporting how many were not.
func checkExisting(actual, want []string) (existing []string, absent int) {
	gone := missing(want, actual)
	for _, w := range want {
		if !containsName(gone, w) {
			existing = append(existing, safeString(w))
		}
	}
	return existing, len(gone)
}

func containsName(list []string, name string) bool {
	for _, s := range list {
		if safeString(s) == safeString(name) {
			return true
		}
	}
	return false
}

func debugReportLevel(flags vk.DebugReportFlags) slog.Level {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return slog.LevelError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		return slog.LevelWarn
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	Logger().Log(context.Background(), debugReportLevel(flags), pMessage,
		"layer", pLayerPrefix, "code", messageCode, "object_type", objectType)
	return vk.Bool32(vk.False)
}
