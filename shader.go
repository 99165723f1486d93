package prerotate

import (
	"io/fs"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ShaderSource returns the exact bytes of a compiled SPIR-V binary by
// logical name, or an error wrapping ErrShaderNotFound.
type ShaderSource interface {
	Shader(name string) ([]byte, error)
}

// FSShaderSource reads shader binaries from a file system, such as an
// embed.FS or os.DirFS.
type FSShaderSource struct {
	FS fs.FS
}

// DirShaderSource reads shader binaries from dir on disk.
func DirShaderSource(dir string) FSShaderSource {
	return FSShaderSource{FS: os.DirFS(dir)}
}

func (s FSShaderSource) Shader(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, configError("load shader", errors.Wrap(ErrShaderNotFound, name))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", name)
	}
	return data, nil
}

// loadShaderModule fetches name from src and wraps it in a shader module.
func loadShaderModule(drv ResourceDriver, device vk.Device, src ShaderSource, name string) (vk.ShaderModule, error) {
	code, err := src.Shader(name)
	if err != nil {
		return vk.NullShaderModule, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return vk.NullShaderModule, configError("load shader", errors.Errorf("%s: %d bytes is not SPIR-V", name, len(code)))
	}
	module, err := drv.CreateShaderModule(device, code)
	return module, wrapOp("create shader module "+name, err)
}

// sliceUint32 copies SPIR-V bytes into words, which is what Vulkan wants
// to receive.
func sliceUint32(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	words := make([]uint32, (len(data)+3)/4)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*4), data)
	return words
}
