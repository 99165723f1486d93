package prerotate

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"gopkg.in/yaml.v3"
)

// MaxFramesInFlight bounds Config.FramesInFlight.
const MaxFramesInFlight = 4

// Config is the explicit construction context of a Renderer. Toggles that
// would otherwise be global application state live here.
type Config struct {
	AppName string `toml:"app_name" yaml:"app_name"`
	// Validation enables VK_LAYER_KHRONOS_validation and the debug report callback.
	Validation bool `toml:"validation" yaml:"validation"`
	// FramesInFlight is the depth of the per-frame slot ring.
	FramesInFlight int `toml:"frames_in_flight" yaml:"frames_in_flight"`
	// Variant is one of "color", "point" or "line".
	Variant    string    `toml:"variant" yaml:"variant"`
	Scale      []float32 `toml:"scale" yaml:"scale"`
	ClearColor []float32 `toml:"clear_color" yaml:"clear_color"`
	ShaderDir  string    `toml:"shader_dir" yaml:"shader_dir"`
	// MeshPath optionally replaces the variant's built-in mesh with a glTF asset.
	MeshPath            string        `toml:"mesh_path" yaml:"mesh_path"`
	PreferredFormat     vk.Format     `toml:"preferred_format" yaml:"preferred_format"`
	PreferredColorSpace vk.ColorSpace `toml:"preferred_color_space" yaml:"preferred_color_space"`
	// DebugReadback creates static buffers with TRANSFER_SRC so Transfer.ReadBack works.
	DebugReadback bool      `toml:"debug_readback" yaml:"debug_readback"`
	Log           LogConfig `toml:"log" yaml:"log"`
}

func DefaultConfig() Config {
	return Config{
		AppName:             "prerotate",
		FramesInFlight:      2,
		Variant:             VariantColor.String(),
		Scale:               []float32{1, 1, 1},
		ClearColor:          []float32{0, 0, 0, 1},
		ShaderDir:           "shaders",
		PreferredFormat:     vk.FormatB8g8r8a8Srgb,
		PreferredColorSpace: vk.ColorSpaceSrgbNonlinear,
		Log:                 LogConfig{Level: "info"},
	}
}

// Validate reports the first invalid field as a KindConfig error.
func (c Config) Validate() error {
	switch {
	case c.AppName == "":
		return configError("config", errors.Wrap(ErrInvalidConfig, "app_name is empty"))
	case c.FramesInFlight < 1 || c.FramesInFlight > MaxFramesInFlight:
		return configError("config", errors.Wrapf(ErrInvalidConfig, "frames_in_flight %d not in [1,%d]", c.FramesInFlight, MaxFramesInFlight))
	case len(c.Scale) != 3:
		return configError("config", errors.Wrapf(ErrInvalidConfig, "scale needs 3 components, got %d", len(c.Scale)))
	case len(c.ClearColor) != 4:
		return configError("config", errors.Wrapf(ErrInvalidConfig, "clear_color needs 4 components, got %d", len(c.ClearColor)))
	}
	if _, err := ParseVariant(c.Variant); err != nil {
		return err
	}
	return nil
}

func (c Config) scale() [3]float32 {
	return [3]float32{c.Scale[0], c.Scale[1], c.Scale[2]}
}

func (c Config) clearColor() [4]float32 {
	return [4]float32{c.ClearColor[0], c.ClearColor[1], c.ClearColor[2], c.ClearColor[3]}
}

type decoder interface {
	Decode(v any) error
}

var decoders = map[string]func(r io.Reader) decoder{
	".toml": func(r io.Reader) decoder {
		d := toml.NewDecoder(r)
		d.DisallowUnknownFields()
		return d
	},
	".yaml": newYAMLDecoder,
	".yml":  newYAMLDecoder,
}

func newYAMLDecoder(r io.Reader) decoder {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	return d
}

// LoadConfig reads a TOML or YAML file over DefaultConfig, picking the
// format by extension, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	newDecoder, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return cfg, configError("load config", errors.Wrapf(ErrInvalidConfig, "unsupported config format %q", filepath.Ext(path)))
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, configError("load config", err)
	}
	defer f.Close()

	if err := newDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil && err != io.EOF {
		return cfg, configError("load config", errors.Wrap(err, path))
	}
	return cfg, cfg.Validate()
}
