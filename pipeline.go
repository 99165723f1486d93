package prerotate

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Variant selects what the pipeline draws. All variants share the vertex
// layout, the uniform block and the render pass; they differ in topology,
// shader pair and line width.
type Variant uint8

const (
	VariantColor Variant = iota
	VariantPoint
	VariantLine
)

var variantNames = [...]string{
	VariantColor: "color",
	VariantPoint: "point",
	VariantLine:  "line",
}

func (v Variant) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// ParseVariant accepts the names printed by String, case-insensitively.
func ParseVariant(s string) (Variant, error) {
	for i, name := range variantNames {
		if strings.EqualFold(s, name) {
			return Variant(i), nil
		}
	}
	return 0, configError("parse variant", errors.Wrapf(ErrInvalidConfig, "unknown variant %q", s))
}

// PipelineSpec is the variant-specific part of the graphics pipeline.
type PipelineSpec struct {
	Topology       vk.PrimitiveTopology
	VertexShader   string
	FragmentShader string
	LineWidth      float32
}

func (v Variant) Spec() PipelineSpec {
	switch v {
	case VariantPoint:
		return PipelineSpec{vk.PrimitiveTopologyPointList, "002_shader.vert.spv", "002_shader.frag.spv", 1}
	case VariantLine:
		return PipelineSpec{vk.PrimitiveTopologyLineList, "001_shader.vert.spv", "001_shader.frag.spv", 20}
	}
	return PipelineSpec{vk.PrimitiveTopologyTriangleList, "001_shader.vert.spv", "001_shader.frag.spv", 1}
}

// vertexStride is a vec3 position followed by a vec3 color.
const vertexStride = 6 * 4

// Pipeline is the graphics pipeline with its layouts. The descriptor set
// layout and pipeline layout live as long as the Pipeline; the pipeline
// object itself is rebuilt when the render pass format changes.
type Pipeline struct {
	drv     Driver
	device  vk.Device
	shaders ShaderSource
	spec    PipelineSpec

	SetLayout vk.DescriptorSetLayout
	Layout    vk.PipelineLayout
	Handle    vk.Pipeline
}

// NewPipeline builds spec against renderPass. When the device lacks wide
// line support the line width is clamped to 1.
func NewPipeline(dev *Device, spec PipelineSpec, renderPass vk.RenderPass, shaders ShaderSource) (_ *Pipeline, err error) {
	if spec.LineWidth > 1 && !dev.WideLines() {
		Logger().Warn("wide lines unsupported, clamping line width", "requested", spec.LineWidth)
		spec.LineWidth = 1
	}
	p := &Pipeline{drv: dev.Driver(), device: dev.Handle(), shaders: shaders, spec: spec}
	defer func() {
		if err != nil {
			p.Destroy()
		}
	}()

	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}}
	p.SetLayout, err = p.drv.CreateDescriptorSetLayout(p.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	})
	if err != nil {
		return nil, wrapOp("create descriptor set layout", err)
	}
	p.Layout, err = p.drv.CreatePipelineLayout(p.device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.SetLayout},
	})
	if err != nil {
		return nil, wrapOp("create pipeline layout", err)
	}
	if err = p.Rebuild(renderPass); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) Spec() PipelineSpec { return p.spec }

// Rebuild replaces the pipeline object with one compatible with renderPass.
// Shader modules only live for the duration of the call.
func (p *Pipeline) Rebuild(renderPass vk.RenderPass) error {
	vert, err := loadShaderModule(p.drv, p.device, p.shaders, p.spec.VertexShader)
	if err != nil {
		return err
	}
	defer p.drv.DestroyShaderModule(p.device, vert)
	frag, err := loadShaderModule(p.drv, p.device, p.shaders, p.spec.FragmentShader)
	if err != nil {
		return err
	}
	defer p.drv.DestroyShaderModule(p.device, frag)

	b := newPipelineBuilder(p.spec, vert, frag)
	pipeline, err := p.drv.CreateGraphicsPipeline(p.device, b.createInfo(p.Layout, renderPass))
	if err != nil {
		return wrapOp("create graphics pipeline", err)
	}
	if p.Handle != vk.NullPipeline {
		p.drv.DestroyPipeline(p.device, p.Handle)
	}
	p.Handle = pipeline
	return nil
}

func (p *Pipeline) Destroy() {
	if p.Handle != vk.NullPipeline {
		p.drv.DestroyPipeline(p.device, p.Handle)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != vk.NullPipelineLayout {
		p.drv.DestroyPipelineLayout(p.device, p.Layout)
		p.Layout = vk.NullPipelineLayout
	}
	if p.SetLayout != vk.NullDescriptorSetLayout {
		p.drv.DestroyDescriptorSetLayout(p.device, p.SetLayout)
		p.SetLayout = vk.NullDescriptorSetLayout
	}
}

// pipelineBuilder holds the fixed-function state of one pipeline.
type pipelineBuilder struct {
	shaderStages  []vk.PipelineShaderStageCreateInfo
	vertexInput   vk.PipelineVertexInputStateCreateInfo
	inputAssembly vk.PipelineInputAssemblyStateCreateInfo
	viewportState vk.PipelineViewportStateCreateInfo
	dynamicState  vk.PipelineDynamicStateCreateInfo
	rasterizer    vk.PipelineRasterizationStateCreateInfo
	multisampling vk.PipelineMultisampleStateCreateInfo
	colorBlend    vk.PipelineColorBlendStateCreateInfo
}

func newPipelineBuilder(spec PipelineSpec, vert, frag vk.ShaderModule) *pipelineBuilder {
	pb := &pipelineBuilder{}

	pb.shaderStages = []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vert,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  "main\x00",
		},
	}

	//Position at location 0, color at location 1, interleaved
	pb.vertexInput = vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    vertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: 2,
		PVertexAttributeDescriptions: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		},
	}

	pb.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               spec.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	//Viewport and scissor are set per frame from the identity extent
	pb.viewportState = vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	pb.dynamicState = vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamic)),
		PDynamicStates:    dynamic,
	}

	pb.rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               spec.LineWidth,
	}

	pb.multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	pb.colorBlend = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{{
			BlendEnable: vk.False,
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
		}},
	}
	return pb
}

func (pb *pipelineBuilder) createInfo(layout vk.PipelineLayout, renderPass vk.RenderPass) *vk.GraphicsPipelineCreateInfo {
	return &vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(pb.shaderStages)),
		PStages:             pb.shaderStages,
		PVertexInputState:   &pb.vertexInput,
		PInputAssemblyState: &pb.inputAssembly,
		PViewportState:      &pb.viewportState,
		PRasterizationState: &pb.rasterizer,
		PMultisampleState:   &pb.multisampling,
		PColorBlendState:    &pb.colorBlend,
		PDynamicState:       &pb.dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
	}
}
