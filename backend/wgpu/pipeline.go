// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// pipelineKey selects a render pipeline: a pass of a program drawn into a
// target format.
type pipelineKey struct {
	program string
	index   int
	format  gputypes.TextureFormat
}

// pipelineCache owns the shared bind group layout and builds shader
// modules and pipelines on first use.
//
// pipelineCache is not safe for concurrent use; the device lock guards it.
type pipelineCache struct {
	device     hal.Device
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	modules    map[string]hal.ShaderModule
	pipelines  map[pipelineKey]hal.RenderPipeline
}

func newPipelineCache(device hal.Device) (*pipelineCache, error) {
	texture := &gputypes.TextureBindingLayout{
		// R32F and RGBA32F are not filterable; shaders filter by hand.
		SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
		ViewDimension: gputypes.TextureViewDimension2D,
	}
	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "postfx_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageFragment, Texture: texture},
			{Binding: 2, Visibility: gputypes.ShaderStageFragment, Texture: texture},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "postfx_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(layout)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	return &pipelineCache{
		device:     device,
		layout:     layout,
		pipeLayout: pipeLayout,
		modules:    make(map[string]hal.ShaderModule),
		pipelines:  make(map[pipelineKey]hal.RenderPipeline),
	}, nil
}

func (c *pipelineCache) module(program string) (hal.ShaderModule, error) {
	if m, ok := c.modules[program]; ok {
		return m, nil
	}
	src, ok := ShaderSource(program)
	if !ok {
		return nil, fmt.Errorf("no shader for program %q", program)
	}
	m, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "postfx_" + program,
		Source: hal.ShaderSource{WGSL: src},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", program, err)
	}
	c.modules[program] = m
	return m, nil
}

// get returns the pipeline for key, creating it when missing.
func (c *pipelineCache) get(key pipelineKey, fragment string) (hal.RenderPipeline, error) {
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}
	m, err := c.module(key.program)
	if err != nil {
		return nil, err
	}
	p, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("postfx_%s_%d", key.program, key.index),
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     m,
			EntryPoint: "vs_main",
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &hal.FragmentState{
			Module:     m,
			EntryPoint: fragment,
			Targets: []gputypes.ColorTargetState{{
				Format:    key.format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", key.program, err)
	}
	c.pipelines[key] = p
	return p, nil
}

// Len returns the number of pipelines built so far.
func (c *pipelineCache) Len() int { return len(c.pipelines) }

func (c *pipelineCache) destroy() {
	for k, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
	for k, m := range c.modules {
		c.device.DestroyShaderModule(m)
		delete(c.modules, k)
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.layout != nil {
		c.device.DestroyBindGroupLayout(c.layout)
		c.layout = nil
	}
}
