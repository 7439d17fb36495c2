// Package compute provides GPU compute shader functionality via WebGPU.
// It owns shader compilation, pipeline caching, buffer lifecycle and
// dispatch sequencing; it knows nothing about cloth physics.
package compute

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Context manages a WebGPU device and its compute resources.
// It is constructed once by the caller and passed by reference to
// anything that needs the GPU; there is no process-wide instance.
// A Context is owned by exactly one engine and must not be shared.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Cache of compiled compute pipelines, keyed by label.
	pipelines map[string]*Pipeline
	mu        sync.RWMutex

	// Allocation bookkeeping.
	totalBytes    uint64
	activeBuffers int

	released bool
}

// Pipeline represents a compiled compute shader ready to dispatch.
type Pipeline struct {
	shader   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

// Buffer wraps a GPU buffer for compute operations.
type Buffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
	ctx    *Context
}

// AdapterInfo contains GPU information.
type AdapterInfo struct {
	Name       string
	Vendor     string
	Backend    string
	DeviceType string
	Driver     string
}

// Limits the solver requires from the device. Checked at construction;
// falling short is fatal, not degraded.
const (
	requiredWorkgroupSize    = 256
	requiredStorageBindBytes = 1 << 27 // 128 MiB
)

// NewContext requests an adapter and device and verifies the limits the
// solver depends on. Errors here are fatal: the caller cannot retry with
// the same instance, it must construct a fresh Context.
func NewContext() (*Context, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("failed to get GPU adapter: %w", err)
	}

	limits := adapter.GetLimits()
	if limits.Limits.MaxComputeInvocationsPerWorkgroup < requiredWorkgroupSize {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("unsupported device: max workgroup invocations %d < %d",
			limits.Limits.MaxComputeInvocationsPerWorkgroup, requiredWorkgroupSize)
	}
	if limits.Limits.MaxStorageBufferBindingSize < requiredStorageBindBytes {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("unsupported device: max storage binding %d < %d",
			limits.Limits.MaxStorageBufferBindingSize, requiredStorageBindBytes)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("failed to get GPU device: %w", err)
	}

	queue := device.GetQueue()

	return &Context{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		pipelines: make(map[string]*Pipeline),
	}, nil
}

// Info returns details about the adapter backing this context.
func (c *Context) Info() AdapterInfo {
	info := c.adapter.GetInfo()
	return AdapterInfo{
		Name:       info.Name,
		Vendor:     info.VendorName,
		Backend:    info.BackendType.String(),
		DeviceType: info.AdapterType.String(),
		Driver:     info.DriverDescription,
	}
}

// CreatePipeline compiles a compute shader and caches it by label.
// Compilation failure is fatal and surfaced immediately.
func (c *Context) CreatePipeline(label, wgslCode, entryPoint string) (*Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pipelines[label]; ok {
		return p, nil
	}

	shaderModule, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: wgslCode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %q: %w", label, err)
	}

	pipeline, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shaderModule,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		shaderModule.Release()
		return nil, fmt.Errorf("failed to create compute pipeline %q: %w", label, err)
	}

	p := &Pipeline{
		shader:   shaderModule,
		pipeline: pipeline,
		layout:   pipeline.GetBindGroupLayout(0),
	}
	c.pipelines[label] = p
	return p, nil
}

// CreateBuffer creates a GPU buffer for compute operations.
func (c *Context) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*Buffer, error) {
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	c.trackAlloc(size)
	return &Buffer{buffer: buf, size: size, usage: usage, ctx: c}, nil
}

// CreateBufferWithData creates a GPU buffer and uploads initial data.
func (c *Context) CreateBufferWithData(label string, data []byte, usage wgpu.BufferUsage) (*Buffer, error) {
	buf, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	c.trackAlloc(uint64(len(data)))
	return &Buffer{buffer: buf, size: uint64(len(data)), usage: usage, ctx: c}, nil
}

func (c *Context) trackAlloc(size uint64) {
	c.mu.Lock()
	c.totalBytes += size
	c.activeBuffers++
	c.mu.Unlock()
}

func (c *Context) trackFree(size uint64) {
	c.mu.Lock()
	c.totalBytes -= size
	c.activeBuffers--
	c.mu.Unlock()
}

// TotalBytes returns the bytes currently allocated through this context.
func (c *Context) TotalBytes() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalBytes
}

// ActiveBuffers returns the number of live buffers.
func (c *Context) ActiveBuffers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeBuffers
}

// WriteBuffer uploads data to a GPU buffer.
func (c *Context) WriteBuffer(buf *Buffer, offset uint64, data []byte) {
	c.queue.WriteBuffer(buf.buffer, offset, data)
}

// DispatchParams describes one compute dispatch. Bindings are bound in
// slice order; each buffer's storage class comes from the shader's own
// declaration through the pipeline-reflected layout.
type DispatchParams struct {
	Pipeline    *Pipeline
	Bindings    []*Buffer
	WorkgroupsX uint32
	WorkgroupsY uint32 // default 1
	WorkgroupsZ uint32 // default 1
}

// Dispatch executes a single compute shader and submits it.
// Submission ordering on the queue gives later dispatches visibility of
// earlier writes; the scheduler relies on that barrier.
func (c *Context) Dispatch(params DispatchParams) error {
	return c.DispatchSequence(params)
}

// DispatchSequence encodes several dispatches into one command buffer, in
// order, and submits them. WebGPU guarantees each dispatch observes the
// writes of the previous one, which is exactly the inter-pass contract
// the solver pipeline needs.
func (c *Context) DispatchSequence(seq ...DispatchParams) error {
	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}

	for _, params := range seq {
		if params.WorkgroupsY == 0 {
			params.WorkgroupsY = 1
		}
		if params.WorkgroupsZ == 0 {
			params.WorkgroupsZ = 1
		}

		entries := make([]wgpu.BindGroupEntry, len(params.Bindings))
		for i, b := range params.Bindings {
			entries[i] = wgpu.BindGroupEntry{
				Binding: uint32(i),
				Buffer:  b.buffer,
				Size:    b.size,
			}
		}

		bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   "compute_bind_group",
			Layout:  params.Pipeline.layout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("failed to create bind group: %w", err)
		}

		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(params.Pipeline.pipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.DispatchWorkgroups(params.WorkgroupsX, params.WorkgroupsY, params.WorkgroupsZ)
		pass.End()
		pass.Release()
		bindGroup.Release()
	}

	commands, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	defer commands.Release()

	c.queue.Submit(commands)
	return nil
}

// ReadBuffer copies GPU buffer data back to CPU.
// The buffer must have been created with BufferUsageCopySrc.
func (c *Context) ReadBuffer(buf *Buffer) ([]byte, error) {
	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "staging_read",
		Size:  buf.size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(buf.buffer, 0, staging, 0, buf.size)
	commands, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish encoder: %w", err)
	}
	c.queue.Submit(commands)
	commands.Release()

	done := make(chan error, 1)
	err = staging.MapAsync(wgpu.MapModeRead, 0, buf.size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("failed to map buffer: %v", status)
		} else {
			done <- nil
		}
	})
	if err != nil {
		return nil, err
	}

	c.device.Poll(true, nil)
	if err := <-done; err != nil {
		return nil, err
	}

	mapped := staging.GetMappedRange(0, uint(buf.size))
	result := make([]byte, len(mapped))
	copy(result, mapped)
	staging.Unmap()

	return result, nil
}

// ReadBufferFloat32 is a convenience method for reading float32 data.
func (c *Context) ReadBufferFloat32(buf *Buffer) ([]float32, error) {
	data, err := c.ReadBuffer(buf)
	if err != nil {
		return nil, err
	}
	return FromBytes[float32](data), nil
}

// Release frees all GPU resources. Safe to call more than once.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	for _, p := range c.pipelines {
		p.layout.Release()
		p.pipeline.Release()
		p.shader.Release()
	}
	c.pipelines = nil

	c.queue.Release()
	c.device.Release()
	c.adapter.Release()
	c.instance.Release()
}

// Release frees the buffer's GPU memory. Safe to call more than once.
func (b *Buffer) Release() {
	if b.buffer == nil {
		return
	}
	b.buffer.Release()
	b.buffer = nil
	if b.ctx != nil {
		b.ctx.trackFree(b.size)
	}
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Workgroups returns the 1D workgroup count covering n invocations at the
// given workgroup size.
func Workgroups(n, size uint32) uint32 {
	if size == 0 {
		size = requiredWorkgroupSize
	}
	return (n + size - 1) / size
}

// ToBytes converts a slice to bytes for upload.
func ToBytes[T any](data []T) []byte {
	return wgpu.ToBytes(data)
}

// FromBytes reinterprets raw buffer bytes as a typed slice.
func FromBytes[T any](data []byte) []T {
	return wgpu.FromBytes[T](data)
}
