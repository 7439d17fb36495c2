// Probes the WebGPU adapter and runs a small compute dispatch to verify
// the device actually executes shaders, not just enumerates.
package main

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"

	"drapesim/internal/compute"
)

const smokeShader = `
@group(0) @binding(0)
var<storage, read_write> data: array<f32>;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x < arrayLength(&data)) {
        data[gid.x] = data[gid.x] * 2.0;
    }
}
`

func main() {
	ctx, err := compute.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "no usable GPU: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Release()

	info := ctx.Info()
	fmt.Printf("GPU:     %s\n", info.Name)
	fmt.Printf("Vendor:  %s\n", info.Vendor)
	fmt.Printf("Backend: %s\n", info.Backend)
	fmt.Printf("Type:    %s\n", info.DeviceType)
	fmt.Printf("Driver:  %s\n", info.Driver)

	pipeline, err := ctx.CreatePipeline("smoke", smokeShader, "main")
	if err != nil {
		fmt.Fprintf(os.Stderr, "shader compile failed: %v\n", err)
		os.Exit(1)
	}

	input := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	buf, err := ctx.CreateBufferWithData("smoke_data", compute.ToBytes(input),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "buffer alloc failed: %v\n", err)
		os.Exit(1)
	}
	defer buf.Release()

	err = ctx.Dispatch(compute.DispatchParams{
		Pipeline:    pipeline,
		Bindings:    []*compute.Buffer{buf},
		WorkgroupsX: compute.Workgroups(uint32(len(input)), 256),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
		os.Exit(1)
	}

	result, err := ctx.ReadBufferFloat32(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "readback failed: %v\n", err)
		os.Exit(1)
	}

	for i, v := range result {
		if v != input[i]*2 {
			fmt.Fprintf(os.Stderr, "smoke test FAILED: index %d got %g want %g\n", i, v, input[i]*2)
			os.Exit(1)
		}
	}
	fmt.Printf("\nsmoke dispatch OK: %v -> %v\n", input, result)
}
