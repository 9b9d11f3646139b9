// Package cpu implements the pure-Go CPU backend.
//
// Kernels support float32 and float64. Every operation allocates a fresh
// result; inputs are never written.
package cpu

import (
	"fmt"

	"github.com/born-ml/remat/internal/parallel"
	"github.com/born-ml/remat/internal/random"
	"github.com/born-ml/remat/internal/tensor"
)

// DefaultSeed seeds the backend generator when no seed is given.
const DefaultSeed uint64 = 0x5eed

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device    tensor.Device
	generator *random.Generator
	parallel  parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithSeed seeds the backend's random generator.
func WithSeed(seed uint64) Option {
	return func(cpu *CPUBackend) {
		cpu.generator.Seed(seed)
	}
}

// WithParallel overrides the kernel parallelism settings.
func WithParallel(cfg parallel.Config) Option {
	return func(cpu *CPUBackend) {
		cpu.parallel = cfg
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device:    tensor.CPU,
		generator: random.New(DefaultSeed),
		parallel:  parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Generator returns the CPU random generator.
func (cpu *CPUBackend) Generator() *random.Generator {
	return cpu.generator
}

func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

func checkFloat(op string, dtype tensor.DataType) {
	if dtype != tensor.Float32 && dtype != tensor.Float64 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, dtype))
	}
}
