package gpu

import (
	"context"
	"testing"
)

func TestCPUDeviceBufferWriteRead(t *testing.T) {
	dev := NewCPUDevice()
	buf, err := dev.CreateBuffer(4, UsageStorage)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	ctx := context.Background()
	if err := buf.Write(ctx, 0, []float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := make([]float32, 4)
	if _, err := buf.Read(ctx, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out[0] != 1 || out[3] != 4 {
		t.Fatalf("got %v", out)
	}
}

func TestDispatchUnknownKernel(t *testing.T) {
	dev := NewCPUDevice()
	enc, _ := dev.CreateCommandEncoder()
	_, err := enc.BeginComputePass("does-not-exist", nil)
	if err == nil {
		t.Fatalf("expected error for unknown kernel")
	}
}

func TestRegisterAndDispatchKernel(t *testing.T) {
	RegisterKernel("test.double", func(ctx context.Context, bindings []Buffer, workgroups int) error {
		buf := make([]float32, bindings[0].Size())
		bindings[0].Read(ctx, buf)
		for i, v := range buf {
			buf[i] = v * 2
		}
		return bindings[0].Write(ctx, 0, buf)
	})

	dev := NewCPUDevice()
	buf, _ := dev.CreateBuffer(3, UsageStorage)
	buf.Write(context.Background(), 0, []float32{1, 2, 3})

	enc, _ := dev.CreateCommandEncoder()
	pass, err := enc.BeginComputePass("test.double", []Buffer{buf})
	if err != nil {
		t.Fatalf("BeginComputePass: %v", err)
	}
	if err := pass.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	out := make([]float32, 3)
	buf.Read(context.Background(), out)
	if out[0] != 2 || out[2] != 6 {
		t.Fatalf("got %v", out)
	}
}
