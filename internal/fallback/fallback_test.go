package fallback

import (
	"context"
	"errors"
	"testing"
)

func TestExecutePrimarySuccess(t *testing.T) {
	calls := 0
	out, outcome, err := Execute(context.Background(), Options[string]{
		Stage:  "transcribe",
		Device: DeviceCUDA,
		Policy: PolicyHard,
		Run: func(ctx context.Context, device Device) (string, error) {
			calls++
			if device != DeviceCUDA {
				t.Errorf("device = %s, want cuda", device)
			}
			return "ok", nil
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "ok" || outcome != OutcomePrimary || calls != 1 {
		t.Errorf("out=%q outcome=%v calls=%d", out, outcome, calls)
	}
}

func TestExecuteOOMFallsBackOnce(t *testing.T) {
	var devices []Device
	released := []Device{}
	liveAllocations := 0
	maxLive := 0

	out, outcome, err := Execute(context.Background(), Options[string]{
		Stage:  "transcribe",
		Device: DeviceCUDA,
		Policy: PolicyHard,
		Run: func(ctx context.Context, device Device) (string, error) {
			devices = append(devices, device)
			liveAllocations++
			if liveAllocations > maxLive {
				maxLive = liveAllocations
			}
			if device == DeviceCUDA {
				return "", errors.New("CUDA error: Out Of Memory during forward pass")
			}
			return "cpu result", nil
		},
		Release: func(device Device) {
			released = append(released, device)
			liveAllocations--
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "cpu result" || outcome != OutcomeFallback {
		t.Errorf("out=%q outcome=%v", out, outcome)
	}
	if len(devices) != 2 || devices[0] != DeviceCUDA || devices[1] != DeviceCPU {
		t.Errorf("devices = %v, want [cuda cpu]", devices)
	}
	if len(released) != 1 || released[0] != DeviceCUDA {
		t.Errorf("released = %v, want [cuda]", released)
	}
	// The failed attempt is released before the fallback allocates.
	if maxLive != 1 {
		t.Errorf("max simultaneous live allocations = %d, want 1", maxLive)
	}
}

func TestExecuteOOMOnCPUIsNotRetried(t *testing.T) {
	calls := 0
	_, outcome, err := Execute(context.Background(), Options[int]{
		Stage:  "transcribe",
		Device: DeviceCPU,
		Policy: PolicyHard,
		Run: func(ctx context.Context, device Device) (int, error) {
			calls++
			return 0, errors.New("out of memory")
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || outcome != OutcomeFailed {
		t.Errorf("calls=%d outcome=%v", calls, outcome)
	}
}

func TestExecuteNonOOMHardFailurePropagates(t *testing.T) {
	boom := errors.New("codec exploded")
	calls := 0
	_, outcome, err := Execute(context.Background(), Options[int]{
		Stage:  "transcribe",
		Device: DeviceCUDA,
		Policy: PolicyHard,
		Run: func(ctx context.Context, device Device) (int, error) {
			calls++
			return 0, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if calls != 1 || outcome != OutcomeFailed {
		t.Errorf("calls=%d outcome=%v", calls, outcome)
	}
}

func TestExecuteNonOOMSoftFailureSkips(t *testing.T) {
	released := 0
	out, outcome, err := Execute(context.Background(), Options[string]{
		Stage:  "align",
		Device: DeviceCUDA,
		Policy: PolicySoft,
		Run: func(ctx context.Context, device Device) (string, error) {
			return "", errors.New("alignment model unavailable")
		},
		Release: func(device Device) { released++ },
	})
	if err != nil {
		t.Fatalf("soft failure must not surface an error, got %v", err)
	}
	if outcome != OutcomeSkipped || out != "" {
		t.Errorf("outcome=%v out=%q", outcome, out)
	}
	if released != 1 {
		t.Errorf("released=%d, want 1", released)
	}
}

func TestExecuteSoftFallbackAlsoFailsSkips(t *testing.T) {
	var devices []Device
	_, outcome, err := Execute(context.Background(), Options[string]{
		Stage:  "diarize",
		Device: DeviceCUDA,
		Policy: PolicySoft,
		Run: func(ctx context.Context, device Device) (string, error) {
			devices = append(devices, device)
			return "", errors.New("out of memory")
		},
		Release: func(device Device) {},
	})
	if err != nil {
		t.Fatalf("soft failure must not surface an error, got %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("outcome = %v, want skipped", outcome)
	}
	if len(devices) != 2 {
		t.Errorf("attempts = %v, want cuda then cpu", devices)
	}
}

func TestIsOOM(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("out of memory"), true},
		{errors.New("CUBLAS_STATUS_ALLOC_FAILED: Out Of Memory"), true},
		{errors.New("file not found"), false},
	}
	for _, tt := range tests {
		if got := IsOOM(tt.err); got != tt.expected {
			t.Errorf("IsOOM(%v) = %v, want %v", tt.err, got, tt.expected)
		}
	}
}
