package pose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"
)

func TestSkeleton_IndicesInRange(t *testing.T) {
	seen := make(map[[2]int]bool)
	for _, pair := range Skeleton {
		for _, idx := range pair {
			if idx < 0 || idx >= NumKeypoints {
				t.Errorf("skeleton pair %v has out of range index %d", pair, idx)
			}
		}
		if pair[0] == pair[1] {
			t.Errorf("skeleton pair %v connects a joint to itself", pair)
		}
		if seen[pair] {
			t.Errorf("skeleton pair %v listed twice", pair)
		}
		seen[pair] = true
	}

	if len(KeypointNames) != NumKeypoints {
		t.Errorf("expected %d keypoint names, got %d", NumKeypoints, len(KeypointNames))
	}
}

func TestKeypoint_Confidence(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  float64
	}{
		{"missing score counts as certain", nil, 1.0},
		{"reported score", Score(0.42), 0.42},
		{"zero score", Score(0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := Keypoint{Name: "nose", Score: tt.score}
			if got := k.Confidence(); got != tt.want {
				t.Errorf("Confidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResult_Empty(t *testing.T) {
	if !(Result{}).Empty() {
		t.Error("zero Result should be empty")
	}
	if StandingPose().Empty() {
		t.Error("StandingPose should not be empty")
	}
}

func TestDecodeResponse(t *testing.T) {
	t.Run("keypoints", func(t *testing.T) {
		line := `{"keypoints":[{"name":"nose","x":12.5,"y":30,"score":0.8},{"x":1,"y":2,"score":null}]}` + "\n"

		got, err := decodeResponse([]byte(line))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}

		want := Result{Keypoints: []Keypoint{
			{Name: "nose", X: 12.5, Y: 30, Score: Score(0.8)},
			{Name: "left_eye", X: 1, Y: 2},
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("decodeResponse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no subject", func(t *testing.T) {
		got, err := decodeResponse([]byte(`{"keypoints":[]}`))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if !got.Empty() {
			t.Errorf("expected empty result, got %d keypoints", len(got.Keypoints))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := decodeResponse([]byte(`{"error":"model not loaded"}`)); err == nil {
			t.Error("expected error for service error reply")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := decodeResponse([]byte(`not json`)); err == nil {
			t.Error("expected error for malformed reply")
		}
	})
}

func TestNewMoveNetEstimator(t *testing.T) {
	t.Run("missing script", func(t *testing.T) {
		_, err := NewMoveNetEstimator(Config{ScriptPath: filepath.Join(t.TempDir(), "nope.py")})
		if err == nil {
			t.Error("expected error for missing script")
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), serviceScript)
		if err := os.WriteFile(script, []byte("# stub\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		e, err := NewMoveNetEstimator(Config{ScriptPath: script, JPEGQuality: 500})
		if err != nil {
			t.Fatalf("NewMoveNetEstimator() error = %v", err)
		}
		defer e.Close()

		if e.config.JPEGQuality != DefaultConfig().JPEGQuality {
			t.Errorf("JPEGQuality = %d, want default", e.config.JPEGQuality)
		}
		if e.config.IdleTimeoutSec != DefaultConfig().IdleTimeoutSec {
			t.Errorf("IdleTimeoutSec = %d, want default", e.config.IdleTimeoutSec)
		}
	})

	t.Run("empty frame rejected before start", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), serviceScript)
		os.WriteFile(script, []byte("# stub\n"), 0o644)

		e, err := NewMoveNetEstimator(Config{ScriptPath: script})
		if err != nil {
			t.Fatalf("NewMoveNetEstimator() error = %v", err)
		}
		defer e.Close()

		frame := gocv.NewMat()
		defer frame.Close()

		if _, err := e.Estimate(context.Background(), &frame); err == nil {
			t.Error("expected error for empty frame")
		}
		if e.started {
			t.Error("service should not start for an empty frame")
		}
	})
}

func TestMockEstimator(t *testing.T) {
	m := NewMockEstimator()
	m.SetResult(StandingPose())

	frame := gocv.NewMat()
	defer frame.Close()

	got, err := m.Estimate(context.Background(), &frame)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if len(got.Keypoints) != NumKeypoints {
		t.Errorf("expected %d keypoints, got %d", NumKeypoints, len(got.Keypoints))
	}

	wantErr := errors.New("boom")
	m.SetError(wantErr)
	if _, err := m.Estimate(context.Background(), &frame); !errors.Is(err, wantErr) {
		t.Errorf("Estimate() error = %v, want %v", err, wantErr)
	}

	var hookCalls []int
	m.OnEstimate(func(call int) { hookCalls = append(hookCalls, call) })
	m.SetError(nil)
	m.SetDelay(time.Millisecond)
	m.Estimate(context.Background(), &frame)

	if diff := cmp.Diff([]int{3}, hookCalls); diff != "" {
		t.Errorf("hook calls mismatch (-want +got):\n%s", diff)
	}
	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}
	if m.MaxInFlight() != 1 {
		t.Errorf("MaxInFlight() = %d, want 1", m.MaxInFlight())
	}

	m.Close()
	if !m.Closed() {
		t.Error("Closed() should be true after Close")
	}
}
