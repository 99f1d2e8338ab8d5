package math

import (
	"math"
	"testing"
)

func TestVec2Length(t *testing.T) {
	if got := (Vec2{3, 4}).Length(); got != 5 {
		t.Errorf("Vec2.Length() = %v, want 5", got)
	}
}

func TestVec3Cross(t *testing.T) {
	got := Vec3{1, 0, 0}.Cross(Vec3{0, 1, 0})
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	if l := (Vec3{2, 3, 6}).Normalize().Length(); math.Abs(l-1) > 1e-12 {
		t.Errorf("Vec3.Normalize().Length() = %v, want 1", l)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("zero Normalize() = %v, want zero", got)
	}
}

func TestVec3IsFinite(t *testing.T) {
	if !(Vec3{1, 2, 3}).IsFinite() {
		t.Error("finite vector reported non-finite")
	}
	if (Vec3{math.NaN(), 0, 0}).IsFinite() {
		t.Error("NaN vector reported finite")
	}
	if (Vec3{0, math.Inf(1), 0}).IsFinite() {
		t.Error("Inf vector reported finite")
	}
}

func TestSegmentDistance(t *testing.T) {
	tests := []struct {
		name string
		p    Vec2
		want float64
	}{
		{"on segment", Vec2{5, 0}, 0},
		{"above middle", Vec2{5, 3}, 3},
		{"past end", Vec2{13, 4}, 5},
		{"before start", Vec2{-3, -4}, 5},
	}

	a, b := Vec2{0, 0}, Vec2{10, 0}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentDistance(tt.p, a, b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("SegmentDistance(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}

	if got := SegmentDistance(Vec2{3, 4}, Vec2{}, Vec2{}); got != 5 {
		t.Errorf("degenerate segment distance = %v, want 5", got)
	}
}
