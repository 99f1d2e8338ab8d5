package input

import "testing"

func TestTrackerClick(t *testing.T) {
	tests := []struct {
		name  string
		moves [][2]float64
		upX   float64
		upY   float64
		click bool
	}{
		{"still", nil, 10, 10, true},
		{"jitter", [][2]float64{{11, 10}, {10, 11}}, 10, 10, true},
		{"drag", [][2]float64{{30, 10}, {60, 10}}, 60, 10, false},
		{"drag and return", [][2]float64{{40, 10}}, 10, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(4)
			tr.Down(10, 10, ButtonPrimary)
			for _, m := range tt.moves {
				if _, _, ok := tr.Move(m[0], m[1]); !ok {
					t.Fatal("move while pressed reported no drag")
				}
			}
			if got := tr.Up(tt.upX, tt.upY); got != tt.click {
				t.Errorf("click = %v, want %v", got, tt.click)
			}
			if tr.Pressed() {
				t.Error("still pressed after Up")
			}
		})
	}
}

func TestTrackerMoveDelta(t *testing.T) {
	tr := NewTracker(0)
	if _, _, ok := tr.Move(5, 5); ok {
		t.Error("move without press should not drag")
	}
	if tr.Up(5, 5) {
		t.Error("release without press should not click")
	}

	tr.Down(0, 0, ButtonSecondary)
	dx, dy, _ := tr.Move(3, -2)
	if dx != 3 || dy != -2 {
		t.Errorf("delta = %v,%v", dx, dy)
	}
	dx, dy, _ = tr.Move(4, -2)
	if dx != 1 || dy != 0 {
		t.Errorf("second delta = %v,%v", dx, dy)
	}
	if tr.Button() != ButtonSecondary {
		t.Errorf("button = %v", tr.Button())
	}
}

func TestInputDrain(t *testing.T) {
	in := New()
	in.Push(Event{Type: EventPointerDown, X: 1, Y: 2})
	in.Push(Event{Type: EventPointerUp, X: 1, Y: 2})

	got := in.Drain()
	if len(got) != 2 || got[0].Type != EventPointerDown {
		t.Fatalf("Drain = %+v", got)
	}
	if in.Len() != 0 {
		t.Errorf("Len after drain = %d", in.Len())
	}
	in.Push(Event{Type: EventWheel})
	if got[1].Type != EventPointerUp {
		t.Error("drained slice aliased the buffer")
	}
}
