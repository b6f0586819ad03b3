package core

import "sync"

// Inputs is a snapshot of the panel's input controls.
type Inputs struct {
	Vibrate    bool      `json:"vibrate"`
	VibPattern string    `json:"vibPattern"`
	DualInner  string    `json:"dualInner"`
	DualOuter  string    `json:"dualOuter"`
	CrossA     string    `json:"crossA"`
	CrossB     string    `json:"crossB"`
	Rainbow    [5]string `json:"rainbow"`
	Manual     string    `json:"manual"`
}

// DefaultInputs returns the values the panel starts with.
func DefaultInputs() Inputs {
	return Inputs{
		VibPattern: "1",
		DualInner:  "#ff0000",
		DualOuter:  "#0000ff",
		CrossA:     "#ff0000",
		CrossB:     "#0000ff",
		Rainbow:    [5]string{"#ffcc00", "#ff0000", "#00ff00", "#0000ff", "#ff00ff"},
	}
}

// PanelState holds the panel inputs shared by every connected client.
type PanelState struct {
	mu     sync.RWMutex
	inputs Inputs
}

// NewPanelState creates a PanelState with default inputs.
func NewPanelState() *PanelState {
	return &PanelState{inputs: DefaultInputs()}
}

// Clone returns a snapshot of the current inputs.
func (s *PanelState) Clone() Inputs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputs
}

// Update applies fn to the inputs under the write lock and returns the result.
func (s *PanelState) Update(fn func(*Inputs)) Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.inputs)
	return s.inputs
}

// SetVibration updates the vibration toggle and pattern.
func (s *PanelState) SetVibration(on bool, pattern string) {
	s.Update(func(in *Inputs) {
		in.Vibrate = on
		if pattern != "" {
			in.VibPattern = pattern
		}
	})
}

// SetManual updates the manual command text.
func (s *PanelState) SetManual(text string) {
	s.Update(func(in *Inputs) { in.Manual = text })
}
