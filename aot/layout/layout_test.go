package layout

import "testing"

func TestDescribeMatchesStructSize(t *testing.T) {
	l := Describe()

	if l.StackOffset != 0 {
		t.Errorf("StackOffset = %d, want 0 (stack is the first field)", l.StackOffset)
	}
	if l.StackSlotSize == 0 {
		t.Errorf("StackSlotSize must be nonzero")
	}
	if l.Size == 0 {
		t.Errorf("Size must be nonzero")
	}
	if l.StackSlotOffset(1) <= l.StackSlotOffset(0) {
		t.Errorf("StackSlotOffset should increase with n")
	}
}
