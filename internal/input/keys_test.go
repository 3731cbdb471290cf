package input

import (
	"testing"

	"deskrelay/internal/types"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Enter", "enter"},
		{"Shift", "shift"},
		{"Control", "ctrl"},
		{"Alt", "alt"},
		{"Meta", "cmd"},
		{"Escape", "esc"},
		{" ", "space"},
		{"Tab", "tab"},
		{"Backspace", "backspace"},
		{"ArrowUp", "up"},
		{"ArrowDown", "down"},
		{"ArrowLeft", "left"},
		{"ArrowRight", "right"},
		{"PageUp", "pageup"},
		{"a", "a"},
		{"Z", "z"},
		{"7", "7"},
		{"F1", "f1"},
		{"F12", "f12"},
		{"fn", ""},
		{"fx1", ""},
		{"!", ""},
		{"Dead", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := normalizeKey(c.in); got != c.want {
			t.Errorf("normalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestButtonName(t *testing.T) {
	cases := []struct {
		in   types.MouseButton
		want string
	}{
		{types.MouseButtonLeft, "left"},
		{types.MouseButtonRight, "right"},
		{types.MouseButtonMiddle, "center"},
		{types.MouseButton(99), "left"},
	}
	for _, c := range cases {
		if got := buttonName(c.in); got != c.want {
			t.Errorf("buttonName(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
