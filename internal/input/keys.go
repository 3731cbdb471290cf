package input

import (
	"strings"

	"deskrelay/internal/types"
)

// buttonName maps a normalized mouse button to the backend's button name.
func buttonName(b types.MouseButton) string {
	switch b {
	case types.MouseButtonRight:
		return "right"
	case types.MouseButtonMiddle:
		return "center"
	default:
		return "left"
	}
}

// normalizeKey maps a browser KeyboardEvent key value to a backend key name.
// Returns "" for keys that have no injectable mapping.
func normalizeKey(k string) string {
	k = strings.ToLower(k)
	switch k {
	case "enter":
		return "enter"
	case "shift":
		return "shift"
	case "control", "ctrl":
		return "ctrl"
	case "alt", "option":
		return "alt"
	case "meta", "command", "cmd":
		return "cmd"
	case "escape", "esc":
		return "esc"
	case " ", "space", "spacebar":
		return "space"
	case "tab":
		return "tab"
	case "backspace":
		return "backspace"
	case "delete":
		return "delete"
	case "arrowup":
		return "up"
	case "arrowdown":
		return "down"
	case "arrowleft":
		return "left"
	case "arrowright":
		return "right"
	case "home":
		return "home"
	case "end":
		return "end"
	case "pageup":
		return "pageup"
	case "pagedown":
		return "pagedown"
	case "capslock":
		return "capslock"
	case "insert":
		return "insert"
	}
	if len(k) == 1 {
		c := k[0]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			return k
		}
	}
	if len(k) >= 2 && len(k) <= 3 && k[0] == 'f' {
		for i := 1; i < len(k); i++ {
			if k[i] < '0' || k[i] > '9' {
				return ""
			}
		}
		return k // f1..f12
	}
	return ""
}
