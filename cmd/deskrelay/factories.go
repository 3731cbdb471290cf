package main

import (
	"deskrelay/internal/capture"
	"deskrelay/internal/input"
	"deskrelay/internal/types"
)

// The screenshot and robotgo backends work on Linux, macOS and Windows, so
// one set of factories covers every target.

func newSource(display int) (types.FrameSource, error) {
	return capture.NewScreen(display)
}

func newInjector() (types.InputInjector, error) {
	return input.NewRobot()
}
