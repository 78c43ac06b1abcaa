//go:build !windows

package platform

// NewPaster creates the paste simulator for this platform
func NewPaster(input Input) Paster {
	return NewRobotPaster(input)
}
