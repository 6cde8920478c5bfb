package render

import (
	"fmt"
	"strings"
)

// WaitCondition selects the signal that marks a navigation as complete.
type WaitCondition int

const (
	// WaitDOMReady completes once the document has been parsed.
	WaitDOMReady WaitCondition = iota
	// WaitNetworkIdle completes once the page has stopped issuing requests.
	WaitNetworkIdle
)

func (w WaitCondition) String() string {
	switch w {
	case WaitNetworkIdle:
		return "networkidle"
	default:
		return "dom"
	}
}

// ParseWaitCondition maps a config value onto a WaitCondition.
func ParseWaitCondition(raw string) (WaitCondition, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "dom", "domcontentloaded":
		return WaitDOMReady, nil
	case "networkidle", "networkidle0":
		return WaitNetworkIdle, nil
	default:
		return WaitDOMReady, fmt.Errorf("unknown wait condition %q", raw)
	}
}
