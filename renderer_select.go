package clusterfog

import (
	"fmt"
	"strings"
)

// RendererName identifies one of the renderer strategies.
type RendererName string

const (
	RendererForward              RendererName = "forward"
	RendererClusteredForwardPlus RendererName = "clustered-forward-plus"
	RendererClusteredDeferred    RendererName = "clustered-deferred"
)

// RendererNames lists every selectable renderer in menu order.
func RendererNames() []RendererName {
	return []RendererName{RendererForward, RendererClusteredForwardPlus, RendererClusteredDeferred}
}

// Clustered reports whether the renderer consults the cluster grid.
func (n RendererName) Clustered() bool {
	return n == RendererClusteredForwardPlus || n == RendererClusteredDeferred
}

// ParseRendererName accepts the canonical names plus a few short aliases
// ("fwd", "forward+", "deferred").
func ParseRendererName(s string) (RendererName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "fwd":
		return RendererForward, nil
	case "clustered-forward-plus", "forward+", "forwardplus", "forward-plus":
		return RendererClusteredForwardPlus, nil
	case "clustered-deferred", "deferred", "":
		return RendererClusteredDeferred, nil
	}
	return "", fmt.Errorf("unknown renderer %q", s)
}
