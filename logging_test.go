package clusterfog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriterLogger("fog", false, &out, &errOut)

	l.Debugf("hidden %d", 1)
	l.Infof("frame %d", 2)
	l.Warnf("slow")
	l.Errorf("broken: %v", "device")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[fog] INFO: frame 2")
	assert.Contains(t, errOut.String(), "[fog] WARN: slow")
	assert.Contains(t, errOut.String(), "[fog] ERROR: broken: device")

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 3)
	assert.Contains(t, out.String(), "[fog] DEBUG: shown 3")
}

func TestWriterLoggerWithoutPrefix(t *testing.T) {
	var out bytes.Buffer
	NewWriterLogger("", true, &out, &out).Infof("plain")
	assert.Contains(t, out.String(), "INFO: plain")
	assert.NotContains(t, out.String(), "[")
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	assert.NotNil(t, l)
	assert.False(t, l.DebugEnabled())
	l.SetDebug(true)
	assert.False(t, l.DebugEnabled())

	w := NewWriterLogger("x", false, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Same(t, w, OrNop(w))
}

func TestParseRendererName(t *testing.T) {
	tests := []struct {
		in   string
		want RendererName
	}{
		{"forward", RendererForward},
		{"FWD", RendererForward},
		{"forward+", RendererClusteredForwardPlus},
		{" clustered-deferred ", RendererClusteredDeferred},
		{"", RendererClusteredDeferred},
	}
	for _, tc := range tests {
		got, err := ParseRendererName(tc.in)
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	_, err := ParseRendererName("raytraced")
	assert.Error(t, err)
	assert.False(t, RendererForward.Clustered())
	assert.True(t, RendererClusteredDeferred.Clustered())
}
