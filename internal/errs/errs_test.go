package errs

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
		kind Kind
	}{
		{"usage", Usagef("cd", "<path>"), "Usage: cd <path>", KindUsage},
		{"usage no op", Usagef("", "unterminated quote"), "Usage: unterminated quote", KindUsage},
		{"not found", NotFound("kill", "nginx"), "kill: not found: nginx", KindNotFound},
		{"env", Env("makedir", os.ErrPermission), "makedir: permission denied", KindEnvironment},
		{"network", Network("download", errors.New("dial tcp: timeout")), "download: dial tcp: timeout", KindNetwork},
		{"plugin", Plugin("lua:calc", errors.New("boom")), "plugin lua:calc: boom", KindPlugin},
		{"bridge", BridgeFault("tab mode", errors.New("exec: not found")), "tab mode: exec: not found", KindBridge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", Env("remove", os.ErrNotExist))
	assert.Equal(t, KindEnvironment, KindOf(err))
	assert.True(t, Is(err, KindEnvironment))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindUsage))
}
