package browser

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerTrimsOutput(t *testing.T) {
	if _, err := exec.LookPath("printf"); err != nil {
		t.Skip("printf not available")
	}
	r := &ExecRunner{Binary: "printf"}
	out, err := r.Run(context.Background(), `  ok\n\n`)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := &ExecRunner{Binary: "rostersync-no-such-binary"}
	_, err := r.Run(context.Background(), "--version")
	assert.ErrorIs(t, err, ErrBinaryNotFound)
	assert.False(t, r.Available())
}
