package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogHandle records invocations in the log and echoes them back.
type LogHandle struct {
	name string
}

func (h *LogHandle) Invoke(_ context.Context, method string, args any) (any, error) {
	logrus.WithFields(logrus.Fields{
		"component": h.name,
		"method":    method,
		"args":      args,
	}).Info("component invoked")
	return map[string]any{"method": method, "args": args}, nil
}

// ExecHandle runs a command per invocation: the configured argv followed by the
// method name and the JSON-encoded arguments. Stdout, trimmed, is the result.
type ExecHandle struct {
	name    string
	command []string
	timeout time.Duration
}

func (h *ExecHandle) Invoke(ctx context.Context, method string, args any) (any, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding args for %s: %w", h.name, err)
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	argv := append(append([]string{}, h.command[1:]...), method, string(payload))
	cmd := exec.CommandContext(ctx, h.command[0], argv...) // #nosec G204 -- command comes from the operator's configuration
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", h.name, method, err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", h.name, method, err)
	}
	return strings.TrimSpace(string(out)), nil
}
