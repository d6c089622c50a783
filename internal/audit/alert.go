package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// LogAlerter logs refused entries at error level and dumps them in full to
// out so they can be replayed by hand.
type LogAlerter struct {
	logger *zap.Logger
	out    io.Writer
}

func NewLogAlerter(logger *zap.Logger, out io.Writer) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = os.Stderr
	}
	return &LogAlerter{logger: logger, out: out}
}

func (a *LogAlerter) StoreFailed(_ context.Context, entry *Entry, err error) {
	a.logger.Error("AUDIT STORE WRITE FAILED",
		zap.String("action", entry.Action),
		zap.String("status", string(entry.Status)),
		zap.Error(err))

	entryJSON, mErr := json.MarshalIndent(entry, "", "  ")
	if mErr != nil {
		a.logger.Error("Failed to marshal emergency entry", zap.Error(mErr))
		return
	}
	fmt.Fprintf(a.out, "\n=== EMERGENCY AUDIT ENTRY ===\n%s\n=== END ENTRY ===\n", entryJSON)
}

type MultiAlerter []Alerter

func (m MultiAlerter) StoreFailed(ctx context.Context, entry *Entry, err error) {
	for _, a := range m {
		a.StoreFailed(ctx, entry, err)
	}
}
