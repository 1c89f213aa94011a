package builtin

import (
	"context"
	"time"

	"github.com/chataigne-ai/chataigne/internal/tool"
)

type timeRequest struct{}

// CurrentTime returns a clock tool. now is swappable for tests; nil
// means time.Now.
func CurrentTime(now func() time.Time) tool.Definition {
	if now == nil {
		now = time.Now
	}
	return tool.Typed("current_time", "Report the current local date and time.",
		&tool.Schema{Type: tool.TypeObject},
		func(_ context.Context, _ timeRequest) (string, error) {
			return now().Format(time.RFC1123), nil
		},
	)
}
