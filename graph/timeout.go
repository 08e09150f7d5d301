package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runNode executes a node under the engine's per-node timeout.
//
// A timeout of 0 means unlimited. When the node's deadline expires the
// result is discarded and a NODE_TIMEOUT error is returned, even if the node
// itself produced a delta after ignoring ctx.
func runNode(ctx context.Context, id NodeID, node Node, state State, timeout time.Duration) NodeResult {
	if timeout <= 0 {
		return node.Run(ctx, state)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := node.Run(timeoutCtx, state)

	// Parent cancellation is reported as-is; only our own deadline is a timeout.
	if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return NodeResult{Err: &NodeError{
			Message: fmt.Sprintf("exceeded timeout of %v", timeout),
			Code:    CodeNodeTimeout,
			NodeID:  id.String(),
			Cause:   context.DeadlineExceeded,
		}}
	}
	return result
}
