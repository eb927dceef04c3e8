package runner

import (
	"context"
	"fmt"

	store "github.com/hanpama/chainql/internal/store"
)

// deploymentChanged checks whether the deployment's data changed
// underneath the query in a way that could have affected a result as
// fresh as latest. pre is the state captured before execution, latest
// the highest block number any partition observed.
func (r *Runner) deploymentChanged(ctx context.Context, h store.Handle, pre store.DeploymentState, latest uint64) error {
	if r.opts.allowDeploymentChange {
		return nil
	}
	post, err := h.DeploymentState(ctx)
	if err != nil {
		return err
	}
	if post.ReorgCount < pre.ReorgCount {
		// The store broke its monotonicity contract. Not a query
		// error: nothing a caller did can cause this, and no result we
		// could return would be meaningful.
		panic(fmt.Sprintf(
			"deployment %s reorg count went backwards during a query: %d -> %d",
			pre.Deployment, pre.ReorgCount, post.ReorgCount,
		))
	}
	if post.ReorgCount == pre.ReorgCount {
		return nil
	}
	// One or more reorgs happened. Each can have reverted at most
	// MaxReorgDepth blocks, so a query that stayed far enough behind
	// the old head is still fine. Most reorgs are a single block, and
	// this keeps queries running a bit behind the head from being
	// flagged wholesale.
	nblocks := uint64(post.MaxReorgDepth) * uint64(post.ReorgCount-pre.ReorgCount)
	if latest+nblocks > pre.LatestBlock {
		return ErrDeploymentReverted
	}
	return nil
}
