package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"chatbridge/internal/agent"
	"chatbridge/pkg/logging/logging"
)

// branchResult captures one generator branch independently so a failure
// in one cannot cancel or mask the other.
type branchResult struct {
	result *agent.Result
	err    error
}

// invokeBoth runs the augmented and plain generators concurrently with
// the same query and history and waits for both. Both must succeed for
// the dual-response flow; partial results are never returned.
func (s *Service) invokeBoth(ctx context.Context, query string, history History) (augmented, plain *agent.Result, err error) {
	in := agent.Input{Query: query, History: history.Messages()}

	var wg sync.WaitGroup
	var augBranch, plainBranch branchResult

	wg.Add(2)
	go func() {
		defer wg.Done()
		augBranch.result, augBranch.err = s.agents.Augmented.Invoke(ctx, in)
	}()
	go func() {
		defer wg.Done()
		plainBranch.result, plainBranch.err = s.agents.Plain.Invoke(ctx, in)
	}()
	wg.Wait()

	logger := logging.L(ctx)
	if augBranch.err != nil {
		logger.Warn("augmented generator failed", zap.Error(augBranch.err))
	}
	if plainBranch.err != nil {
		logger.Warn("plain generator failed", zap.Error(plainBranch.err))
	}

	if augBranch.err != nil {
		return nil, nil, augBranch.err
	}
	if plainBranch.err != nil {
		return nil, nil, plainBranch.err
	}

	return augBranch.result, plainBranch.result, nil
}
