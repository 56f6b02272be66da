package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Up enters the environment, creating or starting its container first.
func (m *Manager) Up(ctx context.Context) error {
	exists, err := m.DoesEnvironmentExist(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.CreateNewEnvironment(ctx); err != nil {
			return err
		}
	} else {
		running, err := m.IsContainerRunning(ctx)
		if err != nil {
			return err
		}
		if !running {
			done := m.progress("Starting container")
			err := m.StartContainer(ctx)
			done()
			if err != nil {
				return err
			}
		}
	}
	return m.EnterEnvironment(ctx)
}

// Build provisions a fresh container and leaves it stopped.
func (m *Manager) Build(ctx context.Context) error {
	if err := m.CreateNewEnvironment(ctx); err != nil {
		return err
	}
	return m.StopContainerIfRunning(ctx)
}

// Run executes flow, stopping the container when it fails and removing it
// afterwards when cleanup is set. The flow's own error always comes first.
func (m *Manager) Run(ctx context.Context, flow func(context.Context) error, cleanup bool) error {
	err := flow(ctx)
	if err != nil {
		m.logger.Error("flow failed", zap.Error(err))
		if stopErr := m.StopContainerIfRunning(cleanupContext(ctx)); stopErr != nil {
			m.logger.Warn("failed to stop container after error", zap.Error(stopErr))
			err = errors.Join(err, fmt.Errorf("stop after failure: %w", stopErr))
		}
	}
	if cleanup {
		if rmErr := m.DeleteContainerIfExists(cleanupContext(ctx)); rmErr != nil {
			m.logger.Warn("failed to remove container", zap.Error(rmErr))
			if err == nil {
				return rmErr
			}
			err = errors.Join(err, fmt.Errorf("cleanup: %w", rmErr))
		}
	}
	return err
}

func cleanupContext(ctx context.Context) context.Context {
	if ctx == nil || ctx.Err() != nil {
		return context.Background()
	}
	return ctx
}
