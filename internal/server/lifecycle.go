// Package server assembles the long-running pieces of the game server and
// manages their lifecycle: ordered startup, signal handling, and
// reverse-order shutdown.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Service is one long-running component. Start blocks for the component's
// lifetime; Stop makes a blocked Start return.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into a Service.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

func (f *FuncService) Start() error { return f.StartFn() }
func (f *FuncService) Stop()        { f.StopFn() }

// Lifecycle runs a fixed set of named services: started in registration
// order, stopped in reverse. The first service failure, a termination
// signal, or context cancellation tears everything down.
//
// Add and Run are not safe for concurrent use; register everything, then
// call Run once.
type Lifecycle struct {
	logger   *zap.Logger
	names    []string
	services []Service
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named service.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.names = append(l.names, name)
	l.services = append(l.services, svc)
}

// Run starts every registered service and blocks until SIGINT, SIGTERM, a
// service failure, or ctx cancellation, then stops them in reverse order.
//
// Postcondition: every service's Stop has been called when Run returns.
func (l *Lifecycle) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failures := make(chan error, len(l.services))
	for i, svc := range l.services {
		name, svc := l.names[i], svc
		l.logger.Info("starting service", zap.String("service", name))
		go func() {
			if err := svc.Start(); err != nil {
				failures <- fmt.Errorf("service %s: %w", name, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.String("cause", "signal or cancellation"))
	case err := <-failures:
		l.logger.Error("service failed, shutting down", zap.Error(err))
	}

	for i := len(l.services) - 1; i >= 0; i-- {
		l.logger.Info("stopping service", zap.String("service", l.names[i]))
		l.services[i].Stop()
	}
	l.logger.Info("shutdown complete")
	return nil
}
