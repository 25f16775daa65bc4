// Command dispatchdemo walks through a handful of concurrency
// scenarios against a real dispatch.Semaphore / dispatch.Group /
// dispatch.Once, logging each step. It exists so the library has an
// exercised, runnable surface beyond its test suite.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/veezhang/godispatch/dispatch"
	"github.com/veezhang/godispatch/internal/ksema"
)

// config is the demo's environment-sourced configuration, following the
// same envconfig pattern the pack's service example uses for its own
// settings struct.
type config struct {
	Producers int    `envconfig:"producers" default:"10"`
	Consumers int    `envconfig:"consumers" default:"10"`
	GroupSize int    `envconfig:"group_size" default:"5"`
	LogLevel  string `envconfig:"log_level" default:"info"`
}

func main() {
	var cfg config
	if err := envconfig.Process("dispatchdemo", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "dispatchdemo: loading config"))
		os.Exit(1)
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "dispatchdemo: parsing log level"))
		os.Exit(1)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	logger, err := zc.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "dispatchdemo: building logger"))
		os.Exit(1)
	}
	defer logger.Sync()
	dispatch.SetLogger(logger)

	if err := runScenarios(cfg, logger); err != nil {
		logger.Error("dispatchdemo: scenario failed", zap.Error(err))
		os.Exit(1)
	}
}

func runScenarios(cfg config, logger *zap.Logger) error {
	var errs error

	errs = multierr.Append(errs, boundedResource(logger))
	errs = multierr.Append(errs, producerConsumer(cfg, logger))
	errs = multierr.Append(errs, groupJoin(cfg, logger))
	errs = multierr.Append(errs, notifyOrdering(logger))
	errs = multierr.Append(errs, onceCorrectness(logger))

	return errs
}

// boundedResource acquires a 2-slot semaphore to exhaustion, confirms a
// third wait times out, then releases a slot and confirms a fresh wait
// acquires it.
func boundedResource(logger *zap.Logger) error {
	sem := dispatch.NewSemaphore(2)
	if sem == nil {
		return errors.New("boundedResource: NewSemaphore(2) returned nil")
	}
	if err := sem.Wait(ksema.Forever); err != nil {
		return err
	}
	if err := sem.Wait(ksema.Forever); err != nil {
		return err
	}

	start := time.Now()
	if err := sem.Wait(ksema.After(100 * time.Millisecond)); !errors.Is(err, dispatch.ErrTimeout) {
		return errors.Errorf("boundedResource: third Wait returned %v, want ErrTimeout", err)
	}
	logger.Info("boundedResource: third wait timed out as expected", zap.Duration("after", time.Since(start)))

	sem.Signal()
	if err := sem.Wait(ksema.After(time.Second)); err != nil {
		return errors.Wrap(err, "boundedResource: wait after signal")
	}
	// Release both slots still held so Dispose sees value == orig.
	sem.Signal()
	sem.Signal()
	sem.Dispose()
	return nil
}

// producerConsumer fans out producers that each Signal once and
// consumers that each Wait once, confirming every consumer returns.
func producerConsumer(cfg config, logger *zap.Logger) error {
	sem := dispatch.NewSemaphore(0)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem.Signal()
		}()
	}
	for i := 0; i < cfg.Consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sem.Wait(ksema.Forever)
		}()
	}
	wg.Wait()
	sem.Dispose()
	logger.Info("producerConsumer: all consumers returned", zap.Int("producers", cfg.Producers), zap.Int("consumers", cfg.Consumers))
	return nil
}

// groupJoin enters a group once per worker, lets each worker leave
// after a short delay, and confirms Wait unblocks once they all have.
func groupJoin(cfg config, logger *zap.Logger) error {
	g := dispatch.NewGroup()
	for i := 0; i < cfg.GroupSize; i++ {
		g.Enter()
	}
	for i := 0; i < cfg.GroupSize; i++ {
		go func() {
			time.Sleep(time.Millisecond)
			g.Leave()
		}()
	}
	if err := g.Wait(ksema.After(5 * time.Second)); err != nil {
		return errors.Wrap(err, "groupJoin: wait for fan-out")
	}
	if err := g.Wait(ksema.Immediate); err != nil {
		return errors.Wrap(err, "groupJoin: immediate wait after quiescence")
	}
	logger.Info("groupJoin: group quiescent", zap.Int("size", cfg.GroupSize))
	return nil
}

// notifyOrdering registers two notifications on a serial queue and
// confirms they run in registration order once the group drains.
func notifyOrdering(logger *zap.Logger) error {
	g := dispatch.NewGroup()
	q := dispatch.NewSerialGoQueue("demo-notify")
	defer q.Close()

	var mu sync.Mutex
	var order []string
	record := func(tag string) {
		mu.Lock()
		order = append(order, tag)
		mu.Unlock()
	}

	g.Enter()
	g.Enter()
	g.Notify(q, func() { record("a") })
	g.Notify(q, func() { record("b") })
	g.Leave()
	g.Leave()

	if err := g.Wait(ksema.After(time.Second)); err != nil {
		return errors.Wrap(err, "notifyOrdering: wait for quiescence")
	}
	q.Close()

	mu.Lock()
	got := append([]string(nil), order...)
	mu.Unlock()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		return errors.Errorf("notifyOrdering: got %v, want [a b]", got)
	}
	logger.Info("notifyOrdering: notifications ran in order", zap.Strings("order", got))
	return nil
}

// onceCorrectness races 32 goroutines through the same Once and
// confirms the guarded thunk ran exactly once.
func onceCorrectness(logger *zap.Logger) error {
	var once dispatch.Once
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			once.Do(func() { counter++ })
		}()
	}
	wg.Wait()
	if counter != 1 {
		return errors.Errorf("onceCorrectness: counter = %d, want 1", counter)
	}
	logger.Info("onceCorrectness: thunk ran exactly once across 32 goroutines")
	return nil
}
