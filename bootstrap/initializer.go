package bootstrap

import (
	"context"
	"reflect"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _initializer = new(initializer)

// initializer sequences three kinds of startup work: fns run
// synchronously in registration order (config -> logger -> db -> ...,
// each depending on the last), gos run concurrently and are only
// waited on together (the serving loops), and cleanups run in
// reverse registration order on shutdown.
type initializer struct {
	fns      []func() error
	gos      []func() error
	cleanups []func()
}

func (i *initializer) Register(fn ...func() error)   { i.fns = append(i.fns, fn...) }
func (i *initializer) RegisterGo(fn ...func() error) { i.gos = append(i.gos, fn...) }
func (i *initializer) RegisterCleanup(fn ...func())  { i.cleanups = append(i.cleanups, fn...) }

// Init executes all registered initialization functions sequentially
// and logs their execution time.
func (i *initializer) Init() error {
	defer func() { i.fns = make([]func() error, 0) }()

	for _, fn := range i.fns {
		if fn == nil {
			continue
		}
		if err := i.executeWithTiming(fn); err != nil {
			return err
		}
	}
	return nil
}

func (i *initializer) Go() error {
	defer func() { i.gos = make([]func() error, 0) }()

	g, _ := errgroup.WithContext(context.Background())
	for _, fn := range i.gos {
		if fn == nil {
			continue
		}
		g.Go(fn)
	}
	return g.Wait()
}

// Cleanup runs every registered cleanup function in reverse order, so
// the last thing started is the first thing torn down.
func (i *initializer) Cleanup() {
	for j := len(i.cleanups) - 1; j >= 0; j-- {
		i.cleanups[j]()
	}
}

func (i *initializer) executeWithTiming(fn func() error) error {
	funcName := i.getFunctionName(fn)
	start := time.Now()
	err := fn()
	zap.L().Debug("init function executed", zap.String("function", funcName), zap.Duration("elapsed", time.Since(start)))
	return err
}

func (i *initializer) getFunctionName(fn func() error) string {
	if fn == nil {
		return "<nil>"
	}
	pc := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if pc == nil {
		return "<unknown>"
	}
	fullName := pc.Name()
	if lastSlash := strings.LastIndex(fullName, "/"); lastSlash >= 0 {
		fullName = fullName[lastSlash+1:]
	}
	return fullName
}

func Register(fn ...func() error)   { _initializer.Register(fn...) }
func RegisterGo(fn ...func() error) { _initializer.RegisterGo(fn...) }
func RegisterCleanup(fn ...func())  { _initializer.RegisterCleanup(fn...) }
func Init() error                   { return _initializer.Init() }
func Go() error                     { return _initializer.Go() }
func Cleanup()                      { _initializer.Cleanup() }
