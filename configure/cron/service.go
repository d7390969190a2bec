package cron

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/compose/di"
	"github.com/gocrud/compose/logging"
	"github.com/robfig/cron/v3"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ErrJobNotFound 任务不存在
var ErrJobNotFound = errors.New("cron job not found")

// Options Cron 调度器配置
type Options struct {
	// Location 时区，默认 UTC
	Location string `json:"location" yaml:"location"`
	// Seconds 是否启用秒级精度（表达式为 6 段）
	Seconds bool `json:"seconds" yaml:"seconds"`
	// Verbose 是否输出 cron 库的内部调度日志
	Verbose bool `json:"verbose" yaml:"verbose"`
}

func (o Options) parser() cron.Parser {
	if o.Seconds {
		return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

func (o Options) location() (*time.Location, error) {
	if o.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(o.Location)
}

// job 是一个已校验的任务定义
type job struct {
	spec    string
	name    string
	handler reflect.Value
}

// newJob 校验处理函数：参数由容器注入（context.Context 注入调度器上下文），
// 返回值为空或 error。
func newJob(spec, name string, handler any) (job, error) {
	if name == "" {
		return job{}, errors.New("cron job name is required")
	}
	v := reflect.ValueOf(handler)
	if handler == nil || v.Kind() != reflect.Func {
		return job{}, fmt.Errorf("cron job '%s': handler must be a function, got %T", name, handler)
	}
	t := v.Type()
	if t.IsVariadic() {
		return job{}, fmt.Errorf("cron job '%s': variadic handler not supported", name)
	}
	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == errorType:
	default:
		return job{}, fmt.Errorf("cron job '%s': handler must return nothing or error", name)
	}
	return job{spec: spec, name: name, handler: v}, nil
}

// Scheduler Cron 定时任务托管服务。
// 任务函数的参数在每次执行时从容器解析，因此任务可以依赖瞬态服务。
type Scheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	provider di.ServiceProvider
	logger   logging.Logger

	mu      sync.RWMutex
	jobs    map[string]cron.EntryID
	runners map[string]func()
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// NewScheduler 创建调度器。provider 用于在任务执行时解析参数。
func NewScheduler(provider di.ServiceProvider, logger logging.Logger, opts Options) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	loc, err := opts.location()
	if err != nil {
		return nil, fmt.Errorf("cron: invalid location %q: %w", opts.Location, err)
	}

	parser := opts.parser()
	cronLog := newCronLogger(logger)
	cronOpts := []cron.Option{
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLog)),
	}
	// 只在启用时添加 cron 库的日志记录器
	if opts.Verbose {
		cronOpts = append(cronOpts, cron.WithLogger(cronLog))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cronOpts...),
		parser:   parser,
		provider: provider,
		logger:   logger,
		jobs:     make(map[string]cron.EntryID),
		runners:  make(map[string]func()),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// AddFunc 添加无依赖的任务
func (s *Scheduler) AddFunc(spec, name string, fn func()) error {
	if fn == nil {
		return fmt.Errorf("cron job '%s': nil function", name)
	}
	return s.AddJob(spec, name, fn)
}

// AddJob 添加任务，handler 的参数由容器注入
//
//	scheduler.AddJob("*/5 * * * *", "sync-data", func(ctx context.Context, svc *DataService) error {
//		return svc.Sync(ctx)
//	})
func (s *Scheduler) AddJob(spec, name string, handler any) error {
	j, err := newJob(spec, name, handler)
	if err != nil {
		return err
	}
	return s.add(j)
}

func (s *Scheduler) add(j job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.name]; exists {
		return fmt.Errorf("cron job '%s' already registered", j.name)
	}
	schedule, err := s.parser.Parse(j.spec)
	if err != nil {
		return fmt.Errorf("cron job '%s': invalid spec %q: %w", j.name, j.spec, err)
	}

	run := func() { s.run(j) }
	s.jobs[j.name] = s.cron.Schedule(schedule, cron.FuncJob(run))
	s.runners[j.name] = run
	s.logger.Info("cron job registered",
		logging.Field{Key: "job", Value: j.name},
		logging.Field{Key: "spec", Value: j.spec})
	return nil
}

// Remove 移除定时任务
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.jobs[name]
	if !exists {
		return false
	}
	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.runners, name)
	s.logger.Info("cron job removed", logging.Field{Key: "job", Value: name})
	return true
}

// Jobs 返回已注册的任务名称，按字典序
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next 返回任务的下一次执行时间，调度器未启动时为零值
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.RLock()
	id, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.cron.Entry(id).Next, nil
}

// Trigger 立即在当前 goroutine 执行一次任务
func (s *Scheduler) Trigger(name string) error {
	s.mu.RLock()
	run, exists := s.runners[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	run()
	return nil
}

// Start 实现 HostedService，启动调度并阻塞到 ctx 取消
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.cron.Start()
	count := len(s.jobs)
	s.mu.Unlock()
	s.logger.Info("cron scheduler started", logging.Field{Key: "jobs", Value: count})

	<-ctx.Done()
	return nil
}

// Stop 实现 HostedService，等待正在运行的任务完成或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("cron scheduler stopping")
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("cron scheduler stop timeout")
		return ctx.Err()
	}
}

// Dispose 在容器释放时调用：取消任务上下文并停止调度，不等待运行中的任务。
// 未作为托管服务启动的调度器也能由此释放。
func (s *Scheduler) Dispose() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.cron.Stop()
	return nil
}

// run 解析参数并执行任务，错误与 panic 只记录日志
func (s *Scheduler) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cron job panicked",
				logging.Field{Key: "job", Value: j.name},
				logging.Field{Key: "panic", Value: r})
		}
	}()

	t := j.handler.Type()
	args := make([]reflect.Value, t.NumIn())
	for i := range args {
		param := t.In(i)
		if param == contextType {
			args[i] = reflect.ValueOf(s.ctx)
			continue
		}
		inst, err := s.provider.GetRequiredService(param)
		if err != nil {
			s.logger.Error("cron job dependency resolution failed",
				logging.Field{Key: "job", Value: j.name},
				logging.Field{Key: "parameter", Value: param.String()},
				logging.Field{Key: "error", Value: err.Error()})
			return
		}
		args[i] = reflect.ValueOf(inst)
	}

	start := time.Now()
	out := j.handler.Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		s.logger.Error("cron job failed",
			logging.Field{Key: "job", Value: j.name},
			logging.Field{Key: "error", Value: out[0].Interface().(error).Error()})
		return
	}
	s.logger.Debug("cron job completed",
		logging.Field{Key: "job", Value: j.name},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: err.Error()})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprintf("%v", keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
