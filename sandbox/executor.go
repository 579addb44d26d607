package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Config holds configuration for the Executor
type Config struct {
	TempRoot       string
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	// MemoryMB is declared for callers but not enforced on the child.
	MemoryMB       int
	MaxCodeLength  int
	MaxOutputBytes int
	StdinMode      string
	MaxConcurrent  int
}

// DefaultConfig returns the reference limits
func DefaultConfig() Config {
	return Config{
		TempRoot:       filepath.Join(os.TempDir(), "vibebox-sandbox"),
		DefaultTimeout: 10 * time.Second,
		MaxTimeout:     30 * time.Second,
		MemoryMB:       128,
		MaxCodeLength:  50000,
		MaxOutputBytes: BytesPerMB,
		StdinMode:      StdinPipe,
	}
}

// Executor runs code in a fresh workspace per request
type Executor struct {
	logger    *zap.Logger
	config    Config
	registry  *Registry
	rules     []SecurityRule
	cmdRunner CommandRunner
	fs        FileSystem
	admission *semaphore.Weighted
}

// ExecutorOption defines a functional option for Executor
type ExecutorOption func(*Executor)

// WithCommandRunner sets the CommandRunner for Executor
func WithCommandRunner(cmdRunner CommandRunner) ExecutorOption {
	return func(e *Executor) {
		e.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for Executor
func WithFileSystem(fs FileSystem) ExecutorOption {
	return func(e *Executor) {
		e.fs = fs
	}
}

// WithRegistry replaces the built-in language registry
func WithRegistry(registry *Registry) ExecutorOption {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithSecurityRules replaces the default security rules
func WithSecurityRules(rules []SecurityRule) ExecutorOption {
	return func(e *Executor) {
		e.rules = rules
	}
}

// New creates an Executor with default implementations and optional interfaces
func New(logger *zap.Logger, config Config, opts ...ExecutorOption) *Executor {
	defaults := DefaultConfig()
	if config.TempRoot == "" {
		config.TempRoot = defaults.TempRoot
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.MaxTimeout <= 0 {
		config.MaxTimeout = defaults.MaxTimeout
	}
	if config.MaxTimeout < config.DefaultTimeout {
		config.MaxTimeout = config.DefaultTimeout
	}
	if config.MemoryMB <= 0 {
		config.MemoryMB = defaults.MemoryMB
	}
	if config.MaxCodeLength <= 0 {
		config.MaxCodeLength = defaults.MaxCodeLength
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = defaults.MaxOutputBytes
	}
	if config.StdinMode == "" {
		config.StdinMode = defaults.StdinMode
	}

	executor := &Executor{
		logger:    logger,
		config:    config,
		registry:  DefaultRegistry(),
		rules:     DefaultSecurityRules,
		cmdRunner: ProcessRunner{},
		fs:        RealFileSystem{},
	}
	if config.MaxConcurrent > 0 {
		executor.admission = semaphore.NewWeighted(int64(config.MaxConcurrent))
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// SupportedLanguages returns the registry's language keys
func (e *Executor) SupportedLanguages() []string {
	return e.registry.Keys()
}

// Execute validates and runs the code. Every rejection or runtime problem of
// the code itself is reported in the result; the error is reserved for
// infrastructure failures such as an unwritable workspace.
//
//nolint:gocritic // ExecutionRequest is a single-use value
func (e *Executor) Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	profile, ok := e.registry.Lookup(req.Language)
	if !ok {
		return rejected(fmt.Sprintf("Unsupported language: %s. Supported: %s",
			req.Language, strings.Join(e.registry.Keys(), ", "))), nil
	}

	if check := CheckRules(e.rules, req.Code, req.Language); !check.Safe {
		e.logger.Info("code rejected by security scan",
			zap.String("language", profile.Key),
			zap.String("reason", check.Reason))
		return rejected("Security violation: " + check.Reason), nil
	}

	if n := utf8.RuneCountInString(req.Code); n > e.config.MaxCodeLength {
		return rejected(fmt.Sprintf("Code too long: %d characters (max %d)", n, e.config.MaxCodeLength)), nil
	}

	if e.admission != nil {
		if err := e.admission.Acquire(ctx, 1); err != nil {
			return ExecutionResult{}, fmt.Errorf("waiting for execution slot: %w", err)
		}
		defer e.admission.Release(1)
	}

	timeout := e.timeoutFor(req.TimeoutMs)
	start := time.Now()

	ws, err := NewWorkspace(e.fs, e.config.TempRoot)
	if err != nil {
		return ExecutionResult{}, err
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			e.logger.Warn("failed to remove workspace", zap.String("path", ws.Path), zap.Error(rmErr))
		}
	}()

	codePath, err := ws.WriteFile(profile.CodeFileName(), []byte(req.Code))
	if err != nil {
		return ExecutionResult{}, err
	}

	if req.Input != "" {
		if _, err := ws.WriteFile(InputFileName, []byte(req.Input)); err != nil {
			return ExecutionResult{}, err
		}
	}

	args, err := profile.Command(codePath)
	if err != nil {
		return ExecutionResult{}, err
	}

	spec := RunSpec{
		Args:           args,
		Dir:            ws.Path,
		Env:            e.environment(profile),
		Timeout:        timeout,
		MaxOutputBytes: e.config.MaxOutputBytes,
	}
	if e.config.StdinMode == StdinPipe && req.Input != "" {
		// Same bytes as input.txt.
		spec.Stdin = strings.NewReader(req.Input)
	}

	e.logger.Debug("starting execution",
		zap.String("workspace", ws.ID),
		zap.String("language", profile.Key),
		zap.Strings("command", args),
		zap.Duration("timeout", timeout),
		zap.Int("memory_mb_declared", e.memoryFor(req.MemoryLimitMB)))

	outcome, runErr := e.cmdRunner.Run(ctx, spec)
	result := e.buildResult(outcome, runErr, timeout)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	e.logger.Info("execution finished",
		zap.String("workspace", ws.ID),
		zap.String("language", profile.Key),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Int64("execution_time_ms", result.ExecutionTimeMs))

	return result, nil
}

//nolint:gocritic // RunOutcome is a plain value
func (e *Executor) buildResult(outcome RunOutcome, runErr error, timeout time.Duration) ExecutionResult {
	switch {
	case runErr != nil:
		msg := outcome.Stderr
		if msg == "" {
			msg = runErr.Error()
		}
		return ExecutionResult{
			Success:  false,
			Output:   outcome.Stdout,
			Error:    msg,
			ExitCode: ExitCodeFailure,
		}
	case outcome.TimedOut:
		return ExecutionResult{
			Success:      false,
			Output:       "",
			Error:        fmt.Sprintf("Execution timed out after %dms", timeout.Milliseconds()),
			ExitCode:     ExitCodeTimeout,
			MemoryUsedMB: outcome.MemoryUsedMB,
		}
	case outcome.OutputExceeded:
		return ExecutionResult{
			Success:      false,
			Output:       outcome.Stdout,
			Error:        fmt.Sprintf("Output limit exceeded (max %d bytes)", e.config.MaxOutputBytes),
			ExitCode:     ExitCodeFailure,
			MemoryUsedMB: outcome.MemoryUsedMB,
		}
	case outcome.ExitCode != 0:
		msg := outcome.Stderr
		if msg == "" {
			msg = fmt.Sprintf("Process exited with code %d", outcome.ExitCode)
		}
		return ExecutionResult{
			Success:      false,
			Output:       outcome.Stdout,
			Error:        msg,
			ExitCode:     outcome.ExitCode,
			MemoryUsedMB: outcome.MemoryUsedMB,
		}
	default:
		return ExecutionResult{
			Success:      outcome.Stderr == "",
			Output:       outcome.Stdout,
			Error:        outcome.Stderr,
			ExitCode:     0,
			MemoryUsedMB: outcome.MemoryUsedMB,
		}
	}
}

func (e *Executor) timeoutFor(timeoutMs int) time.Duration {
	if timeoutMs <= 0 {
		return e.config.DefaultTimeout
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout > e.config.MaxTimeout {
		return e.config.MaxTimeout
	}
	return timeout
}

func (e *Executor) memoryFor(memoryMB int) int {
	if memoryMB <= 0 {
		return e.config.MemoryMB
	}
	return memoryMB
}

func (*Executor) environment(profile LanguageProfile) []string {
	env := os.Environ()
	env = append(env, profile.Env...)
	return append(env, SandboxEnv)
}

func rejected(msg string) ExecutionResult {
	return ExecutionResult{
		Success:         false,
		Output:          "",
		Error:           msg,
		ExecutionTimeMs: 0,
		ExitCode:        ExitCodeFailure,
	}
}
