// Package sandbox provides secure code execution capabilities.
//
// The sandbox package implements the execution engine for running untrusted
// code in ephemeral workspaces with a wall-clock timeout, an output cap and a
// pre-execution security scan.
package sandbox

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/isdmx/vibebox/config"
)

// ExecutionRequest represents the parameters for code execution
type ExecutionRequest struct {
	Code     string
	Language string
	// Input is optional; an empty string means no input.
	Input         string
	TimeoutMs     int
	MemoryLimitMB int
}

// ExecutionResult represents the result of code execution
type ExecutionResult struct {
	Success         bool     `json:"success"`
	Output          string   `json:"output"`
	Error           string   `json:"error,omitempty"`
	ExecutionTimeMs int64    `json:"executionTime"`
	ExitCode        int      `json:"exitCode"`
	MemoryUsedMB    *float64 `json:"memoryUsedMB,omitempty"`
}

// RunSpec describes one child process invocation
type RunSpec struct {
	Args           []string
	Dir            string
	Env            []string
	Stdin          io.Reader
	Timeout        time.Duration
	MaxOutputBytes int
}

// RunOutcome is what a CommandRunner observed about a finished process
type RunOutcome struct {
	Stdout         string
	Stderr         string
	ExitCode       int
	TimedOut       bool
	OutputExceeded bool
	MemoryUsedMB   *float64
}

// CommandRunner defines an interface for executing system commands.
// A returned error means the process could not be started at all.
type CommandRunner interface {
	Run(ctx context.Context, spec RunSpec) (RunOutcome, error)
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	Mkdir(path string, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

// Mkdir creates a single directory
func (RealFileSystem) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

// MkdirAll creates a directory and any missing parents
func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// WriteFile writes data to a file, creating or truncating it
func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

// RemoveAll removes a path and everything beneath it
func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// File permission and size constants
const (
	DirPermission  = 0o700
	FilePermission = 0o600
	BytesPerMB     = 1024 * 1024
)

// Workspace file names
const (
	CodeFileBase  = "main"
	InputFileName = "input.txt"
)

// Stdin modes
const (
	// StdinPipe connects the input to the child's standard input in
	// addition to writing input.txt.
	StdinPipe = config.StdinModePipe
	// StdinFile only writes input.txt; the child's standard input is empty.
	StdinFile = config.StdinModeFile
)

// Exit codes reported by the executor itself
const (
	ExitCodeFailure = 1
	ExitCodeTimeout = 124
)

// SandboxEnv is added to every child environment
const SandboxEnv = "NODE_ENV=sandbox"
