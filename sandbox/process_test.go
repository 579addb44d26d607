//go:build unix

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

func shellRegistry() *Registry {
	return NewRegistry(LanguageProfile{Key: "shell", Extension: ".sh", CommandTemplate: "/bin/sh {file}"})
}

func newShellExecutor(t *testing.T, mutate func(*Config)) (*Executor, string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	root := filepath.Join(t.TempDir(), "sandbox")
	cfg := testConfig(root)
	if mutate != nil {
		mutate(&cfg)
	}
	return New(zaptest.NewLogger(t), cfg, WithRegistry(shellRegistry())), root
}

func runShell(t *testing.T, executor *Executor, code string, input string, timeoutMs int) ExecutionResult {
	t.Helper()
	result, err := executor.Execute(context.Background(), ExecutionRequest{
		Code:      code,
		Language:  "shell",
		Input:     input,
		TimeoutMs: timeoutMs,
	})
	require.NoError(t, err)
	return result
}

func assertNoWorkspaces(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "workspaces must be removed after execution")
}

// processAlive treats zombies as dead: they no longer run or write.
func processAlive(pid int) bool {
	if err := unix.Kill(pid, 0); err != nil {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	fields := strings.Fields(string(stat))
	return len(fields) < 3 || fields[2] != "Z"
}

func readPID(t *testing.T, path string) int {
	t.Helper()
	var pid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil && pid > 0
	}, 2*time.Second, 10*time.Millisecond)
	return pid
}

func TestProcessHelloWorld(t *testing.T) {
	executor, root := newShellExecutor(t, nil)

	result := runShell(t, executor, "echo hello", "", 5000)
	assert.True(t, result.Success)
	assert.Equal(t, "hello\n", result.Output)
	assert.Empty(t, result.Error)
	assert.Equal(t, 0, result.ExitCode)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))
	assertNoWorkspaces(t, root)
}

func TestProcessRunsInsideWorkspace(t *testing.T) {
	executor, root := newShellExecutor(t, nil)

	result := runShell(t, executor, "ls\necho \"env=$NODE_ENV\"", "data", 5000)
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "main.sh")
	assert.Contains(t, result.Output, InputFileName)
	assert.Contains(t, result.Output, "env=sandbox")
	assertNoWorkspaces(t, root)
}

func TestProcessExitCodeAndStderr(t *testing.T) {
	executor, root := newShellExecutor(t, nil)

	t.Run("NonZeroExit", func(t *testing.T) {
		result := runShell(t, executor, "echo partial\nexit 3", "", 5000)
		assert.False(t, result.Success)
		assert.Equal(t, "partial\n", result.Output)
		assert.Equal(t, 3, result.ExitCode)
		assert.Equal(t, "Process exited with code 3", result.Error)
	})

	t.Run("StderrOnCleanExit", func(t *testing.T) {
		result := runShell(t, executor, "echo oops 1>&2", "", 5000)
		assert.False(t, result.Success)
		assert.Equal(t, "oops\n", result.Error)
		assert.Equal(t, 0, result.ExitCode)
	})

	assertNoWorkspaces(t, root)
}

func TestProcessTimeout(t *testing.T) {
	executor, root := newShellExecutor(t, nil)

	start := time.Now()
	result := runShell(t, executor, "echo started\nsleep 10", "", 300)
	elapsed := time.Since(start)

	assert.False(t, result.Success)
	assert.Equal(t, "", result.Output)
	assert.Equal(t, "Execution timed out after 300ms", result.Error)
	assert.Equal(t, 124, result.ExitCode)
	assert.Less(t, elapsed, 3*time.Second)
	assertNoWorkspaces(t, root)
}

func TestProcessTimeoutKillsDescendants(t *testing.T) {
	executor, root := newShellExecutor(t, nil)
	pidFile := filepath.Join(t.TempDir(), "child.pid")

	code := fmt.Sprintf("sleep 30 &\necho $! > %s\nwait", pidFile)
	result := runShell(t, executor, code, "", 500)
	assert.Equal(t, 124, result.ExitCode)

	pid := readPID(t, pidFile)
	assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond)
	assertNoWorkspaces(t, root)
}

func TestProcessLeakedBackgroundChildIsKilled(t *testing.T) {
	executor, root := newShellExecutor(t, nil)
	pidFile := filepath.Join(t.TempDir(), "child.pid")

	code := fmt.Sprintf("sleep 30 &\necho $! > %s\necho done", pidFile)
	start := time.Now()
	result := runShell(t, executor, code, "", 5000)

	assert.True(t, result.Success)
	assert.Equal(t, "done\n", result.Output)
	assert.Less(t, time.Since(start), 4*time.Second)

	pid := readPID(t, pidFile)
	assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond)
	assertNoWorkspaces(t, root)
}

func TestProcessOutputLimit(t *testing.T) {
	executor, root := newShellExecutor(t, func(c *Config) { c.MaxOutputBytes = 1024 })

	code := "i=0\nwhile [ $i -lt 100000 ]; do echo 0123456789; i=$((i+1)); done"
	result := runShell(t, executor, code, "", 5000)

	assert.False(t, result.Success)
	assert.Equal(t, "Output limit exceeded (max 1024 bytes)", result.Error)
	assert.Equal(t, 1, result.ExitCode)
	assert.LessOrEqual(t, len(result.Output), 1024)
	assertNoWorkspaces(t, root)
}

func TestProcessStdinModes(t *testing.T) {
	t.Run("Pipe", func(t *testing.T) {
		executor, _ := newShellExecutor(t, nil)
		result := runShell(t, executor, "read line\necho \"got:$line\"", "abc\n", 5000)
		assert.True(t, result.Success)
		assert.Equal(t, "got:abc\n", result.Output)
	})

	t.Run("File", func(t *testing.T) {
		executor, _ := newShellExecutor(t, func(c *Config) { c.StdinMode = StdinFile })
		result := runShell(t, executor, "cat input.txt\nread line || echo \"no stdin\"", "abc\n", 5000)
		assert.True(t, result.Success)
		assert.Equal(t, "abc\nno stdin\n", result.Output)
	})
}

func TestProcessSpawnFailure(t *testing.T) {
	registry := NewRegistry(LanguageProfile{Key: "ghost", Extension: ".g", CommandTemplate: "vibebox-no-such-interpreter {file}"})
	root := filepath.Join(t.TempDir(), "sandbox")
	executor := New(zaptest.NewLogger(t), testConfig(root), WithRegistry(registry))

	result, err := executor.Execute(context.Background(), ExecutionRequest{Code: "x", Language: "ghost"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Error, "vibebox-no-such-interpreter")
	assertNoWorkspaces(t, root)
}

func TestProcessConcurrentExecutions(t *testing.T) {
	executor, root := newShellExecutor(t, nil)

	const n = 8
	results := make([]ExecutionResult, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			code := fmt.Sprintf("echo job-%d\nls", i)
			timeout := 5000
			if i == 0 {
				code = "sleep 10"
				timeout = 300
			}
			res, err := executor.Execute(context.Background(), ExecutionRequest{Code: code, Language: "shell", TimeoutMs: timeout})
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 124, results[0].ExitCode)
	for i := 1; i < n; i++ {
		assert.True(t, results[i].Success, "job %d", i)
		lines := strings.Split(strings.TrimSpace(results[i].Output), "\n")
		assert.Equal(t, []string{fmt.Sprintf("job-%d", i), "main.sh"}, lines, "each job sees only its own workspace")
	}
	assertNoWorkspaces(t, root)
}

func TestSupportedLanguagesRunTrivialSnippet(t *testing.T) {
	snippets := map[string]string{
		"javascript": `console.log("hello")`,
		"typescript": `console.log("hello")`,
		"python":     `print("hello")`,
		"python3":    `print("hello")`,
	}

	root := filepath.Join(t.TempDir(), "sandbox")
	executor := New(zaptest.NewLogger(t), testConfig(root))

	for _, lang := range executor.SupportedLanguages() {
		t.Run(lang, func(t *testing.T) {
			code, ok := snippets[lang]
			require.True(t, ok, "every supported language needs a trivial snippet")

			profile, _ := executor.registry.Lookup(lang)
			args, err := profile.Command("main")
			require.NoError(t, err)
			if _, err := exec.LookPath(args[0]); err != nil {
				t.Skipf("%s not installed", args[0])
			}
			if lang == "typescript" {
				if _, err := exec.LookPath("ts-node"); err != nil {
					t.Skip("ts-node not installed")
				}
			}

			result, err := executor.Execute(context.Background(), ExecutionRequest{Code: code, Language: lang, TimeoutMs: 20000})
			require.NoError(t, err)
			assert.True(t, result.Success, result.Error)
			assert.Contains(t, result.Output, "hello")
			assert.Equal(t, 0, result.ExitCode)
		})
	}
	assertNoWorkspaces(t, root)
}
