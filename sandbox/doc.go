// Package sandbox provides secure code execution capabilities.
//
// The sandbox package implements the execution engine for running untrusted
// code. Each request is first checked against the language registry, an
// ordered list of text-pattern security rules and a code size limit; only
// then is a private workspace created, the code written into it and the
// language's interpreter spawned as its own process group under a wall-clock
// timeout and a combined output cap. The workspace is always removed when the
// request ends.
//
// The security scan filters obvious misuse by matching source text. It is
// not an isolation boundary, and the declared memory limit is not enforced.
//
// Usage:
//
//	executor := sandbox.New(logger, sandbox.DefaultConfig())
//	result, err := executor.Execute(ctx, sandbox.ExecutionRequest{
//	    Language:  "python",
//	    Code:      "print('Hello, World!')",
//	    TimeoutMs: 5000,
//	})
package sandbox
