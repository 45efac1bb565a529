// Package sandbox runs model-written code inside ephemeral containers.
// Each Session maps to exactly one container: it is started, used for a
// single tool call, and torn down. Nothing survives between sessions
// except files explicitly copied out.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

// WorkDir is the directory inside every sandbox container where uploads are
// staged and code files are written.
const WorkDir = "/sandbox"

type langSpec struct {
	image   string
	file    string
	run     func(file string) []string
	install func(libraries []string) []string // nil when the runtime has no package manager hook
}

var langSpecs = map[string]langSpec{
	"python": {
		image: "python:3.11-slim",
		file:  WorkDir + "/code.py",
		run:   func(file string) []string { return []string{"python3", file} },
		install: func(libraries []string) []string {
			return append([]string{"pip", "install", "--quiet"}, libraries...)
		},
	},
	"javascript": {
		image: "node:20-slim",
		file:  WorkDir + "/code.js",
		run:   func(file string) []string { return []string{"node", file} },
		install: func(libraries []string) []string {
			return []string{"sh", "-c", "cd " + WorkDir + " && npm install --silent " + strings.Join(libraries, " ")}
		},
	},
	"java": {
		image: "eclipse-temurin:17",
		file:  WorkDir + "/Main.java",
		run:   func(file string) []string { return []string{"java", file} },
	},
	"cpp": {
		image: "gcc:13",
		file:  WorkDir + "/code.cpp",
		run: func(file string) []string {
			return []string{"sh", "-c", "g++ -o " + WorkDir + "/a.out " + file + " && " + WorkDir + "/a.out"}
		},
	},
	"go": {
		image: "golang:1.23",
		file:  WorkDir + "/code.go",
		run: func(file string) []string {
			return []string{"sh", "-c", "cd " + WorkDir + " && GOCACHE=/tmp/gocache GOPATH=/tmp/gopath go run " + path.Base(file)}
		},
	},
	"ruby": {
		image: "ruby:3.2-slim",
		file:  WorkDir + "/code.rb",
		run:   func(file string) []string { return []string{"ruby", file} },
		install: func(libraries []string) []string {
			return append([]string{"gem", "install"}, libraries...)
		},
	},
}

// Supported reports whether lang has a sandbox runtime.
func Supported(lang string) bool {
	_, ok := langSpecs[lang]
	return ok
}

// Session is one live sandbox container.
type Session struct {
	container testcontainers.Container
	lang      string
	spec      langSpec
}

// NewSession starts a fresh container for the given language.
func NewSession(ctx context.Context, lang string) (*Session, error) {
	spec, ok := langSpecs[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported sandbox language %q", lang)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: spec.image,
			Cmd:   []string{"sleep", "infinity"},
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s sandbox: %w", lang, err)
	}

	s := &Session{container: container, lang: lang, spec: spec}
	if _, _, err := container.Exec(ctx, []string{"mkdir", "-p", WorkDir}); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("prepare %s sandbox: %w", lang, err)
	}
	return s, nil
}

// Run installs the requested libraries, writes the code into the container
// and executes it, returning combined stdout+stderr. A non-zero exit code is
// not an error: compiler messages and tracebacks are output the model reads.
func (s *Session) Run(ctx context.Context, code string, libraries []string) (string, error) {
	if len(libraries) > 0 {
		if s.spec.install == nil {
			return "", fmt.Errorf("library installation is not supported for %s", s.lang)
		}
		exitCode, reader, err := s.container.Exec(ctx, s.spec.install(libraries), tcexec.Multiplexed())
		if err != nil {
			return "", fmt.Errorf("install libraries: %w", err)
		}
		out, _ := io.ReadAll(reader)
		if exitCode != 0 {
			return "", fmt.Errorf("install libraries: exit %d: %s", exitCode, strings.TrimSpace(string(out)))
		}
	}

	if err := s.container.CopyToContainer(ctx, []byte(code), s.spec.file, 0o644); err != nil {
		return "", fmt.Errorf("copy code: %w", err)
	}

	_, reader, err := s.container.Exec(ctx, s.spec.run(s.spec.file), tcexec.Multiplexed())
	if err != nil {
		return "", fmt.Errorf("execute code: %w", err)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	return string(out), nil
}

// CopyToRuntime copies a local file into the container. Directory-style
// destinations (trailing slash or no extension) keep the local basename.
func (s *Session) CopyToRuntime(ctx context.Context, localPath, remotePath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	dest := resolveRemotePath(localPath, remotePath)
	if dir := path.Dir(dest); dir != "/" && dir != "." {
		if _, _, err := s.container.Exec(ctx, []string{"mkdir", "-p", dir}); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return s.container.CopyFileToContainer(ctx, localPath, dest, 0o644)
}

// CopyFromRuntime copies a container file to a local path.
func (s *Session) CopyFromRuntime(ctx context.Context, remotePath, localPath string) error {
	reader, err := s.container.CopyFileFromContainer(ctx, remotePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read %s: %w", remotePath, err)
	}
	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(localPath, data, 0o644)
}

// Close terminates the container.
func (s *Session) Close(ctx context.Context) error {
	return s.container.Terminate(ctx)
}

func resolveRemotePath(localPath, remotePath string) string {
	if strings.HasSuffix(remotePath, "/") || path.Ext(remotePath) == "" {
		return path.Join(remotePath, filepath.Base(localPath))
	}
	return remotePath
}
