package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestSupported(t *testing.T) {
	for _, lang := range []string{"python", "java", "javascript", "cpp", "go", "ruby"} {
		if !Supported(lang) {
			t.Errorf("expected %s to be supported", lang)
		}
	}
	if Supported("cobol") {
		t.Error("cobol should not be supported")
	}
}

func TestNewSessionUnsupportedLanguage(t *testing.T) {
	if _, err := NewSession(context.Background(), "cobol"); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestResolveRemotePath(t *testing.T) {
	tests := []struct {
		name       string
		localPath  string
		remotePath string
		want       string
	}{
		{"trailing slash", "/tmp/sales.xlsx", "/sandbox/", "/sandbox/sales.xlsx"},
		{"bare directory", "/tmp/sales.xlsx", "/sandbox", "/sandbox/sales.xlsx"},
		{"explicit file", "/tmp/sales.xlsx", "/sandbox/data.xlsx", "/sandbox/data.xlsx"},
		{"nested directory", "data/report.csv", "/sandbox/in/", "/sandbox/in/report.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveRemotePath(tt.localPath, tt.remotePath); got != tt.want {
				t.Errorf("resolveRemotePath(%q, %q) = %q, want %q", tt.localPath, tt.remotePath, got, tt.want)
			}
		})
	}
}

func TestLangSpecsComplete(t *testing.T) {
	for lang, spec := range langSpecs {
		if spec.image == "" {
			t.Errorf("%s: missing image", lang)
		}
		if !strings.HasPrefix(spec.file, WorkDir+"/") {
			t.Errorf("%s: code file %q outside %s", lang, spec.file, WorkDir)
		}
		if cmd := spec.run(spec.file); len(cmd) == 0 {
			t.Errorf("%s: empty run command", lang)
		}
	}
}

// setupTestSession starts a real python container. Tests are skipped when
// Docker is not available.
func setupTestSession(t *testing.T) *Session {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping sandbox integration tests")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not found, skipping sandbox integration tests")
	}

	s, err := NewSession(context.Background(), "python")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSessionRun(t *testing.T) {
	s := setupTestSession(t)

	out, err := s.Run(context.Background(), "print(2 + 3)", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(out) != "5" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSessionRunCapturesErrors(t *testing.T) {
	s := setupTestSession(t)

	out, err := s.Run(context.Background(), "raise ValueError('boom')", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "ValueError") {
		t.Errorf("expected traceback in output, got %q", out)
	}
}

func TestSessionCopyRoundTrip(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(local, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.CopyToRuntime(ctx, local, WorkDir+"/"); err != nil {
		t.Fatalf("CopyToRuntime: %v", err)
	}

	out, err := s.Run(ctx, "print(open('/sandbox/input.csv').read())", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "a,b") {
		t.Errorf("staged file not visible, got %q", out)
	}

	back := filepath.Join(t.TempDir(), "out", "copy.csv")
	if err := s.CopyFromRuntime(ctx, WorkDir+"/input.csv", back); err != nil {
		t.Fatalf("CopyFromRuntime: %v", err)
	}
	data, err := os.ReadFile(back)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("round-tripped content mismatch: %q", data)
	}
}

func TestSessionCopyToRuntimeMissingLocal(t *testing.T) {
	s := &Session{}
	if err := s.CopyToRuntime(context.Background(), "/no/such/file.xlsx", WorkDir+"/"); err == nil {
		t.Fatal("expected error for missing local file")
	}
}
