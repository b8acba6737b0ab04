package slogutil

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFile_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")

	rf, err := OpenRotatingFile(path, 50, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}

	line := []byte(strings.Repeat("a", 29) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := rf.Write(line); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should exist: %v", filepath.Base(p), err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("only two backups should be kept")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != len(line) {
		t.Errorf("current file holds %d bytes, want %d", len(data), len(line))
	}
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	rf, err := OpenRotatingFile(filepath.Join(t.TempDir(), "x.log"), 0, 0)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	_ = rf.Close()

	if _, err := rf.Write([]byte("late")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestRotatingFile_ReopenAfterFailedRotation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	path := filepath.Join(dir, "burrow.log")

	rf, err := OpenRotatingFile(path, 10, 0)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	defer rf.Close()

	if _, err := rf.Write([]byte("first\n")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	// a regular file where the log directory was makes the rollover fail
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := rf.Write([]byte("second\n")); err == nil {
		t.Fatal("Write should fail while the directory is unusable")
	}

	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := rf.Write([]byte("third\n")); err != nil {
		t.Fatalf("Write after the directory came back failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "third\n" {
		t.Errorf("log holds %q, want %q", data, "third\n")
	}
}

func TestOpen(t *testing.T) {
	t.Run("human to writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := Open(Options{Level: "warn", Stderr: &buf})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if closer != nil {
			t.Error("closer should be nil without a file")
		}
		logger.Info("hidden")
		logger.Warn("shown")
		if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "[warn] shown") {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("level value overrides", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _, err := Open(Options{Level: "error", LevelValue: slog.LevelDebug, Stderr: &buf})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		logger.Debug("verbose")
		if !strings.Contains(buf.String(), "[debug] verbose") {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("file tees warnings to stderr", func(t *testing.T) {
		var stderr bytes.Buffer
		path := filepath.Join(t.TempDir(), "burrow.log")
		logger, closer, err := Open(Options{Level: "info", File: path, Stderr: &stderr})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		logger.Info("routine")
		logger.Warn("trouble", "path", "/x")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if !strings.Contains(string(data), "[info] routine") || !strings.Contains(string(data), "[warn] trouble") {
			t.Errorf("file output: %q", data)
		}
		if strings.Contains(stderr.String(), "routine") || !strings.Contains(stderr.String(), "[warn] trouble | path=/x") {
			t.Errorf("stderr output: %q", stderr.String())
		}
	})

	t.Run("quiet file logger keeps stderr empty", func(t *testing.T) {
		var stderr bytes.Buffer
		path := filepath.Join(t.TempDir(), "burrow.log")
		logger, closer, err := Open(Options{LevelValue: LevelFromVerbosity(0, true), File: path, Stderr: &stderr})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer closer.Close()
		logger.Error("nothing")
		if stderr.Len() != 0 {
			t.Errorf("stderr output: %q", stderr.String())
		}
	})

	t.Run("json to rotating file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "burrow.log")
		logger, closer, err := Open(Options{Format: "json", Level: "debug", File: path, MaxSize: 1 << 20, MaxBackups: 1})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		logger.Debug("dispatch", "path", "/x")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if !strings.Contains(string(data), `"msg":"dispatch"`) {
			t.Errorf("expected JSON record, got %q", data)
		}
	})
}
