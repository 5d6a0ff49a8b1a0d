package resource

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(path, []byte("||ads.example^\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	b, err := LoadLocal(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "||ads.example^\n" {
		t.Errorf("got %q", b)
	}
}

func TestLoadLocal_MissingFile(t *testing.T) {
	if _, err := LoadLocal("/nonexistent/path/list.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

type fakeClient struct {
	status int
	body   []byte
	err    error
}

func (f fakeClient) Get(url string) (int, []byte, error) { return f.status, f.body, f.err }

func TestLoadRemote_OK(t *testing.T) {
	c := fakeClient{status: 200, body: []byte("payload")}
	b, err := LoadRemote(c, "https://example.com/list.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "payload" {
		t.Errorf("got %q", b)
	}
}

func TestLoadRemote_NonOKStatus(t *testing.T) {
	c := fakeClient{status: 404, body: nil}
	if _, err := LoadRemote(c, "https://example.com/missing"); err == nil {
		t.Fatal("expected error for 404 status")
	}
}

func TestLoadRemote_EmptyBody(t *testing.T) {
	c := fakeClient{status: 200, body: nil}
	if _, err := LoadRemote(c, "https://example.com/empty"); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("https://example.com/x") {
		t.Error("expected https:// to be remote")
	}
	if IsRemote("/etc/hosts") {
		t.Error("did not expect local path to be remote")
	}
}
