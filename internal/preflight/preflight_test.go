package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDirectoryAccess("Data directory", dir); !result.Passed {
		t.Fatalf("writable directory failed: %s", result.Detail)
	}
	if result := CheckDirectoryAccess("Data directory", filepath.Join(dir, "missing")); result.Passed {
		t.Fatal("missing directory must fail")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("Data directory", file); result.Passed {
		t.Fatal("regular file must fail")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	if result := CheckDiskSpace(t.TempDir()); !result.Passed {
		t.Skipf("test filesystem nearly full: %s", result.Detail)
	}
}

func TestCheckEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	// Any HTTP answer counts as reachable.
	if result := CheckEndpoint(context.Background(), "Geocode service", server.URL); !result.Passed {
		t.Fatalf("answering endpoint failed: %s", result.Detail)
	}

	server.Close()
	if result := CheckEndpoint(context.Background(), "Geocode service", server.URL); result.Passed {
		t.Fatal("closed endpoint must fail")
	}
}
