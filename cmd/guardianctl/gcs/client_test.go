// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// NewClient Tests
// ============================================================================

func TestNewClient_MissingKeyFile(t *testing.T) {
	for _, keyPath := range []string{"/no/such/key.json", ""} {
		_, err := NewClient(context.Background(), "proj", "bucket", keyPath)
		if err == nil {
			t.Fatalf("NewClient(key=%q) succeeded, want key error", keyPath)
		}
		if !strings.Contains(err.Error(), "service account key") {
			t.Errorf("error %v does not point at the key file", err)
		}
	}
}

func TestNewClient_BadCredentials(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(keyPath, []byte("not a credentials blob"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewClient(context.Background(), "proj", "bucket", keyPath)
	if err == nil {
		t.Fatal("NewClient accepted garbage credentials")
	}
	if !strings.Contains(err.Error(), "create storage client") {
		t.Errorf("error %v should come from client construction", err)
	}
}

func TestNewClient_KeyIsDirectory(t *testing.T) {
	// A directory passes the stat check but cannot be read as credentials.
	if _, err := NewClient(context.Background(), "proj", "bucket", t.TempDir()); err == nil {
		t.Fatal("NewClient accepted a directory as a key file")
	}
}

func TestNewClient_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The key file check runs before any dialing, so the reported failure
	// is about the key, not the context.
	_, err := NewClient(ctx, "proj", "bucket", "/no/such/key.json")
	if err == nil {
		t.Fatal("NewClient succeeded with a missing key")
	}
	if !strings.Contains(err.Error(), "service account key") {
		t.Errorf("error %v should be about the key file", err)
	}
}

// ============================================================================
// Upload Tests (local failure paths, no GCS connection)
// ============================================================================

func TestUploadFile_MissingSource(t *testing.T) {
	client := &Client{Bucket: "bucket"}

	err := client.UploadFile(context.Background(), "/no/such/audit.log", "archives/audit.log")
	if err == nil {
		t.Fatal("UploadFile succeeded with a missing source file")
	}
	if !strings.Contains(err.Error(), "read archive source") {
		t.Errorf("error %v should come from opening the source", err)
	}
	if !strings.Contains(err.Error(), "/no/such/audit.log") {
		t.Errorf("error %v should name the source path", err)
	}
}

func TestUploadDir_BadRoot(t *testing.T) {
	client := &Client{Bucket: "bucket"}

	for _, root := range []string{"/no/such/dir", ""} {
		if err := client.UploadDir(context.Background(), root, "archives"); err == nil {
			t.Errorf("UploadDir(%q) succeeded, want walk error", root)
		}
	}
}

func TestClient_Close_WithoutStorageClient(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close on an unconnected client: %v", err)
	}
}

// ============================================================================
// Integration Tests (need real credentials, skipped otherwise)
// ============================================================================

// integrationClient builds a real client from the GCS_TEST_* variables or
// skips the test when they are absent.
func integrationClient(t *testing.T) *Client {
	t.Helper()
	keyPath := os.Getenv("GCS_TEST_SA_KEY_PATH")
	project := os.Getenv("GCS_TEST_PROJECT_ID")
	bucket := os.Getenv("GCS_TEST_BUCKET_NAME")
	if keyPath == "" || project == "" || bucket == "" {
		t.Skip("set GCS_TEST_SA_KEY_PATH, GCS_TEST_PROJECT_ID, GCS_TEST_BUCKET_NAME to run")
	}

	client, err := NewClient(context.Background(), project, bucket, keyPath)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if client.ProjectID != project || client.Bucket != bucket {
		t.Fatalf("client bound to %s/%s, want %s/%s", client.ProjectID, client.Bucket, project, bucket)
	}
	return client
}

func TestIntegration_UploadFile(t *testing.T) {
	client := integrationClient(t)

	src := filepath.Join(t.TempDir(), "audit.log")
	content := "SAFE | STATUS=SAFE | HASH=deadbeefdeadbeef | TIME=1.00\nTOKEN_COUNTER=8 (+8)\n"
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := client.UploadFile(context.Background(), src, "test/integration_audit.log"); err != nil {
		t.Errorf("UploadFile: %v", err)
	}
}

func TestIntegration_UploadDir(t *testing.T) {
	client := integrationClient(t)

	// Nested layout mirrors a rotated audit directory.
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "rotated"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []struct {
		path, content string
	}{
		{filepath.Join(root, "audit.log"), "line 1\n"},
		{filepath.Join(root, "rotated", "audit.log.1"), "line 2\n"},
	} {
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := client.UploadDir(context.Background(), root, "test/integration_dir_upload"); err != nil {
		t.Errorf("UploadDir: %v", err)
	}
}
