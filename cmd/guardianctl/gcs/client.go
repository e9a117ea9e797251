// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gcs uploads guardian audit archives to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Client wraps a GCS storage client bound to one bucket.
type Client struct {
	gc        *storage.Client
	ProjectID string
	Bucket    string
}

// NewClient authenticates with a service account key file and returns a
// client bound to the given bucket. The key file is checked up front so a
// bad --key-file flag fails before any network traffic.
func NewClient(ctx context.Context, projectID, bucket, keyFile string) (*Client, error) {
	if _, err := os.Stat(keyFile); err != nil {
		return nil, fmt.Errorf("service account key %q is not readable: %w", keyFile, err)
	}

	gc, err := storage.NewClient(ctx, option.WithCredentialsFile(keyFile))
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Client{gc: gc, ProjectID: projectID, Bucket: bucket}, nil
}

// UploadFile copies one local file to the given object path in the bucket.
// Audit archives must never be served stale, so caching is disabled on the
// object.
func (c *Client) UploadFile(ctx context.Context, srcPath, objectPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("read archive source %s: %w", srcPath, err)
	}
	defer src.Close()

	w := c.gc.Bucket(c.Bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("upload %s to gs://%s/%s: %w", srcPath, c.Bucket, objectPath, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", c.Bucket, objectPath, err)
	}
	return nil
}

// UploadDir uploads every regular file under localDir, preserving the
// directory structure relative to localDir beneath the given prefix.
func (c *Client) UploadDir(ctx context.Context, localDir, prefix string) error {
	return filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		return c.UploadFile(ctx, path, prefix+"/"+filepath.ToSlash(rel))
	})
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	if c.gc == nil {
		return nil
	}
	return c.gc.Close()
}
