// Package blob re-exports core blob abstractions and selects a backend driver
// from the environment.
package blob

import (
	"context"

	"shelfstock/internal/blob/core"
	fsstore "shelfstock/internal/infra/blob/fs"
	memorystore "shelfstock/internal/infra/blob/memory"
	infraS3 "shelfstock/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation isn't supported by a driver.
var ErrUnsupported = core.ErrUnsupported

// NewFilesystem returns a filesystem blob store rooted at path.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// NewMemory returns an in-memory blob store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// S3Config holds explicit S3 construction parameters.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed blob store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests exposes the lightweight in-memory S3 mock for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
