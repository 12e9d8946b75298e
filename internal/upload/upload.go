// Package upload runs one upload attempt end to end: it checks the local
// file, looks up the device credential, drives the cloud client and records
// the outcome in the local history.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/rmcloud-upload/internal/cloud"
	"github.com/tonimelisma/rmcloud-upload/internal/config"
	"github.com/tonimelisma/rmcloud-upload/internal/ledger"
)

// ErrFileNotFound is returned when the path is not an existing regular file.
// It matches cloud.ErrFileNotFound.
var ErrFileNotFound = cloud.ErrFileNotFound

// ErrUploadFailed wraps every protocol failure reported by the cloud client.
var ErrUploadFailed = errors.New("upload: upload failed")

// CredentialSource resolves a device name to its stored credential.
// Implemented by *config.Store.
type CredentialSource interface {
	Credential(deviceName string) (config.DeviceCredential, error)
}

// Client is the part of the cloud client the orchestrator uses.
// Implemented by *cloud.Client.
type Client interface {
	UploadFile(ctx context.Context, path string, opts cloud.UploadOptions) (string, error)
}

// ClientFactory builds a cloud client for one device credential.
type ClientFactory func(cred config.DeviceCredential) Client

// Recorder persists upload attempts. Implemented by *ledger.Ledger.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
}

// Request describes one upload.
type Request struct {
	Device      string // empty selects the configured default
	Path        string
	VisibleName string // empty uses the file's base name

	// DebugBundlePath receives a copy of the document bundle when debug
	// logging is enabled.
	DebugBundlePath string
}

// Result describes a completed upload.
type Result struct {
	DocumentID  string `json:"document_id"`
	Device      string `json:"device"`
	Path        string `json:"path"`
	VisibleName string `json:"visible_name"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// Uploader wires the credential source, client factory and optional
// recorder together.
type Uploader struct {
	creds     CredentialSource
	newClient ClientFactory
	recorder  Recorder
	logger    *slog.Logger
	nowFunc   func() time.Time
	newID     func() string
}

// NewUploader creates an Uploader. recorder may be nil to skip history.
func NewUploader(creds CredentialSource, newClient ClientFactory, recorder Recorder, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{
		creds:     creds,
		newClient: newClient,
		recorder:  recorder,
		logger:    logger,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Run uploads req.Path. Errors are classified as ErrFileNotFound,
// config.ErrNotConfigured or ErrUploadFailed; anything else is a transport
// or local fault.
func (u *Uploader) Run(ctx context.Context, req Request) (Result, error) {
	info, err := os.Stat(req.Path)
	if err != nil || !info.Mode().IsRegular() {
		u.logger.Error("file not found", slog.String("path", req.Path))
		return Result{}, fmt.Errorf("%w: %s", ErrFileNotFound, req.Path)
	}

	cred, err := u.creds.Credential(req.Device)
	if err != nil {
		return Result{}, err
	}

	digest, err := hashFile(req.Path)
	if err != nil {
		return Result{}, err
	}

	name := req.VisibleName
	if name == "" {
		name = filepath.Base(req.Path)
	}

	res := Result{
		Device:      cred.Name,
		Path:        req.Path,
		VisibleName: norm.NFC.String(name),
		Size:        info.Size(),
		SHA256:      digest,
	}

	logger := u.logger.With(slog.String("device", cred.Name), slog.String("path", req.Path))
	logger.Info("starting upload", slog.Int64("size", res.Size))

	started := u.nowFunc()

	// The ID is chosen here so a failed attempt's history row still names
	// the slot it may have reserved.
	res.DocumentID = u.newID()

	documentID, err := u.newClient(cred).UploadFile(ctx, req.Path, cloud.UploadOptions{
		DocumentID:      res.DocumentID,
		VisibleName:     res.VisibleName,
		DebugBundlePath: req.DebugBundlePath,
	})
	if documentID != "" {
		res.DocumentID = documentID
	}

	err = classify(err)

	u.record(ctx, res, started, err, logger)

	if err != nil {
		return Result{}, err
	}

	logger.Info("upload complete", slog.String("document_id", res.DocumentID))

	return res, nil
}

// classify maps client errors onto the orchestrator's error classes.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cloud.ErrFileNotFound):
		return err
	case errors.Is(err, cloud.ErrProtocol):
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	default:
		return err
	}
}

// record writes the attempt to the history. Failures are logged only.
func (u *Uploader) record(ctx context.Context, res Result, started time.Time, uploadErr error, logger *slog.Logger) {
	if u.recorder == nil {
		return
	}

	entry := ledger.Entry{
		DocumentID:  res.DocumentID,
		Device:      res.Device,
		LocalPath:   res.Path,
		VisibleName: res.VisibleName,
		Size:        res.Size,
		SHA256:      res.SHA256,
		Status:      ledger.StatusUploaded,
		StartedAt:   started,
		FinishedAt:  u.nowFunc(),
	}

	if uploadErr != nil {
		entry.Status = ledger.StatusFailed
		entry.Error = uploadErr.Error()
	}

	// A canceled run still gets its history row.
	if _, err := u.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("could not record upload in history", slog.String("error", err.Error()))
	}
}

// hashFile returns the hex SHA-256 of the file at path.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("upload: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
