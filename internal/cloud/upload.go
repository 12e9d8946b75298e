package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/rmcloud-upload/internal/archive"
)

// Document-storage endpoint paths.
const (
	pathUploadRequest = "/document-storage/json/2/upload/request"
	pathUpdateStatus  = "/document-storage/json/2/upload/update-status"
)

// maxUploadResponse bounds the upload-request response body.
const maxUploadResponse = 1 << 20

// UploadOptions tunes a single upload. All fields are optional.
type UploadOptions struct {
	// DocumentID is generated (UUID v4) when empty.
	DocumentID string
	// VisibleName defaults to the base name of the uploaded file.
	VisibleName string
	// DebugBundlePath receives a copy of the bundle when debug logging is on.
	DebugBundlePath string
}

// UploadFile uploads the file at path as a new document and returns its
// document ID. The sequence is: ensure a session token, reserve a slot
// (re-exchanging the token once on 401), put the bundle to the blob URL,
// then commit the visible name. The name commit is fire-and-forget: a
// refused commit is logged and the document ID is still returned.
func (c *Client) UploadFile(ctx context.Context, path string, opts UploadOptions) (string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		c.logger.Error("file not found", slog.String("path", path))
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	documentID := opts.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	logger := c.logger.With(slog.String("document_id", documentID))
	defer c.clearAuth()

	if !c.HasSessionToken() {
		ok, err := c.ObtainUserToken(ctx)
		if err != nil {
			return "", err
		}

		if !ok {
			return "", ErrAuthFailed
		}
	}

	logger.Info("requesting upload slot", slog.String("path", path))

	blobURL, err := c.requestUpload(ctx, documentID, logger)
	c.clearAuth()

	if err != nil {
		return "", err
	}

	bundle, err := archive.BuildFromFile(documentID, path)
	if err != nil {
		return "", fmt.Errorf("cloud: building document bundle: %w", err)
	}

	c.writeDebugBundle(ctx, opts.DebugBundlePath, bundle, logger)

	if err := c.putBlob(ctx, blobURL, bundle, logger); err != nil {
		return "", err
	}

	name := opts.VisibleName
	if name == "" {
		name = filepath.Base(path)
	}

	logger.Info("document uploaded, setting visible name")

	if err := c.SetNameForUUID(ctx, documentID, name, documentVersion); err != nil {
		return "", err
	}

	return documentID, nil
}

// requestUpload reserves a storage slot and returns its blob URL. A 401 on
// the first attempt triggers one token re-exchange and exactly one retry.
func (c *Client) requestUpload(ctx context.Context, documentID string, logger *slog.Logger) (string, error) {
	body, err := json.Marshal([]uploadRequest{{ID: documentID, Version: documentVersion}})
	if err != nil {
		return "", fmt.Errorf("cloud: encoding upload request: %w", err)
	}

	url := c.storageURL + pathUploadRequest

	c.setAuth(authSession)

	resp, err := c.do(ctx, http.MethodPut, url, body, "application/json")
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		logger.Warn("session token rejected, obtaining a new one")

		ok, err := c.ObtainUserToken(ctx)
		if err != nil {
			return "", err
		}

		if !ok {
			return "", ErrAuthFailed
		}

		c.setAuth(authSession)

		resp, err = c.do(ctx, http.MethodPut, url, body, "application/json")
		if err != nil {
			return "", err
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", &StatusError{Op: "upload request", StatusCode: resp.StatusCode, Body: readErrorBody(resp), Err: ErrUnauthorized}
	default:
		return "", &StatusError{Op: "upload request", StatusCode: resp.StatusCode, Body: readErrorBody(resp), Err: ErrUploadRejected}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadResponse))
	if err != nil {
		return "", c.classifyBodyError(ctx, "upload response", err)
	}

	r, shape, err := decodeUploadResponse(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadRejected, err)
	}

	logger.Info("upload request answered",
		slog.Bool("success", r.Success),
		slog.String("shape", shape.String()),
	)

	if !r.Success {
		return "", fmt.Errorf("%w: %s", ErrUploadRejected, orDefault(r.Message, "success flag not set"))
	}

	if r.BlobURLPut == "" {
		return "", fmt.Errorf("%w: response has no blob URL", ErrUploadRejected)
	}

	return r.BlobURLPut, nil
}

// putBlob uploads the raw bundle to the pre-signed blob URL. The URL carries
// its own authorization, so no credential is attached.
func (c *Client) putBlob(ctx context.Context, blobURL string, bundle []byte, logger *slog.Logger) error {
	if c.auth != authNone {
		return errors.New("cloud: blob upload with credentials attached")
	}

	logger.Debug("uploading document bundle", slog.Int("size", len(bundle)))

	resp, err := c.do(ctx, http.MethodPut, blobURL, bundle, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "blob upload", StatusCode: resp.StatusCode, Body: readErrorBody(resp), Err: ErrBlobRejected}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// SetNameForUUID commits visibleName for an uploaded document. The backend's
// answer is only logged; a refused or timed-out commit is not reported to
// the caller. Only transport faults are returned.
func (c *Client) SetNameForUUID(ctx context.Context, documentID, visibleName string, version int) error {
	logger := c.logger.With(slog.String("document_id", documentID))

	if !c.HasSessionToken() {
		ok, err := c.ObtainUserToken(ctx)
		if err != nil {
			return err
		}

		if !ok {
			logger.Warn("cannot set visible name without a session token")
			return nil
		}
	}

	visibleName = norm.NFC.String(visibleName)

	body, err := json.Marshal([]updateStatusRequest{{
		ID:          documentID,
		Type:        DocumentType,
		Version:     version,
		VisibleName: visibleName,
	}})
	if err != nil {
		return fmt.Errorf("cloud: encoding update-status request: %w", err)
	}

	c.setAuth(authSession)
	resp, err := c.do(ctx, http.MethodPut, c.storageURL+pathUpdateStatus, body, "application/json")
	c.clearAuth()

	if err != nil {
		if errors.Is(err, ErrTimeout) {
			logger.Warn("setting visible name timed out", slog.String("name", visibleName))
			return nil
		}

		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("setting visible name failed",
			slog.String("name", visibleName),
			slog.Int("status", resp.StatusCode),
			slog.String("body", readErrorBody(resp)),
		)

		return nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	logger.Info("document named", slog.String("name", visibleName))

	return nil
}

// writeDebugBundle keeps a copy of the bundle for inspection when debug
// logging is enabled. Failures are logged only.
func (c *Client) writeDebugBundle(ctx context.Context, path string, bundle []byte, logger *slog.Logger) {
	if path == "" || !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.Debug("creating debug bundle directory failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	if err := os.WriteFile(path, bundle, 0o600); err != nil {
		logger.Debug("writing debug bundle failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	logger.Debug("wrote debug bundle", slog.String("path", path))
}
