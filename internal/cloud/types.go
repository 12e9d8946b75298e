package cloud

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DocumentType is the storage type of an uploaded document.
const DocumentType = "DocumentType"

// documentVersion is the only version this uploader ever creates.
const documentVersion = 1

// uploadRequest reserves a storage slot for one document.
type uploadRequest struct {
	ID      string `json:"ID"`      //nolint:tagliatelle // backend field names
	Version int    `json:"Version"` //nolint:tagliatelle // backend field names
}

// updateStatusRequest commits the visible name of an uploaded document.
type updateStatusRequest struct {
	ID          string `json:"ID"`          //nolint:tagliatelle // backend field names
	Type        string `json:"Type"`        //nolint:tagliatelle // backend field names
	Version     int    `json:"Version"`     //nolint:tagliatelle // backend field names
	VisibleName string `json:"VisibleName"` //nolint:tagliatelle // backend field names
}

// uploadResponse is the normalized upload-request reply.
type uploadResponse struct {
	ID                string `json:"ID"`                //nolint:tagliatelle // backend field names
	Version           int    `json:"Version"`           //nolint:tagliatelle // backend field names
	Message           string `json:"Message"`           //nolint:tagliatelle // backend field names
	Success           bool   `json:"Success"`           //nolint:tagliatelle // backend field names
	BlobURLPut        string `json:"BlobURLPut"`        //nolint:tagliatelle // backend field names
	BlobURLPutExpires string `json:"BlobURLPutExpires"` //nolint:tagliatelle // backend field names
}

// responseShape is how the backend encoded an upload-request reply.
type responseShape int

const (
	shapeObject responseShape = iota
	shapeArray
)

func (s responseShape) String() string {
	if s == shapeArray {
		return "array"
	}

	return "object"
}

// decodeUploadResponse accepts either a bare object or a one-element array
// and normalizes both to a single uploadResponse.
func decodeUploadResponse(data []byte) (uploadResponse, responseShape, error) {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []uploadResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return uploadResponse{}, shapeArray, fmt.Errorf("decoding upload response: %w", err)
		}

		if len(list) != 1 {
			return uploadResponse{}, shapeArray, fmt.Errorf("decoding upload response: expected 1 element, got %d", len(list))
		}

		return list[0], shapeArray, nil
	}

	var r uploadResponse
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return uploadResponse{}, shapeObject, fmt.Errorf("decoding upload response: %w", err)
	}

	return r, shapeObject, nil
}
