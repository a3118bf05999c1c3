/*
Copyright 2026 The UniDrop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package localsend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Marandi269/unidrop/core"
)

// httpClient pushes files to a remote LocalSend device's REST surface.
// LocalSend's trust model is trust-on-first-use over a self-signed cert
// pinned by its fingerprint rather than a CA chain, so the client skips
// normal certificate-chain verification the same way every LocalSend
// implementation does.
type httpClient struct {
	info DeviceInfo
	pin  string
	hc   *http.Client
}

func newHTTPClient(info DeviceInfo, pin string) *httpClient {
	return &httpClient{
		info: info,
		pin:  pin,
		hc: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (c *httpClient) baseURL(dev core.Device) string {
	return fmt.Sprintf("https://%s:%d%s", dev.Address, dev.Port, apiBase)
}

func (c *httpClient) send(ctx context.Context, dev core.Device, files []core.FileInfo) (string, error) {
	req := PrepareUploadRequest{Info: c.info, Files: make(map[string]FileDto, len(files))}
	for _, f := range files {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		req.Files[id] = FileDto{ID: id, FileName: f.Name, Size: f.Size, FileType: guessMimeType(f.Name)}
	}

	url := c.baseURL(dev) + "/prepare-upload"
	if c.pin != "" {
		url += "?pin=" + c.pin
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", core.NewInternalError("marshal prepare-upload: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", core.WrapNetwork(err, "build prepare-upload request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", core.WrapNetwork(err, "prepare-upload")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return "", core.NewRejectedError("invalid pin")
	}
	if resp.StatusCode != http.StatusOK {
		return "", core.NewNetworkError("prepare-upload returned %d", resp.StatusCode)
	}

	var prep PrepareUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&prep); err != nil {
		return "", core.NewInternalError("decode prepare-upload response: %v", err)
	}

	for id, f := range req.Files {
		token, ok := prep.Files[id]
		if !ok {
			continue // remote declined this particular file
		}
		if err := c.uploadFile(ctx, dev, prep.SessionID, id, token, f, files); err != nil {
			return prep.SessionID, err
		}
	}
	return prep.SessionID, nil
}

func (c *httpClient) uploadFile(ctx context.Context, dev core.Device, sessionID, fileID, token string, meta FileDto, files []core.FileInfo) error {
	var path string
	for _, f := range files {
		if f.Name == meta.FileName {
			path = f.Path
			break
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return core.NewFileNotFoundError(path)
	}
	defer f.Close()

	url := fmt.Sprintf("%s/upload?sessionId=%s&fileId=%s&token=%s", c.baseURL(dev), sessionID, fileID, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, f)
	if err != nil {
		return core.WrapNetwork(err, "build upload request")
	}
	httpReq.ContentLength = meta.Size
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return core.WrapNetwork(err, "upload %s", meta.FileName)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return core.NewTransferFailedError("upload %s returned %d", meta.FileName, resp.StatusCode)
	}
	return nil
}

func (c *httpClient) cancel(ctx context.Context, dev core.Device, sessionID string) error {
	url := fmt.Sprintf("%s/cancel?sessionId=%s", c.baseURL(dev), sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return core.WrapNetwork(err, "build cancel request")
	}
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return core.WrapNetwork(err, "cancel")
	}
	defer resp.Body.Close()
	return nil
}
