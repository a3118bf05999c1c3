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
	"path/filepath"
	"strings"
)

// ProtocolVersion is the LocalSend wire-protocol version this package
// speaks.
const ProtocolVersion = "2.0"

// DeviceInfo is the self-description every LocalSend node sends in
// multicast announcements, mDNS TXT records, and the /info endpoint.
type DeviceInfo struct {
	Alias       string `json:"alias"`
	Version     string `json:"version"`
	DeviceModel string `json:"deviceModel,omitempty"`
	DeviceType  string `json:"deviceType,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Port        int    `json:"port"`
	Protocol    string `json:"protocol"`
	Download    bool   `json:"download"`
}

// MulticastDto is the UDP multicast discovery payload. It carries both the
// v1 "announcement" field and the v2 "announce" field so older LocalSend
// clients on the same multicast group still recognize us.
type MulticastDto struct {
	Alias        string `json:"alias"`
	Version      string `json:"version"`
	DeviceModel  string `json:"deviceModel,omitempty"`
	DeviceType   string `json:"deviceType,omitempty"`
	Fingerprint  string `json:"fingerprint"`
	Port         int    `json:"port"`
	Protocol     string `json:"protocol"`
	Download     bool   `json:"download"`
	Announcement bool   `json:"announcement"`
	Announce     bool   `json:"announce"`
}

// FileDto describes one file in a PrepareUploadRequest.
type FileDto struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	FileType string `json:"fileType"`
	Sha256   string `json:"sha256,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

// PrepareUploadRequest is POSTed to /api/localsend/v2/prepare-upload.
type PrepareUploadRequest struct {
	Info  DeviceInfo         `json:"info"`
	Files map[string]FileDto `json:"files"` // keyed by FileDto.ID
}

// PrepareUploadResponse answers a PrepareUploadRequest with one upload
// token per accepted file and the session identifier that scopes them.
type PrepareUploadResponse struct {
	SessionID string            `json:"sessionId"`
	Files     map[string]string `json:"files"` // fileID -> token
}

// guessMimeType maps a filename extension to a MIME type, mirroring the
// small fixed table LocalSend clients use rather than pulling in a content
// sniffing dependency for a handful of common cases.
func guessMimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".zip":
		return "application/zip"
	case ".tar":
		return "application/x-tar"
	case ".gz":
		return "application/gzip"
	case ".html", ".htm":
		return "text/html"
	case ".csv":
		return "text/csv"
	case ".doc", ".docx":
		return "application/msword"
	default:
		return "application/octet-stream"
	}
}
