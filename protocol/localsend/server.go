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
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Marandi269/unidrop/core"
)

const apiBase = "/api/localsend/v2"

// uploadSession tracks the per-file tokens issued by prepare-upload and the
// bytes received so far for each.
type uploadSession struct {
	id       string
	fromName string
	fromAddr string
	files    map[string]FileDto // fileID -> metadata
	tokens   map[string]string  // fileID -> token
	received map[string]int64   // fileID -> bytes written
}

// httpServer is the HTTPS REST surface LocalSend peers use to push files to
// us. It owns no discovery state; multicastDiscovery/mdnsDiscovery feed the
// engine independently.
type httpServer struct {
	log      *slog.Logger
	certInfo *CertInfo
	info     DeviceInfo
	saveDir  string
	pin      string
	onEvent  func(core.Event)

	srv *http.Server

	mu       sync.Mutex
	sessions map[string]*uploadSession
}

func newHTTPServer(log *slog.Logger, certInfo *CertInfo, info DeviceInfo, saveDir, pin string, onEvent func(core.Event)) *httpServer {
	return &httpServer{
		log:      log.With("component", "https"),
		certInfo: certInfo,
		info:     info,
		saveDir:  saveDir,
		pin:      pin,
		onEvent:  onEvent,
		sessions: make(map[string]*uploadSession),
	}
}

func (h *httpServer) start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiBase+"/info", h.handleInfo)
	mux.HandleFunc("POST "+apiBase+"/register", h.handleRegister)
	mux.HandleFunc("POST "+apiBase+"/prepare-upload", h.handlePrepareUpload)
	mux.HandleFunc("POST "+apiBase+"/upload", h.handleUpload)
	mux.HandleFunc("POST "+apiBase+"/cancel", h.handleCancel)

	h.srv = &http.Server{
		Addr:      fmt.Sprintf(":%d", port),
		Handler:   mux,
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{h.certInfo.Cert}},
	}

	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return core.WrapNetwork(err, "listen https")
	}
	tlsLn := tls.NewListener(ln, h.srv.TLSConfig)

	go func() {
		if err := h.srv.Serve(tlsLn); err != nil && err != http.ErrServerClosed {
			h.log.Error("https server exited", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.srv.Shutdown(shutdownCtx)
	}()
	return nil
}

func (h *httpServer) stop(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	return h.srv.Shutdown(ctx)
}

func (h *httpServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}

func (h *httpServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var info DeviceInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	dev := core.Device{
		ID:          core.NewDeviceID(core.ProtocolLocalSend, deviceIDFromFingerprint(info.Fingerprint)),
		Name:        info.Alias,
		DeviceType:  core.DeviceType(info.DeviceType),
		Address:     hostOnly(r.RemoteAddr),
		Port:        info.Port,
		Fingerprint: info.Fingerprint,
	}
	h.onEvent(core.NewDeviceFoundEvent(core.ProtocolLocalSend, dev))
	writeJSON(w, http.StatusOK, h.info)
}

func (h *httpServer) handlePrepareUpload(w http.ResponseWriter, r *http.Request) {
	if h.pin != "" && r.URL.Query().Get("pin") != h.pin {
		http.Error(w, "invalid pin", http.StatusUnauthorized)
		return
	}

	var req PrepareUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sessionID := uuid.NewString()
	sess := &uploadSession{
		id:       sessionID,
		fromName: req.Info.Alias,
		fromAddr: hostOnly(r.RemoteAddr),
		files:    req.Files,
		tokens:   make(map[string]string, len(req.Files)),
		received: make(map[string]int64, len(req.Files)),
	}

	transferReq := core.TransferRequest{
		ID:       sessionID,
		From:     core.NewDeviceID(core.ProtocolLocalSend, deviceIDFromFingerprint(req.Info.Fingerprint)),
		FromName: req.Info.Alias,
		Received: time.Now(),
	}

	resp := PrepareUploadResponse{SessionID: sessionID, Files: make(map[string]string, len(req.Files))}
	for id, f := range req.Files {
		token := uuid.NewString()
		sess.tokens[id] = token
		resp.Files[id] = token
		transferReq.Files = append(transferReq.Files, core.FileInfo{ID: id, Name: f.FileName, Size: f.Size})
	}
	transferReq.TotalSize = core.SumFileSizes(transferReq.Files)

	h.mu.Lock()
	h.sessions[sessionID] = sess
	h.mu.Unlock()

	h.onEvent(core.NewTransferRequestEvent(core.ProtocolLocalSend, transferReq))
	writeJSON(w, http.StatusOK, resp)
}

func (h *httpServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	fileID := r.URL.Query().Get("fileId")
	token := r.URL.Query().Get("token")

	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusForbidden)
		return
	}
	if sess.tokens[fileID] != token || token == "" {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	meta := sess.files[fileID]
	dest := filepath.Join(h.saveDir, filepath.Base(meta.FileName))
	out, err := os.Create(dest)
	if err != nil {
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	n, err := io.Copy(out, r.Body)
	if err != nil {
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	sess.received[fileID] = n
	done := len(sess.received) == len(sess.files)
	h.mu.Unlock()

	progress := core.TransferProgress{
		SessionID:  sessionID,
		State:      core.TransferStateInProgress,
		BytesSent:  n,
		BytesTotal: meta.Size,
	}
	if done {
		progress.State = core.TransferStateCompleted
	}
	h.onEvent(core.NewTransferProgressEvent(core.ProtocolLocalSend, progress))
	w.WriteHeader(http.StatusOK)
}

func (h *httpServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	h.onEvent(core.NewTransferProgressEvent(core.ProtocolLocalSend, core.TransferProgress{
		SessionID: sessionID,
		State:     core.TransferStateCancelled,
	}))
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func hostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
