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

package core

import "time"

// FileInfo describes one file within a transfer, on either side of the
// wire. Preview and Hash are carried for forward compatibility with
// protocols that want to populate them; the engine never sets them itself.
type FileInfo struct {
	ID      string
	Name    string
	Size    int64
	Path    string // local filesystem path, sender side only
	Preview []byte
	Hash    string
}

// TransferIntent is what a caller passes to Protocol.Send: the target
// device and the files to ship.
type TransferIntent struct {
	Target DeviceID
	Files  []FileInfo
}

// TransferRequest is what a protocol hands the engine when a remote peer
// wants to push files to the local device.
type TransferRequest struct {
	ID        string
	From      DeviceID
	FromName  string
	Files     []FileInfo
	TotalSize int64
	Received  time.Time
}

// SumFileSizes adds up Size across files. Every TransferRequest constructor
// uses it to populate TotalSize, keeping the invariant
// TotalSize == Σ Files[i].Size true by construction rather than by
// convention.
func SumFileSizes(files []FileInfo) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// TransferState is the lifecycle stage of an in-flight transfer.
type TransferState string

const (
	TransferStatePending    TransferState = "pending"
	TransferStateInProgress TransferState = "in_progress"
	TransferStateCompleted  TransferState = "completed"
	TransferStateFailed     TransferState = "failed"
	TransferStateCancelled  TransferState = "cancelled"
	TransferStateRejected   TransferState = "rejected"
)

// TransferProgress reports the current byte/file counters for one transfer.
type TransferProgress struct {
	SessionID    string
	State        TransferState
	CurrentFile  string
	BytesSent    int64
	BytesTotal   int64
	FilesSent    int
	FilesTotal   int
	Err          error
}

// AcceptPolicy controls how a protocol reacts to an inbound TransferRequest.
// The zero value (AcceptAuto) matches the behaviour documented in
// SPEC_FULL.md §6.1: protocols auto-accept and the engine's Accept/Reject
// only affect its own pending-request bookkeeping.
type AcceptPolicy int

const (
	AcceptAuto AcceptPolicy = iota
	AcceptManual
)
