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

// EventKind discriminates the payload carried by an Event.
type EventKind string

const (
	EventDeviceFound      EventKind = "device_found"
	EventDeviceUpdated    EventKind = "device_updated"
	EventDeviceLost       EventKind = "device_lost"
	EventTransferRequest  EventKind = "transfer_request"
	EventTransferProgress EventKind = "transfer_progress"
	EventError            EventKind = "error"
)

// Event is the single type flowing out of Protocol.Subscribe and
// Engine.Subscribe. Exactly one of the payload fields is populated,
// matching Kind.
type Event struct {
	Kind     EventKind
	Protocol ProtocolID
	Device   *Device
	Request  *TransferRequest
	Progress *TransferProgress
	Err      error
}

func NewDeviceFoundEvent(protocol ProtocolID, d Device) Event {
	return Event{Kind: EventDeviceFound, Protocol: protocol, Device: &d}
}

func NewDeviceUpdatedEvent(protocol ProtocolID, d Device) Event {
	return Event{Kind: EventDeviceUpdated, Protocol: protocol, Device: &d}
}

func NewDeviceLostEvent(protocol ProtocolID, d Device) Event {
	return Event{Kind: EventDeviceLost, Protocol: protocol, Device: &d}
}

func NewTransferRequestEvent(protocol ProtocolID, r TransferRequest) Event {
	return Event{Kind: EventTransferRequest, Protocol: protocol, Request: &r}
}

func NewTransferProgressEvent(protocol ProtocolID, p TransferProgress) Event {
	return Event{Kind: EventTransferProgress, Protocol: protocol, Progress: &p}
}

func NewErrorEvent(protocol ProtocolID, err error) Event {
	return Event{Kind: EventError, Protocol: protocol, Err: err}
}
