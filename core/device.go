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

import "fmt"

// ProtocolID names a registered Protocol implementation, e.g. "localsend" or
// "p2p". It doubles as the registry key and as the namespace component of a
// DeviceID.
type ProtocolID string

const (
	ProtocolLocalSend ProtocolID = "localsend"
	ProtocolP2P       ProtocolID = "p2p"
)

// DeviceID identifies a device within one protocol's address space. Two
// devices discovered by different protocols never compare equal even if
// their Local component happens to match, because the protocol qualifies
// the identifier.
type DeviceID struct {
	Protocol ProtocolID
	Local    string
}

func NewDeviceID(protocol ProtocolID, local string) DeviceID {
	return DeviceID{Protocol: protocol, Local: local}
}

func (d DeviceID) String() string {
	return fmt.Sprintf("%s:%s", d.Protocol, d.Local)
}

func (d DeviceID) IsZero() bool {
	return d.Protocol == "" && d.Local == ""
}

// DeviceType is the coarse platform family a device reports, mirroring the
// LocalSend `deviceType` enumeration.
type DeviceType string

const (
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeWeb     DeviceType = "web"
	DeviceTypeHeadless DeviceType = "headless"
	DeviceTypeServer  DeviceType = "server"
)

// Peer is the local identity a protocol advertises to the network: a name,
// a platform family, and the listening address peers should use to reach
// it.
type Peer struct {
	Name       string
	DeviceType DeviceType
	Address    string
	Port       int
}

// Device is a remote peer as observed by one protocol, keyed by DeviceID.
type Device struct {
	ID         DeviceID
	Name       string
	DeviceType DeviceType
	Address    string
	Port       int
	// Fingerprint is the protocol-specific identity fingerprint (e.g. the
	// LocalSend certificate's SHA-256 fingerprint). Not every protocol
	// populates it.
	Fingerprint string
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}
