// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owdev

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/GermanBionicSystems/microlan/common"
	"periph.io/x/conn/v3/onewire"
)

// Family code of a 1-wire device type.
type Family byte

func (f Family) String() string {
	switch f {
	case DS2401:
		return "DS2401"
	case DS1996:
		return "DS1996"
	case DS18S20:
		return "DS18S20"
	case DS2409:
		return "DS2409"
	case DS18B20:
		return "DS18B20"
	case DS2490:
		return "DS2490"
	default:
		return fmt.Sprintf("Family(%#02x)", byte(f))
	}
}

// Known family codes.
const (
	DS2401  Family = 0x01 // silicon serial number
	DS1996  Family = 0x0c // 64kbit memory iButton
	DS18S20 Family = 0x10 // thermometer
	DS2409  Family = 0x1f // MicroLAN coupler
	DS18B20 Family = 0x28 // thermometer
	DS2490  Family = 0x81 // USB bridge identification chip
)

// SerialSize is the number of bytes in a device serial number.
const SerialSize = 6

// ROMSize is the number of bytes in a ROM code.
const ROMSize = 8

// Identity is the immutable identity of a device on a 1-wire bus: its family
// code and its 48-bit serial number.
type Identity struct {
	family Family
	serial [SerialSize]byte
}

// New returns the identity of a device of the given family and serial.
func New(f Family, serial [SerialSize]byte) Identity {
	return Identity{family: f, serial: serial}
}

// Parse returns the identity for a serial number given as a byte slice.
func Parse(f Family, serial []byte) (Identity, error) {
	if len(serial) != SerialSize {
		return Identity{}, fmt.Errorf("owdev: serial must be %d bytes, got %d", SerialSize, len(serial))
	}
	id := Identity{family: f}
	copy(id.serial[:], serial)
	return id, nil
}

// FromAddress returns the identity of the device with the given 64-bit
// address, as returned by onewire.Bus.Search.
//
// The address' CRC byte is verified.
func FromAddress(a onewire.Address) (Identity, error) {
	var buf [ROMSize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(a))
	if !onewire.CheckCRC(buf[:]) {
		return Identity{}, errBadCRC
	}
	id := Identity{family: Family(buf[0])}
	copy(id.serial[:], buf[1:7])
	return id, nil
}

// NewDS1996 returns the identity of a DS1996 64kbit memory iButton.
func NewDS1996(serial [SerialSize]byte) Identity {
	return New(DS1996, serial)
}

// Family returns the family code.
func (i Identity) Family() Family {
	return i.family
}

// Serial returns the 48-bit serial number, in the order it was given.
func (i Identity) Serial() [SerialSize]byte {
	return i.serial
}

// CRC returns the CRC8 of the family code followed by the serial number.
func (i Identity) CRC() byte {
	var buf [1 + SerialSize]byte
	buf[0] = byte(i.family)
	copy(buf[1:], i.serial[:])
	return common.CRC8(buf[:])
}

// ROM returns the ROM code in the order the bridge reports it: the CRC byte,
// the serial number as stored, then the family code.
func (i Identity) ROM() [ROMSize]byte {
	var rom [ROMSize]byte
	rom[0] = i.CRC()
	copy(rom[1:7], i.serial[:])
	rom[7] = byte(i.family)
	return rom
}

// Address returns the 64-bit address of the device as used by
// periph.io/x/conn/v3/onewire: family code in the least significant byte,
// CRC in the most significant byte.
func (i Identity) Address() onewire.Address {
	var buf [ROMSize]byte
	buf[0] = byte(i.family)
	copy(buf[1:7], i.serial[:])
	buf[7] = i.CRC()
	return onewire.Address(binary.LittleEndian.Uint64(buf[:]))
}

func (i Identity) String() string {
	return fmt.Sprintf("%s{%#016x}", i.family, uint64(i.Address()))
}

var errBadCRC = errors.New("owdev: address has an invalid CRC")
