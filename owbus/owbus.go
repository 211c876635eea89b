// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owbus implements an in-memory 1-wire bus populated with emulated
// devices.
//
// The bus understands the ROM layer of the 1-wire protocol: reset and
// presence, READ ROM, MATCH ROM, SKIP ROM, SEARCH ROM and ALARM SEARCH.
// Function commands addressed to a device read back as an idle bus (0xFF),
// since memory contents are not emulated.
package owbus

import (
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/microlan/owdev"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/onewire"
)

// ROM layer commands.
const (
	CmdReadROM     = 0x33
	CmdMatchROM    = 0x55
	CmdSkipROM     = 0xcc
	CmdSearchROM   = 0xf0
	CmdAlarmSearch = 0xec
)

// Bus is an emulated 1-wire bus. It implements onewire.Bus and
// onewire.BusSearcher.
type Bus struct {
	sync.Mutex
	devices []owdev.Identity
	// Devices still taking part in the current search cycle and the next bit
	// position they will answer for.
	searching []onewire.Address
	bit       uint
	// Strong pull-up state left by the last transaction.
	pullup onewire.Pullup
}

// New returns a bus with the given devices attached.
func New(devices ...owdev.Identity) *Bus {
	b := &Bus{}
	b.devices = append(b.devices, devices...)
	return b
}

func (b *Bus) String() string {
	b.Lock()
	defer b.Unlock()
	return fmt.Sprintf("owbus(%d)", len(b.devices))
}

// Halt implements conn.Resource.
func (b *Bus) Halt() error {
	return nil
}

// Attach connects a device to the bus.
func (b *Bus) Attach(id owdev.Identity) {
	b.Lock()
	defer b.Unlock()
	b.devices = append(b.devices, id)
}

// Detach disconnects every device with the given identity. It returns false
// if no such device was attached.
func (b *Bus) Detach(id owdev.Identity) bool {
	b.Lock()
	defer b.Unlock()
	found := false
	kept := b.devices[:0]
	for _, d := range b.devices {
		if d == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	b.devices = kept
	return found
}

// Devices returns the attached devices.
func (b *Bus) Devices() []owdev.Identity {
	b.Lock()
	defer b.Unlock()
	return append([]owdev.Identity(nil), b.devices...)
}

// Pullup returns the pull-up mode the bus was left in by the last
// transaction.
func (b *Bus) Pullup() onewire.Pullup {
	b.Lock()
	defer b.Unlock()
	return b.pullup
}

// Tx implements onewire.Bus.
//
// Each transaction starts with a reset. w[0], if present, is the ROM command.
func (b *Bus) Tx(w, r []byte, power onewire.Pullup) error {
	b.Lock()
	defer b.Unlock()
	b.searching = nil
	b.pullup = power
	if len(b.devices) == 0 {
		return noDevicesError("owbus: no device present")
	}
	for i := range r {
		r[i] = 0xff
	}
	if len(w) == 0 {
		return nil
	}
	switch w[0] {
	case CmdReadROM:
		// All devices answer at once; the open-drain bus yields the AND.
		if len(r) == 0 {
			return nil
		}
		var rom [owdev.ROMSize]byte
		for i := range rom {
			rom[i] = 0xff
		}
		for _, d := range b.devices {
			a := addressBytes(d.Address())
			for i := range rom {
				rom[i] &= a[i]
			}
		}
		copy(r, rom[:])
	case CmdMatchROM:
		if len(w) < 1+owdev.ROMSize {
			return busError("owbus: short MATCH ROM")
		}
	case CmdSkipROM:
	case CmdSearchROM:
		for _, d := range b.devices {
			b.searching = append(b.searching, d.Address())
		}
		b.bit = 0
	case CmdAlarmSearch:
		// Emulated devices never raise an alarm.
		b.bit = 0
	}
	return nil
}

// Search implements onewire.Bus.
func (b *Bus) Search(alarmOnly bool) ([]onewire.Address, error) {
	return onewire.Search(b, alarmOnly)
}

// SearchTriplet implements onewire.BusSearcher.
//
// Every device still participating in the search sends its address bit and
// its complement; devices whose bit differs from the chosen direction drop
// out.
func (b *Bus) SearchTriplet(direction byte) (onewire.TripletResult, error) {
	b.Lock()
	defer b.Unlock()
	if b.bit >= 64 {
		return onewire.TripletResult{}, busError("owbus: search past last address bit")
	}
	var tr onewire.TripletResult
	for _, a := range b.searching {
		if (a>>b.bit)&1 == 0 {
			tr.GotZero = true
		} else {
			tr.GotOne = true
		}
	}
	switch {
	case tr.GotZero && tr.GotOne:
		if direction != 0 {
			tr.Taken = 1
		}
	case tr.GotOne:
		tr.Taken = 1
	}
	kept := b.searching[:0]
	for _, a := range b.searching {
		if byte((a>>b.bit)&1) == tr.Taken {
			kept = append(kept, a)
		}
	}
	b.searching = kept
	b.bit++
	return tr, nil
}

func addressBytes(a onewire.Address) [owdev.ROMSize]byte {
	var buf [owdev.ROMSize]byte
	for i := range buf {
		buf[i] = byte(a >> (8 * uint(i)))
	}
	return buf
}

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

// noDevicesError implements error, onewire.NoDevicesError and
// onewire.BusError.
type noDevicesError string

func (e noDevicesError) Error() string   { return string(e) }
func (e noDevicesError) NoDevices() bool { return true }
func (e noDevicesError) BusError() bool  { return true }

var _ conn.Resource = &Bus{}
var _ onewire.Bus = &Bus{}
var _ onewire.BusSearcher = &Bus{}
var _ onewire.NoDevicesError = noDevicesError("")
var _ onewire.BusError = noDevicesError("")
