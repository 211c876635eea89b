// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds248x drives a DS2482/DS2483 I²C to 1-wire bus master so that a
// real 1-wire bus can sit behind the emulated bridge.
//
// # Datasheets
//
// https://datasheets.maximintegrated.com/en/ds/DS2482-100.pdf
//
// https://datasheets.maximintegrated.com/en/ds/DS2482-800.pdf
//
// https://datasheets.maximintegrated.com/en/ds/DS2483.pdf
package ds248x

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/onewire"
)

// PupOhm controls the strength of the passive pull-up resistor
// on the 1-wire data line. The default value is 1000Ω.
type PupOhm uint8

const (
	// R500Ω passive pull-up resistor.
	R500Ω PupOhm = 4
	// R1000Ω passive pull-up resistor.
	R1000Ω PupOhm = 6
)

// Variant is the bus master chip found at initialization.
type Variant uint8

// Supported chips.
const (
	DS2482x100 Variant = iota
	DS2482x800
	DS2483
)

func (v Variant) String() string {
	switch v {
	case DS2482x100:
		return "DS2482-100"
	case DS2482x800:
		return "DS2482-800"
	case DS2483:
		return "DS2483"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Opts contains options to pass to the constructor.
type Opts struct {
	PassivePullup bool // false:use active pull-up, true: disable active pullup

	// The following options are only available on the ds2483 (not ds2482-100).
	// The actual value used is the closest possible value (rounded up or down).
	ResetLow       time.Duration // reset low time, range 440μs..740μs
	PresenceDetect time.Duration // presence detect sample time, range 58μs..76μs
	Write0Low      time.Duration // write zero low time, range 52μs..70μs
	Write0Recovery time.Duration // write zero recovery time, range 2750ns..25250ns
	PullupRes      PupOhm        // passive pull-up resistance
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	PassivePullup:  false,
	ResetLow:       560 * time.Microsecond,
	PresenceDetect: 68 * time.Microsecond,
	Write0Low:      64 * time.Microsecond,
	Write0Recovery: 5250 * time.Nanosecond,
	PullupRes:      R1000Ω,
}

// New returns a device object that communicates over I²C to the DS2482/DS2483
// controller.
//
// This device object implements onewire.Bus and can be used to
// access devices on the bus.
//
// Valid I²C addresses are 0x18, 0x19, 0x20 and 0x21.
func New(i i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	switch addr {
	case 0x18, 0x19, 0x20, 0x21:
	default:
		return nil, errors.New("ds248x: given address not supported by device")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{i2c: &i2c.Dev{Bus: i, Addr: addr}}
	if err := d.makeDev(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is a handle to a ds248x device and it implements the onewire.Bus
// interface.
//
// Dev implements a persistent error model: if a fatal error is encountered it
// places itself into an error state and immediately returns the last error on
// all subsequent calls. A fresh Dev, which reinitializes the hardware, must be
// created to proceed.
//
// A persistent error is only set when there is a problem with the ds248x
// device itself (or the I²C bus used to access it). Errors on the 1-wire bus
// do not cause persistent errors and implement the onewire.BusError interface
// to indicate this fact.
type Dev struct {
	sync.Mutex
	i2c       conn.Conn
	variant   Variant
	config    byte // lower nibble of the device configuration register
	overdrive bool
	timing    timing // standard speed bus timing
	tReset    time.Duration
	tSlot     time.Duration
	err       error
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.variant, d.i2c)
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Variant returns the chip detected at initialization.
func (d *Dev) Variant() Variant {
	return d.variant
}

// Tx performs a bus transaction, sending and receiving bytes, and ending by
// pulling the bus high either weakly or strongly depending on the value of
// power.
//
// A strong pull-up is typically required to power temperature conversion or
// EEPROM writes.
func (d *Dev) Tx(w, r []byte, power onewire.Pullup) error {
	d.Lock()
	defer d.Unlock()

	if present, err := d.reset(); err != nil {
		return err
	} else if !present {
		return busError("ds248x: no device present")
	}

	// The strong pull-up is armed before the last byte of the transaction and
	// released by the chip on the next bus activity.
	for i, b := range w {
		if power == onewire.StrongPullup && i == len(w)-1 && len(r) == 0 {
			d.writeConfig(d.config | cfgSPU)
		}
		d.i2cTx([]byte{cmd1WWrite, b}, nil)
		d.waitIdle(7 * d.tSlot)
	}
	for i := range r {
		if power == onewire.StrongPullup && i == len(r)-1 {
			d.writeConfig(d.config | cfgSPU)
		}
		d.i2cTx([]byte{cmd1WRead}, nil)
		d.waitIdle(7 * d.tSlot)
		d.i2cTx([]byte{cmdSetReadPtr, regRDR}, r[i:i+1])
	}
	return d.err
}

// Search performs a "search" cycle on the 1-wire bus and returns the addresses
// of all devices on the bus if alarmOnly is false and of all devices in alarm
// state if alarmOnly is true.
//
// If an error occurs during the search the already-discovered devices are
// returned with the error.
func (d *Dev) Search(alarmOnly bool) ([]onewire.Address, error) {
	return onewire.Search(d, alarmOnly)
}

// SearchTriplet performs a single bit search triplet command on the bus, waits
// for it to complete and returns the outcome.
//
// SearchTriplet should not be used directly, use Search instead.
func (d *Dev) SearchTriplet(direction byte) (onewire.TripletResult, error) {
	var dir byte
	if direction != 0 {
		dir = 0x80
	}
	d.i2cTx([]byte{cmd1WTriplet, dir}, nil)
	// In theory 3*tSlot, but the triplet overlaps the status poll.
	status := d.waitIdle(0)
	tr := onewire.TripletResult{
		GotZero: status&stSBR == 0,
		GotOne:  status&stTSB == 0,
	}
	if status&stDIR != 0 {
		tr.Taken = 1
	}
	return tr, d.err
}

// SetOverdrive switches the master between standard and overdrive speed.
//
// Slaves must be switched separately with an overdrive skip or match ROM.
func (d *Dev) SetOverdrive(on bool) error {
	d.Lock()
	defer d.Unlock()
	if d.err != nil {
		return d.err
	}
	c := d.config &^ cfg1WS
	if on {
		c |= cfg1WS
	}
	if err := d.writeConfig(c); err != nil {
		return err
	}
	d.config = c
	d.overdrive = on
	d.applyTiming()
	return nil
}

// Overdrive returns true when the master runs at overdrive speed.
func (d *Dev) Overdrive() bool {
	d.Lock()
	defer d.Unlock()
	return d.overdrive
}

// ChannelSelect selects one of the eight 1-wire channels of a DS2482-800. The
// channel is clamped to 0..7. It is a no-op on other chips.
func (d *Dev) ChannelSelect(ch int) error {
	if d.variant != DS2482x800 {
		return nil
	}
	if ch < 0 {
		ch = 0
	} else if ch > 7 {
		ch = 7
	}
	d.Lock()
	defer d.Unlock()
	if d.err != nil {
		return d.err
	}
	var got [1]byte
	if err := d.i2c.Tx([]byte{cmdChannelSelect, channels[ch].write}, got[:]); err != nil {
		return fmt.Errorf("ds248x: error while selecting channel: %w", err)
	}
	if got[0] != channels[ch].read {
		return fmt.Errorf("ds248x: channel %d not selected, read back %#x", ch, got[0])
	}
	return nil
}

//

// timing is the set of durations the driver waits on.
type timing struct {
	reset time.Duration // complete reset and presence detect cycle
	slot  time.Duration // single bit time slot
}

var overdriveTiming = timing{
	reset: 2 * 70 * time.Microsecond,
	slot:  10 * time.Microsecond,
}

func (d *Dev) applyTiming() {
	t := d.timing
	if d.overdrive {
		t = overdriveTiming
	}
	d.tReset = t.reset
	d.tSlot = t.slot
}

// reset issues a reset signal on the 1-wire bus and returns true if any device
// responded with a presence pulse.
func (d *Dev) reset() (bool, error) {
	d.i2cTx([]byte{cmd1WReset}, nil)
	status := d.waitIdle(d.tReset)
	if d.err != nil {
		return false, d.err
	}
	if status&stSD != 0 {
		return false, shortedBusError("ds248x: bus has a short")
	}
	return status&stPPD != 0, nil
}

// writeConfig writes the lower nibble c to the device configuration register.
// The chip requires the upper nibble to be its one's complement and reads back
// the lower nibble only.
func (d *Dev) writeConfig(c byte) error {
	if d.err != nil {
		return d.err
	}
	var got [1]byte
	d.i2cTx([]byte{cmdWriteConfig, encodeConfig(c)}, got[:])
	if d.err != nil {
		return d.err
	}
	// The strong pull-up bit clears itself once the pull-up ends.
	if got[0]&^cfgSPU != c&^cfgSPU {
		d.err = fmt.Errorf("ds248x: failure to write device config register, wrote %#x got %#x back", encodeConfig(c), got[0])
	}
	return d.err
}

func encodeConfig(c byte) byte {
	c &= 0x0f
	return ^c<<4 | c
}

// i2cTx is a helper function to call i2c.Tx and handle the error by persisting
// it.
func (d *Dev) i2cTx(w, r []byte) {
	if d.err != nil {
		return
	}
	d.err = d.i2c.Tx(w, r)
}

// waitIdle waits for the one wire bus to be idle.
//
// It initially sleeps for the delay and then polls the status register and
// sleeps for a tenth of the delay each time the status register indicates that
// the bus is still busy. The last read status byte is returned.
//
// An overall timeout of 3ms is applied to the whole procedure. waitIdle uses
// the persistent error model and returns 0 if there is an error.
func (d *Dev) waitIdle(delay time.Duration) byte {
	if d.err != nil {
		return 0
	}
	deadline := time.Now().Add(3 * time.Millisecond)
	sleep(delay)
	for {
		var status [1]byte
		d.i2cTx(nil, status[:])
		// Also returns on error, since status[0] is then 0.
		if status[0]&st1WB == 0 {
			return status[0]
		}
		if time.Now().After(deadline) {
			d.err = errors.New("ds248x: timeout waiting for bus cycle to finish")
			return 0
		}
		sleep(delay / 10)
	}
}

func (d *Dev) makeDev(opts *Opts) error {
	d.timing = timing{
		reset: 2 * opts.ResetLow,
		slot:  opts.Write0Low + opts.Write0Recovery,
	}
	d.applyTiming()

	if err := d.i2c.Tx([]byte{cmdReset}, nil); err != nil {
		return fmt.Errorf("ds248x: error while resetting: %w", err)
	}
	var stat [1]byte
	if err := d.i2c.Tx([]byte{cmdSetReadPtr, regStatus}, stat[:]); err != nil {
		return fmt.Errorf("ds248x: error while reading status register: %w", err)
	}
	if stat[0] != stRST|stLL {
		return fmt.Errorf("ds248x: invalid status register value: %#x, expected 0x18", stat[0])
	}

	// Standard speed, no strong pull-up, no power down.
	d.config = cfgAPU
	if opts.PassivePullup {
		d.config = 0
	}
	if err := d.writeConfig(d.config); err != nil {
		return err
	}

	// Only the DS2483 has a port configuration register and only the
	// DS2482-800 has a channel selection register.
	switch {
	case d.i2c.Tx([]byte{cmdSetReadPtr, regPCR}, nil) == nil:
		d.variant = DS2483
		buf := []byte{cmdAdjPort,
			byte(0x00 + ((opts.ResetLow/time.Microsecond-430)/20)&0x0f),
			byte(0x20 + ((opts.PresenceDetect/time.Microsecond-55)/2)&0x0f),
			byte(0x40 + ((opts.Write0Low/time.Microsecond-51)/2)&0x0f),
			byte(0x60 + ((opts.Write0Recovery-1250)/2500+5)&0x0f),
			byte(0x80 + opts.PullupRes&0x0f),
		}
		if err := d.i2c.Tx(buf, nil); err != nil {
			return fmt.Errorf("ds248x: error while setting port config values: %w", err)
		}
	case d.i2c.Tx([]byte{cmdSetReadPtr, regCSR}, nil) == nil:
		d.variant = DS2482x800
		if err := d.i2c.Tx([]byte{cmdChannelSelect, channels[0].write}, nil); err != nil {
			return fmt.Errorf("ds248x: error while selecting channel: %w", err)
		}
	default:
		d.variant = DS2482x100
	}
	return nil
}

// shortedBusError implements error and onewire.ShortedBusError.
type shortedBusError string

func (e shortedBusError) Error() string   { return string(e) }
func (e shortedBusError) IsShorted() bool { return true }
func (e shortedBusError) BusError() bool  { return true }

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

var sleep = time.Sleep

var _ conn.Resource = &Dev{}
var _ onewire.Bus = &Dev{}
var _ onewire.BusSearcher = &Dev{}

const (
	cmdReset         = 0xf0 // reset ds248x
	cmdSetReadPtr    = 0xe1 // set the read pointer
	cmdWriteConfig   = 0xd2 // write the device configuration
	cmdAdjPort       = 0xc3 // adjust 1-wire port (ds2483)
	cmdChannelSelect = 0xc3 // channel select (ds2482-800)
	cmd1WReset       = 0xb4 // reset the 1-wire bus
	cmd1WWrite       = 0xa5 // perform a byte write on the 1-wire bus
	cmd1WRead        = 0x96 // perform a byte read on the 1-wire bus
	cmd1WTriplet     = 0x78 // perform a triplet operation (2 bit reads, a bit write)

	regStatus = 0xf0 // read ptr for status register
	regRDR    = 0xe1 // read ptr for read-data register
	regPCR    = 0xb4 // read ptr for port configuration register
	regCSR    = 0xd2 // read ptr for channel selection register

	cfgAPU = 0x01 // active pull-up
	cfgSPU = 0x04 // strong pull-up
	cfg1WS = 0x08 // overdrive speed

	st1WB = 0x01 // 1-wire busy
	stPPD = 0x02 // presence pulse detected
	stSD  = 0x04 // short detected
	stLL  = 0x08 // logic level
	stRST = 0x10 // device reset
	stSBR = 0x20 // single bit result
	stTSB = 0x40 // triplet second bit
	stDIR = 0x80 // branch direction taken
)

// channels lists the DS2482-800 channel selection codes, as written and as
// read back.
var channels = [8]struct{ write, read byte }{
	{0xf0, 0xb8},
	{0xe1, 0xb1},
	{0xd2, 0xaa},
	{0xc3, 0xa3},
	{0xb4, 0x9c},
	{0xa5, 0x95},
	{0x96, 0x8e},
	{0x87, 0x87},
}
