// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds2490

import "fmt"

// Speed is the 1-wire bus speed mode.
type Speed uint8

// Bus speeds.
const (
	Regular   Speed = 0x00 // 65µs time slot (15.4kbps)
	Flexible  Speed = 0x01 // 65µs to 72µs time slot (13.9kbps to 15.4kbps)
	Overdrive Speed = 0x02 // 10µs time slot (100kbps)
)

func (s Speed) String() string {
	switch s {
	case Regular:
		return "Regular"
	case Flexible:
		return "Flexible"
	case Overdrive:
		return "Overdrive"
	default:
		return fmt.Sprintf("Speed(0x%02x)", uint8(s))
	}
}

// Status is the bridge's configuration and status register file.
type Status struct {
	StrongPullup       bool  // SPUE: strong pull-up enabled
	StrongPullupChange bool  // SPCE: speed change enabled
	Speed              Speed // 1-wire speed
	StrongPullupDur    byte  // SPUD
	PulldownSlewRate   byte  // PDSRC
	Write1LowTime      byte  // LOWT
	DSOW0RecoveryTime  byte  // RECT
	ProgPulseDur       byte  // PPD, retained but not reported
}

// DefaultStatus is the register file after a device reset.
var DefaultStatus = Status{
	Speed:             Regular,
	StrongPullupDur:   0x20,
	PulldownSlewRate:  0x05,
	Write1LowTime:     0x04,
	DSOW0RecoveryTime: 0x04,
}

// Reset restores every register to its reset value.
func (s *Status) Reset() {
	*s = DefaultStatus
}

// StateSize is the size of the serialized register file.
const StateSize = 8

// Bytes returns the state report: enable flags, speed, strong pull-up
// duration, a reserved byte, pull-down slew rate, write-1 low time, DSOW0
// recovery time and a reserved byte.
func (s *Status) Bytes() [StateSize]byte {
	var b [StateSize]byte
	if s.StrongPullup {
		b[0] |= 0x01
	}
	if s.StrongPullupChange {
		b[0] |= 0x04
	}
	b[1] = byte(s.Speed)
	b[2] = s.StrongPullupDur
	b[4] = s.PulldownSlewRate
	b[5] = s.Write1LowTime
	b[6] = s.DSOW0RecoveryTime
	return b
}

func (s Status) String() string {
	return fmt.Sprintf("Status{SPUE:%t SPCE:%t Speed:%s SPUD:0x%02x PDSRC:0x%02x LOWT:0x%02x RECT:0x%02x}",
		s.StrongPullup, s.StrongPullupChange, s.Speed, s.StrongPullupDur, s.PulldownSlewRate,
		s.Write1LowTime, s.DSOW0RecoveryTime)
}

// Status flags, reported in the first byte following the state report.
const (
	StSPUA = 0x01 // strong pull-up active
	StPMOD = 0x08 // powered from USB and external sources
	StHALT = 0x10 // currently halted
	StIDLE = 0x20 // currently idle
	StEP0F = 0x80 // EP0 FIFO status
)

// Result register codes, reported last in the status packet.
const (
	RRDetect = 0xa5 // new device detected
	RRNRS    = 0x01 // no presence pulse
	RRSH     = 0x02 // short on bus
	RRAPP    = 0x04 // alarming presence pulse
	RRCMP    = 0x10 // compare error
	RRCRC    = 0x20 // CRC error
	RRRDP    = 0x40 // redirected page
	RREOS    = 0x80 // end of search error
)

// TrailerSize is the size of the block following the state report in a
// status packet.
const TrailerSize = 9

// StatusPacketSize is the size of a status packet carrying a search result.
const StatusPacketSize = StateSize + TrailerSize

// trailer returns the block following the state report: status flags, the two
// current command bytes, the command, write and read buffer fill levels, two
// reserved bytes and the result register.
func trailer(flags byte, readAvailable int, result byte) [TrailerSize]byte {
	var t [TrailerSize]byte
	t[0] = flags
	t[5] = byte(readAvailable)
	t[8] = result
	return t
}
