// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds2490

import "fmt"

// Class is the vendor request number selecting one of the three command
// classes of the bridge.
type Class uint8

// Command classes.
const (
	ControlClass       Class = 0x00
	CommunicationClass Class = 0x01
	ModeClass          Class = 0x02
)

func (c Class) String() string {
	switch c {
	case ControlClass:
		return "CTRL_CMD"
	case CommunicationClass:
		return "COMM_CMD"
	case ModeClass:
		return "MODE_CMD"
	default:
		return fmt.Sprintf("Class(0x%02x)", uint8(c))
	}
}

// Control class command values.
const (
	CtlResetDevice    = 0x0000
	CtlStartExe       = 0x0001
	CtlResumeExe      = 0x0002
	CtlHaltExeIdle    = 0x0003
	CtlHaltExeDone    = 0x0004
	CtlFlushCommCmds  = 0x0007
	CtlFlushRcvBuffer = 0x0008
	CtlFlushXmtBuffer = 0x0009
	CtlGetCommCmds    = 0x000a
)

var controlNames = map[uint16]string{
	CtlResetDevice:    "CTL_RESET_DEVICE",
	CtlStartExe:       "CTL_START_EXE",
	CtlResumeExe:      "CTL_RESUME_EXE",
	CtlHaltExeIdle:    "CTL_HALT_EXE_IDLE",
	CtlHaltExeDone:    "CTL_HALT_EXE_DONE",
	CtlFlushCommCmds:  "CTL_FLUSH_COMM_CMDS",
	CtlFlushRcvBuffer: "CTL_FLUSH_RCV_BUFFER",
	CtlFlushXmtBuffer: "CTL_FLUSH_XMT_BUFFER",
	CtlGetCommCmds:    "CTL_GET_COMM_CMDS",
}

// Command is a communication class command, identified by the bits it
// requires in the request value.
type Command uint16

// Communication class commands. The value of each is its mask.
const (
	SearchAccess Command = 0x00f4
	ReadRedirect Command = 0x21e4
	ReadCRCProt  Command = 0x00d4
	WriteEPROM   Command = 0x00c4
	WriteSRAM    Command = 0x00b2
	SetPath      Command = 0x00a2
	DoRelease    Command = 0x6092
	ReadStraight Command = 0x0080
	BlockIO      Command = 0x0074
	MatchAccess  Command = 0x0064
	ByteIO       Command = 0x0052
	OneWireReset Command = 0x0042
	Pulse        Command = 0x0030
	SetDuration  Command = 0x0012
	ErrorEscape  Command = 0x0601
)

// BitIO is the single bit I/O command. Every value carrying its mask is
// either claimed by a command of commandPriority or left unrecognized, so it
// is never decoded.
const BitIO Command = 0x0020

// commandPriority lists the communication commands in the order they are
// tested against a request value. Masks overlap, most of them share bit 0x0008
// and several are supersets of others, so the first match wins and this order
// is part of the protocol.
var commandPriority = [...]Command{
	SearchAccess,
	ReadRedirect,
	ReadCRCProt,
	WriteEPROM,
	WriteSRAM,
	SetPath,
	DoRelease,
	ReadStraight,
	BlockIO,
	MatchAccess,
	ByteIO,
	OneWireReset,
	Pulse,
	SetDuration,
	ErrorEscape,
}

// DecodeCommand returns the highest priority command whose mask is fully
// set in value.
func DecodeCommand(value uint16) (Command, bool) {
	for _, c := range commandPriority {
		if value&uint16(c) == uint16(c) {
			return c, true
		}
	}
	return 0, false
}

func (c Command) String() string {
	switch c {
	case SearchAccess:
		return "SEARCH_ACCESS"
	case ReadRedirect:
		return "READ_REDIRECT"
	case ReadCRCProt:
		return "READ_CRC_PROT"
	case WriteEPROM:
		return "WRITE_EPROM"
	case WriteSRAM:
		return "WRITE_SRAM"
	case SetPath:
		return "SET_PATH"
	case DoRelease:
		return "DO_RELEASE"
	case ReadStraight:
		return "READ_STRAIGHT"
	case BlockIO:
		return "BLOCK_IO"
	case MatchAccess:
		return "MATCH_ACCESS"
	case ByteIO:
		return "BYTE_IO"
	case OneWireReset:
		return "1_WIRE_RESET"
	case Pulse:
		return "PULSE"
	case SetDuration:
		return "SET_DURATION"
	case ErrorEscape:
		return "ERROR_ESCAPE"
	case BitIO:
		return "BIT_IO"
	default:
		return fmt.Sprintf("Command(0x%04x)", uint16(c))
	}
}

// Communication command flag bits. Several flags share a bit; their meaning
// depends on the command they are combined with.
const (
	CommIM   = 0x0001 // immediate execution
	CommType = 0x0008
	CommSE   = 0x0008
	CommD    = 0x0008
	CommZ    = 0x0008
	CommCH   = 0x0008
	CommSM   = 0x0008
	CommR    = 0x0008
	CommRST  = 0x0100 // 1-wire reset before the command
	CommICP  = 0x0200 // intermediate command processing
	CommNTF  = 0x0400 // result register feedback
	CommF    = 0x0800 // clear buffers on error
	CommSPU  = 0x1000 // strong pull-up after the command
	CommDT   = 0x2000 // dual timing
	CommPS   = 0x4000
	CommPST  = 0x4000
	CommCIB  = 0x4000
	CommRTS  = 0x4000
)

// ModeParam selects which mode register a mode class request writes.
type ModeParam uint16

// Mode registers.
const (
	ModPulseEn       ModeParam = 0x0000
	ModSpeedChangeEn ModeParam = 0x0001
	Mod1WireSpeed    ModeParam = 0x0002
	ModStrongPUDur   ModeParam = 0x0003
	ModPulldownSlew  ModeParam = 0x0004
	ModProgPulseDur  ModeParam = 0x0005
	ModWrite1LowTime ModeParam = 0x0006
	ModDSOW0Recovery ModeParam = 0x0007
)

func (m ModeParam) String() string {
	switch m {
	case ModPulseEn:
		return "MOD_PULSE_EN"
	case ModSpeedChangeEn:
		return "MOD_SPEED_CHANGE_EN"
	case Mod1WireSpeed:
		return "MOD_1WIRE_SPEED"
	case ModStrongPUDur:
		return "MOD_STRONG_PU_DURATION"
	case ModPulldownSlew:
		return "MOD_PULLDOWN_SLEWRATE"
	case ModProgPulseDur:
		return "MOD_PROG_PULSE_DURATION"
	case ModWrite1LowTime:
		return "MOD_WRITE1_LOWTIME"
	case ModDSOW0Recovery:
		return "MOD_DSOW0_TREC"
	default:
		return fmt.Sprintf("ModeParam(0x%04x)", uint16(m))
	}
}

// Pulse enable values carried in the index of a ModPulseEn request.
const (
	PulseProg = 0x01 // programming pulse
	PulseSPUE = 0x02 // strong pull-up
)
