// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds2490

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GermanBionicSystems/microlan/owdev"
	"github.com/ardnew/softusb/device"
	"github.com/ardnew/softusb/pkg"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/onewire"
)

// Transport is the USB device side the bridge answers through. It is
// implemented by the USB device emulation that owns the endpoints.
//
// The bridge calls Transport from within its own request handlers, one call
// at a time.
type Transport interface {
	// Ack completes the current control transfer with an empty status stage.
	Ack() error
	// SendStatus queues a packet on the interrupt IN (status) endpoint.
	SendStatus(b []byte) error
	// SendData queues a packet on the bulk IN (data) endpoint.
	SendData(b []byte) error
}

// Request is a decoded vendor request.
type Request struct {
	Class Class  // bRequest
	Value uint16 // wValue
	Index uint16 // wIndex
}

func (r Request) String() string {
	return fmt.Sprintf("%s{value=0x%04x index=0x%04x}", r.Class, r.Value, r.Index)
}

// Opts contains options to pass to the constructor.
type Opts struct {
	// Identity is the bridge's own 1-wire identity.
	Identity owdev.Identity

	// Bus is the 1-wire bus behind the bridge. When nil, a search reports a
	// fixed placeholder ROM code.
	Bus onewire.Bus

	// Strings are the manufacturer, product and serial number strings.
	Strings []string

	// Logger receives protocol traces at debug level. slog.Default() is used
	// when nil.
	Logger *slog.Logger
}

// DefaultOpts is the configuration of the emulated fob.
var DefaultOpts = Opts{
	Identity: owdev.New(owdev.DS2409, [owdev.SerialSize]byte{0x50, 0x6f, 0x43, 0x20, 0x7c, 0x7c}),
}

// PlaceholderROM is the search result reported when no bus is attached.
var PlaceholderROM = [owdev.ROMSize]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

// New returns an emulated DS2490 USB to 1-wire bridge answering through t.
//
// The bridge starts unready: it must receive a device reset control command
// before it acts on a search.
func New(t Transport, opts *Opts) (*Dev, error) {
	if t == nil {
		return nil, errors.New("ds2490: a transport is required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{
		t:        t,
		log:      opts.Logger,
		bus:      opts.Bus,
		identity: opts.Identity,
		strings:  append([]string(nil), opts.Strings...),
		status:   DefaultStatus,
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	d.log = d.log.With("component", "ds2490")
	return d, nil
}

// Dev is an emulated DS2490 bridge.
//
// Each handler runs to completion under the lock and produces at most one
// Transport call, so handlers may be invoked from any goroutine.
type Dev struct {
	sync.Mutex
	t        Transport
	log      *slog.Logger
	bus      onewire.Bus
	identity owdev.Identity
	strings  []string

	status        Status
	alt           uint8
	ready         bool // a device reset was received
	searchPending bool // a search result awaits the bulk IN read
	found         [owdev.ROMSize]byte
}

func (d *Dev) String() string {
	return fmt.Sprintf("DS2490{%s}", d.identity)
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Identity returns the bridge's own 1-wire identity.
func (d *Dev) Identity() owdev.Identity {
	return d.identity
}

// Status returns a copy of the register file.
func (d *Dev) Status() Status {
	d.Lock()
	defer d.Unlock()
	return d.status
}

// Ready returns true once a device reset has been received.
func (d *Dev) Ready() bool {
	d.Lock()
	defer d.Unlock()
	return d.ready
}

// SearchPending returns true between a search and the bulk IN read that
// returns its result.
func (d *Dev) SearchPending() bool {
	d.Lock()
	defer d.Unlock()
	return d.searchPending
}

// AltSetting returns the selected alternate setting of interface 0.
func (d *Dev) AltSetting() uint8 {
	d.Lock()
	defer d.Unlock()
	return d.alt
}

// HandleRequest processes a vendor request of one of the three command
// classes and acknowledges it.
//
// Every request of a known class is acknowledged exactly once, whether or not
// its value is recognized. Only a Transport failure or an unknown class is
// reported as an error; in the latter case nothing is acknowledged and the
// caller is expected to stall.
func (d *Dev) HandleRequest(r Request) error {
	d.Lock()
	defer d.Unlock()
	d.log.Debug("request", "class", r.Class.String(), "value", hex16(r.Value), "index", hex16(r.Index))
	switch r.Class {
	case ControlClass:
		d.control(r)
	case CommunicationClass:
		d.communicate(r)
	case ModeClass:
		d.mode(r)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownClass, r.Class)
	}
	if err := d.t.Ack(); err != nil {
		return fmt.Errorf("ds2490: acknowledging %s: %w", r.Class, err)
	}
	return nil
}

// HandleSetup processes a SETUP packet addressed to the bridge. It returns
// false for requests it leaves to the USB device emulation, such as
// descriptor requests.
func (d *Dev) HandleSetup(s *device.SetupPacket) (bool, error) {
	switch {
	case s.IsVendor():
		return true, d.HandleRequest(Request{Class: Class(s.Request), Value: s.Value, Index: s.Index})
	case s.IsStandard() && s.Request == device.RequestSetInterface:
		return true, d.SetInterface(s.Index, s.Value)
	default:
		return false, nil
	}
}

// SetInterface selects an alternate setting of interface 0.
//
// ErrStall is returned, without acknowledging, for any other interface or an
// alternate setting that does not exist.
func (d *Dev) SetInterface(iface, alt uint16) error {
	d.Lock()
	defer d.Unlock()
	if iface != 0 || int(alt) >= len(AltSettings) {
		d.log.Debug("set interface rejected", "interface", iface, "alt", alt)
		return fmt.Errorf("%w: interface %d alternate %d", ErrStall, iface, alt)
	}
	d.alt = uint8(alt)
	d.log.Debug("set interface", "alt", alt, "bulkMaxPacket", AltSettings[alt].BulkMaxPacket)
	if err := d.t.Ack(); err != nil {
		return fmt.Errorf("ds2490: acknowledging set interface: %w", err)
	}
	return nil
}

// PollStatus answers a poll of the status endpoint.
//
// When a search result is pending, the state report is sent followed by a
// trailer announcing a detected device. Otherwise nothing is sent.
func (d *Dev) PollStatus() error {
	d.Lock()
	defer d.Unlock()
	if !d.ready || !d.searchPending {
		return nil
	}
	state := d.status.Bytes()
	t := trailer(StIDLE, len(d.found), RRDetect)
	pkt := make([]byte, 0, StatusPacketSize)
	pkt = append(pkt, state[:]...)
	pkt = append(pkt, t[:]...)
	if err := d.t.SendStatus(pkt); err != nil {
		return fmt.Errorf("ds2490: sending status: %w", err)
	}
	return nil
}

// PollData answers a poll of the bulk IN endpoint.
//
// When a search result is pending, its ROM code is sent and the search is
// complete. Otherwise nothing is sent.
func (d *Dev) PollData() error {
	d.Lock()
	defer d.Unlock()
	if !d.ready || !d.searchPending {
		return nil
	}
	if err := d.t.SendData(append([]byte(nil), d.found[:]...)); err != nil {
		return fmt.Errorf("ds2490: sending search result: %w", err)
	}
	d.searchPending = false
	d.log.Debug("search result delivered", "rom", fmt.Sprintf("% x", d.found[:]))
	return nil
}

// HandleDataOut accepts data written to the bulk OUT endpoint. The bridge
// does not buffer it.
func (d *Dev) HandleDataOut(b []byte) {
	d.log.Debug("data out discarded", "len", len(b), "data", fmt.Sprintf("% x", b))
}

//

func (d *Dev) control(r Request) {
	name, ok := controlNames[r.Value]
	if !ok {
		d.log.Debug("unrecognized control command", "value", hex16(r.Value))
		return
	}
	d.log.Debug("control", "command", name, "index", hex16(r.Index))
	if r.Value == CtlResetDevice {
		d.status.Reset()
		d.ready = true
	}
}

func (d *Dev) communicate(r Request) {
	c, ok := DecodeCommand(r.Value)
	if !ok {
		d.log.Debug("unrecognized communication command", "value", hex16(r.Value))
		return
	}
	d.log.Debug("communication", "command", c.String(), "value", hex16(r.Value), "index", hex16(r.Index))
	if c == SearchAccess {
		d.search()
	}
}

// search runs a search for the SEARCH_ACCESS command. It is ignored until the
// bridge has been reset.
func (d *Dev) search() {
	if !d.ready {
		d.log.Debug("search ignored, device not reset")
		return
	}
	if d.bus == nil {
		d.found = PlaceholderROM
		d.searchPending = true
		return
	}
	addrs, err := d.bus.Search(false)
	if err != nil {
		d.log.Debug("search failed", "bus", d.bus.String(), "err", err)
		return
	}
	if len(addrs) == 0 {
		d.log.Debug("search found no device", "bus", d.bus.String())
		return
	}
	id, err := owdev.FromAddress(addrs[0])
	if err != nil {
		d.log.Debug("search returned invalid address", "addr", fmt.Sprintf("%#016x", uint64(addrs[0])), "err", err)
		return
	}
	d.found = id.ROM()
	d.searchPending = true
	d.log.Debug("search found device", "device", id.String(), "count", len(addrs))
}

func (d *Dev) mode(r Request) {
	p := ModeParam(r.Value)
	v := byte(r.Index)
	switch p {
	case ModPulseEn:
		d.status.StrongPullup = r.Index == PulseSPUE
	case ModSpeedChangeEn:
		d.status.StrongPullupChange = r.Index == 0x01
	case Mod1WireSpeed:
		d.status.Speed = Speed(v)
		d.setOverdrive(d.status.Speed == Overdrive)
	case ModStrongPUDur:
		d.status.StrongPullupDur = v
	case ModPulldownSlew:
		d.status.PulldownSlewRate = v
	case ModProgPulseDur:
		d.status.ProgPulseDur = v
	case ModWrite1LowTime:
		d.status.Write1LowTime = v
	case ModDSOW0Recovery:
		d.status.DSOW0RecoveryTime = v
	default:
		d.log.Debug("unrecognized mode", "value", hex16(r.Value), "index", hex16(r.Index))
		return
	}
	d.log.Debug("mode", "mode", p.String(), "index", hex16(r.Index))
}

// overdriver is implemented by bus masters that can switch their own timing,
// like ds248x.Dev.
type overdriver interface {
	SetOverdrive(on bool) error
}

func (d *Dev) setOverdrive(on bool) {
	o, ok := d.bus.(overdriver)
	if !ok {
		return
	}
	if err := o.SetOverdrive(on); err != nil {
		d.log.Warn("bus speed change failed", "bus", d.bus.String(), "overdrive", on, "err", err)
	}
}

func hex16(v uint16) string {
	return fmt.Sprintf("0x%04x", v)
}

var (
	// ErrUnknownClass is returned for a vendor request number outside the
	// three command classes.
	ErrUnknownClass = errors.New("ds2490: unknown command class")
	// ErrStall is returned when the request must be answered with a STALL. It
	// wraps pkg.ErrStall.
	ErrStall = fmt.Errorf("ds2490: %w", pkg.ErrStall)
	// ErrDescriptorNotFound is returned for a descriptor index that does not
	// exist.
	ErrDescriptorNotFound = errors.New("ds2490: descriptor not found")
)

var _ conn.Resource = &Dev{}
