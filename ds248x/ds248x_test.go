// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/onewire"
)

const addr = 0x18

func init() {
	sleep = func(time.Duration) {}
}

// initOps is the DS2483 initialization sequence with DefaultOpts.
func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{cmdReset}},
		{Addr: addr, W: []byte{cmdSetReadPtr, regStatus}, R: []byte{0x18}},
		{Addr: addr, W: []byte{cmdWriteConfig, 0xe1}, R: []byte{0x01}},
		{Addr: addr, W: []byte{cmdSetReadPtr, regPCR}},
		{Addr: addr, W: []byte{cmdAdjPort, 0x06, 0x26, 0x46, 0x66, 0x86}},
	}
}

func TestNew(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initOps()}
	d, err := New(bus, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Variant() != DS2483 {
		t.Fatalf("Variant() = %s", d.Variant())
	}
	if d.tReset != 1120*time.Microsecond || d.tSlot != 69250*time.Nanosecond {
		t.Fatalf("timing %s %s", d.tReset, d.tSlot)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_passivePullup(t *testing.T) {
	ops := initOps()
	ops[2] = i2ctest.IO{Addr: addr, W: []byte{cmdWriteConfig, 0xf0}, R: []byte{0x00}}
	bus := &i2ctest.Playback{Ops: ops}
	opts := DefaultOpts
	opts.PassivePullup = true
	if _, err := New(bus, addr, &opts); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_badAddress(t *testing.T) {
	if _, err := New(&i2ctest.Playback{}, 0x40, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_badStatus(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: addr, W: []byte{cmdReset}},
			{Addr: addr, W: []byte{cmdSetReadPtr, regStatus}, R: []byte{0x00}},
		},
	}
	if _, err := New(bus, addr, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_badConfig(t *testing.T) {
	ops := initOps()[:3]
	ops[2].R = []byte{0x0f}
	bus := &i2ctest.Playback{Ops: ops}
	if _, err := New(bus, addr, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetOverdrive(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: addr, W: []byte{cmdWriteConfig, 0x69}, R: []byte{0x09}},
		i2ctest.IO{Addr: addr, W: []byte{cmdWriteConfig, 0xe1}, R: []byte{0x01}},
	)
	bus := &i2ctest.Playback{Ops: ops}
	d, err := New(bus, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetOverdrive(true); err != nil {
		t.Fatal(err)
	}
	if !d.Overdrive() || d.tSlot != 10*time.Microsecond || d.tReset != 140*time.Microsecond {
		t.Fatalf("overdrive=%t slot=%s reset=%s", d.Overdrive(), d.tSlot, d.tReset)
	}
	if err := d.SetOverdrive(false); err != nil {
		t.Fatal(err)
	}
	if d.Overdrive() || d.tSlot != 69250*time.Nanosecond {
		t.Fatalf("overdrive=%t slot=%s", d.Overdrive(), d.tSlot)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSetOverdrive_persistentError(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: addr, W: []byte{cmdWriteConfig, 0x69}, R: []byte{0x01}},
	)
	d, err := New(&i2ctest.Playback{Ops: ops}, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = d.SetOverdrive(true)
	if err == nil {
		t.Fatal("expected error")
	}
	if d.Overdrive() {
		t.Fatal("overdrive set despite failure")
	}
	if err2 := d.Tx(nil, nil, onewire.WeakPullup); err2 != err {
		t.Fatalf("expected persistent error %v, got %v", err, err2)
	}
}

func TestTx(t *testing.T) {
	ops := append(initOps(),
		// Reset with presence.
		i2ctest.IO{Addr: addr, W: []byte{cmd1WReset}},
		i2ctest.IO{Addr: addr, R: []byte{stPPD}},
		// READ ROM.
		i2ctest.IO{Addr: addr, W: []byte{cmd1WWrite, 0x33}},
		i2ctest.IO{Addr: addr, R: []byte{0x00}},
		i2ctest.IO{Addr: addr, W: []byte{cmd1WRead}},
		i2ctest.IO{Addr: addr, R: []byte{st1WB}},
		i2ctest.IO{Addr: addr, R: []byte{0x00}},
		i2ctest.IO{Addr: addr, W: []byte{cmdSetReadPtr, regRDR}, R: []byte{0x28}},
	)
	bus := &i2ctest.Playback{Ops: ops}
	d, err := New(bus, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 1)
	if err := d.Tx([]byte{0x33}, r, onewire.WeakPullup); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x28}, r); diff != "" {
		t.Fatalf("read mismatch (-want +got):\n%s", diff)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTx_strongPullup(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: addr, W: []byte{cmd1WReset}},
		i2ctest.IO{Addr: addr, R: []byte{stPPD}},
		i2ctest.IO{Addr: addr, W: []byte{cmdWriteConfig, 0xa5}, R: []byte{0x05}},
		i2ctest.IO{Addr: addr, W: []byte{cmd1WWrite, 0x44}},
		i2ctest.IO{Addr: addr, R: []byte{0x00}},
	)
	bus := &i2ctest.Playback{Ops: ops}
	d, err := New(bus, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Tx([]byte{0x44}, nil, onewire.StrongPullup); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTx_busErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		status  byte
		shorted bool
	}{
		{"no presence", 0x00, false},
		{"short", stSD, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ops := append(initOps(),
				i2ctest.IO{Addr: addr, W: []byte{cmd1WReset}},
				i2ctest.IO{Addr: addr, R: []byte{tc.status}},
			)
			d, err := New(&i2ctest.Playback{Ops: ops}, addr, nil)
			if err != nil {
				t.Fatal(err)
			}
			err = d.Tx([]byte{0xcc}, nil, onewire.WeakPullup)
			if err == nil {
				t.Fatal("expected error")
			}
			var be onewire.BusError
			if !errors.As(err, &be) || !be.BusError() {
				t.Fatalf("expected a bus error, got %v", err)
			}
			var s onewire.ShortedBusError
			if (errors.As(err, &s) && s.IsShorted()) != tc.shorted {
				t.Fatalf("shorted mismatch for %v", err)
			}
			if d.err != nil {
				t.Fatal("bus errors must not be persistent")
			}
		})
	}
}

func TestSearchTriplet(t *testing.T) {
	for _, tc := range []struct {
		direction byte
		status    byte
		want      onewire.TripletResult
	}{
		{0, 0x00, onewire.TripletResult{GotZero: true, GotOne: true}},
		{1, stDIR, onewire.TripletResult{GotZero: true, GotOne: true, Taken: 1}},
		{0, stTSB, onewire.TripletResult{GotZero: true}},
		{1, stSBR | stDIR, onewire.TripletResult{GotOne: true, Taken: 1}},
	} {
		dir := byte(0)
		if tc.direction != 0 {
			dir = 0x80
		}
		ops := append(initOps(),
			i2ctest.IO{Addr: addr, W: []byte{cmd1WTriplet, dir}},
			i2ctest.IO{Addr: addr, R: []byte{tc.status}},
		)
		d, err := New(&i2ctest.Playback{Ops: ops}, addr, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := d.SearchTriplet(tc.direction)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("status %#x mismatch (-want +got):\n%s", tc.status, diff)
		}
	}
}

func TestEncodeConfig(t *testing.T) {
	for _, tc := range []struct{ in, want byte }{
		{0x00, 0xf0},
		{cfgAPU, 0xe1},
		{cfgAPU | cfgSPU, 0xa5},
		{cfgAPU | cfg1WS, 0x69},
		{0x0f, 0x0f},
	} {
		if got := encodeConfig(tc.in); got != tc.want {
			t.Fatalf("encodeConfig(%#x) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestVariant_String(t *testing.T) {
	for v, want := range map[Variant]string{
		DS2482x100:  "DS2482-100",
		DS2482x800:  "DS2482-800",
		DS2483:      "DS2483",
		Variant(10): "Variant(10)",
	} {
		if s := v.String(); s != want {
			t.Fatalf("%d: %q != %q", v, s, want)
		}
	}
}

func TestChannelSelect(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: addr, W: []byte{cmdChannelSelect, 0xc3}, R: []byte{0xa3}},
			{Addr: addr, W: []byte{cmdChannelSelect, 0x87}, R: []byte{0x87}},
			{Addr: addr, W: []byte{cmdChannelSelect, 0xf0}, R: []byte{0xb1}},
		},
	}
	d := &Dev{i2c: &i2c.Dev{Bus: bus, Addr: addr}, variant: DS2482x800}
	if err := d.ChannelSelect(3); err != nil {
		t.Fatal(err)
	}
	// Clamped to the last channel.
	if err := d.ChannelSelect(9); err != nil {
		t.Fatal(err)
	}
	if err := d.ChannelSelect(-1); err == nil {
		t.Fatal("expected read back mismatch")
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}

	d.variant = DS2483
	if err := d.ChannelSelect(2); err != nil {
		t.Fatal(err)
	}
}
