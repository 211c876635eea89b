// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owbus

import (
	"errors"
	"sort"
	"testing"

	"github.com/GermanBionicSystems/microlan/owdev"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/onewire"
)

var (
	thermo = owdev.New(owdev.DS18B20, [owdev.SerialSize]byte{0xac, 0x41, 0x0e, 0x07, 0x00, 0x00})
	button = owdev.NewDS1996([owdev.SerialSize]byte{0x47, 0x54, 0x46, 0x4f, 0x21, 0x21})
	serial = owdev.New(owdev.DS2401, [owdev.SerialSize]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
)

func TestSearch(t *testing.T) {
	for _, tc := range []struct {
		name    string
		devices []owdev.Identity
	}{
		{name: "single", devices: []owdev.Identity{thermo}},
		{name: "two", devices: []owdev.Identity{thermo, button}},
		{name: "three", devices: []owdev.Identity{serial, thermo, button}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := New(tc.devices...)
			got, err := b.Search(false)
			if err != nil {
				t.Fatal(err)
			}
			var want []onewire.Address
			for _, d := range tc.devices {
				want = append(want, d.Address())
			}
			sortAddresses(got)
			sortAddresses(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Search() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearch_alarmOnly(t *testing.T) {
	b := New(thermo, button)
	// No device answers the first triplet.
	got, err := b.Search(true)
	if err == nil || err.Error() != "onewire: devices disappeared during search" {
		t.Fatalf("alarm search error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("alarm search found %v", got)
	}
}

func TestTx_readROM(t *testing.T) {
	b := New(thermo)
	var r [8]byte
	if err := b.Tx([]byte{CmdReadROM}, r[:], onewire.WeakPullup); err != nil {
		t.Fatal(err)
	}
	want := [8]byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}
	if r != want {
		t.Fatalf("READ ROM = %#v, want %#v", r, want)
	}
}

func TestTx_function(t *testing.T) {
	b := New(thermo)
	w := append([]byte{CmdMatchROM}, 0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74, 0x44)
	if err := b.Tx(w, nil, onewire.StrongPullup); err != nil {
		t.Fatal(err)
	}
	if b.Pullup() != onewire.StrongPullup {
		t.Fatal("strong pull-up not retained")
	}
	r := make([]byte, 9)
	if err := b.Tx([]byte{CmdSkipROM, 0xbe}, r, onewire.WeakPullup); err != nil {
		t.Fatal(err)
	}
	for _, c := range r {
		if c != 0xff {
			t.Fatalf("expected idle bus, got %#v", r)
		}
	}
	if err := b.Tx([]byte{CmdMatchROM, 0x28}, nil, onewire.WeakPullup); err == nil {
		t.Fatal("expected short MATCH ROM to fail")
	}
}

func TestTx_empty(t *testing.T) {
	b := New()
	err := b.Tx([]byte{CmdSearchROM}, nil, onewire.WeakPullup)
	if err == nil {
		t.Fatal("expected no presence")
	}
	if be, ok := err.(onewire.BusError); !ok || !be.BusError() {
		t.Fatalf("expected a bus error, got %T", err)
	}
	var nd onewire.NoDevicesError
	if !errors.As(err, &nd) || !nd.NoDevices() {
		t.Fatalf("expected a no devices error, got %T", err)
	}
	// onewire.Search passes the error through.
	if _, err := b.Search(false); !errors.As(err, &nd) {
		t.Fatalf("Search() = %v", err)
	}
}

func TestAttachDetach(t *testing.T) {
	b := New(thermo)
	b.Attach(button)
	if n := len(b.Devices()); n != 2 {
		t.Fatalf("expected 2 devices, got %d", n)
	}
	if !b.Detach(thermo) {
		t.Fatal("Detach() did not find device")
	}
	if b.Detach(thermo) {
		t.Fatal("Detach() found a removed device")
	}
	if diff := cmp.Diff([]owdev.Identity{button}, b.Devices(), cmp.AllowUnexported(owdev.Identity{})); diff != "" {
		t.Fatalf("Devices() mismatch (-want +got):\n%s", diff)
	}
	if s := b.String(); s != "owbus(1)" {
		t.Fatal(s)
	}
}

func sortAddresses(a []onewire.Address) {
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
}
