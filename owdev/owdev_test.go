// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owdev

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/GermanBionicSystems/microlan/common"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/onewire"
)

func TestROM(t *testing.T) {
	for _, tc := range []struct {
		name string
		id   Identity
		want [ROMSize]byte
	}{
		{
			name: "bridge",
			id:   New(DS2409, [SerialSize]byte{0x50, 0x6f, 0x43, 0x20, 0x7c, 0x7c}),
			want: [ROMSize]byte{0xb5, 0x50, 0x6f, 0x43, 0x20, 0x7c, 0x7c, 0x1f},
		},
		{
			name: "ds1996",
			id:   NewDS1996([SerialSize]byte{0x47, 0x54, 0x46, 0x4f, 0x21, 0x21}),
			want: [ROMSize]byte{0x80, 0x47, 0x54, 0x46, 0x4f, 0x21, 0x21, 0x0c},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.id.ROM()); diff != "" {
				t.Errorf("ROM() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestROM_checksum(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for n := 0; n < 100; n++ {
		var serial [SerialSize]byte
		r.Read(serial[:])
		id := New(Family(r.Intn(256)), serial)
		rom := id.ROM()
		// The CRC covers the family code then the serial, as sent on the wire.
		wire := append([]byte{byte(id.Family())}, serial[:]...)
		if want := common.CRC8(wire); rom[0] != want {
			t.Fatalf("%s: rom[0]=%#02x, CRC8(family, serial)=%#02x", id, rom[0], want)
		}
		if rom[7] != byte(id.Family()) || rom[1] != serial[0] || rom[6] != serial[5] {
			t.Fatalf("%s: rom=% x", id, rom)
		}
		// A CRC8 appended to its input leaves no residue.
		if res := common.CRC8(append(wire, rom[0])); res != 0 {
			t.Fatalf("%s: residue %#02x", id, res)
		}
		var addr [ROMSize]byte
		binary.LittleEndian.PutUint64(addr[:], uint64(id.Address()))
		if !onewire.CheckCRC(addr[:]) {
			t.Fatalf("%s: address fails onewire.CheckCRC", id)
		}
	}
}

func TestAddress(t *testing.T) {
	id := New(DS18B20, [SerialSize]byte{0xac, 0x41, 0x0e, 0x07, 0x00, 0x00})
	var want onewire.Address = 0x740000070e41ac28
	if a := id.Address(); a != want {
		t.Fatalf("Address() = %#016x, want %#016x", uint64(a), uint64(want))
	}
	got, err := FromAddress(want)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("FromAddress() = %s, want %s", got, id)
	}
	if s := id.String(); s != "DS18B20{0x740000070e41ac28}" {
		t.Fatal(s)
	}
}

func TestFromAddress_badCRC(t *testing.T) {
	if _, err := FromAddress(0x750000070e41ac28); err == nil {
		t.Fatal("expected CRC error")
	}
}

func TestParse(t *testing.T) {
	id, err := Parse(DS2401, []byte{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if id.Family() != DS2401 || id.Serial() != [SerialSize]byte{1, 2, 3, 4, 5, 6} {
		t.Fatalf("unexpected identity %s", id)
	}
	if _, err := Parse(DS2401, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected short serial to fail")
	}
}

func TestFamily_String(t *testing.T) {
	if s := DS1996.String(); s != "DS1996" {
		t.Fatal(s)
	}
	if s := Family(0x42).String(); s != "Family(0x42)" {
		t.Fatal(s)
	}
}
