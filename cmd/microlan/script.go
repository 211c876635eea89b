// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/microlan/ds2490"
	"github.com/GermanBionicSystems/microlan/owdev"
)

// printer implements ds2490.Transport by printing each packet on a line.
type printer struct {
	w io.Writer
}

func (p *printer) Ack() error {
	_, err := io.WriteString(p.w, "ack\n")
	return err
}

func (p *printer) SendStatus(b []byte) error {
	_, err := fmt.Fprintf(p.w, "status %s\n", hex.EncodeToString(b))
	return err
}

func (p *printer) SendData(b []byte) error {
	_, err := fmt.Fprintf(p.w, "data %s\n", hex.EncodeToString(b))
	return err
}

// replay runs a request script against d.
//
// Each line is one of:
//
//	ctrl <value> [index]
//	comm <value> [index]
//	mode <value> [index]
//	status
//	data
//	out <hex>
//	setif <interface> <alt>
//	string <index>
//
// Numbers are in Go syntax (0x prefix for hex). Blank lines and lines
// starting with # are skipped. Stalled requests print "stall" on w. show, if
// not nil, is called after every line.
func replay(d *ds2490.Dev, r io.Reader, w io.Writer, show func()) error {
	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := step(d, strings.Fields(line), w); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if show != nil {
			show()
		}
	}
	return s.Err()
}

var classes = map[string]ds2490.Class{
	"ctrl": ds2490.ControlClass,
	"comm": ds2490.CommunicationClass,
	"mode": ds2490.ModeClass,
}

func step(d *ds2490.Dev, f []string, w io.Writer) error {
	args := f[1:]
	switch f[0] {
	case "ctrl", "comm", "mode":
		v, err := parseArgs(args, 1, 2)
		if err != nil {
			return err
		}
		req := ds2490.Request{Class: classes[f[0]], Value: v[0]}
		if len(v) == 2 {
			req.Index = v[1]
		}
		return d.HandleRequest(req)
	case "status":
		if len(args) != 0 {
			return errors.New("status takes no argument")
		}
		return d.PollStatus()
	case "data":
		if len(args) != 0 {
			return errors.New("data takes no argument")
		}
		return d.PollData()
	case "out":
		if len(args) != 1 {
			return errors.New("out takes one hex argument")
		}
		b, err := hex.DecodeString(args[0])
		if err != nil {
			return err
		}
		d.HandleDataOut(b)
		return nil
	case "setif":
		v, err := parseArgs(args, 2, 2)
		if err != nil {
			return err
		}
		return stall(d.SetInterface(v[0], v[1]), w)
	case "string":
		v, err := parseArgs(args, 1, 1)
		if err != nil {
			return err
		}
		if v[0] > 0xff {
			return fmt.Errorf("string index %d out of range", v[0])
		}
		b, err := d.StringDescriptor(uint8(v[0]))
		if err != nil {
			return stall(err, w)
		}
		_, err = fmt.Fprintf(w, "descriptor %s\n", hex.EncodeToString(b))
		return err
	default:
		return fmt.Errorf("unknown command %q", f[0])
	}
}

// stall prints a stall for the errors a host sees as a STALL handshake.
func stall(err error, w io.Writer) error {
	if errors.Is(err, ds2490.ErrStall) || errors.Is(err, ds2490.ErrDescriptorNotFound) {
		_, err = io.WriteString(w, "stall\n")
	}
	return err
}

func parseArgs(args []string, lo, hi int) ([]uint16, error) {
	if len(args) < lo || len(args) > hi {
		return nil, fmt.Errorf("expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	v := make([]uint16, len(args))
	for i, a := range args {
		n, err := strconv.ParseUint(a, 0, 16)
		if err != nil {
			return nil, err
		}
		v[i] = uint16(n)
	}
	return v, nil
}

// parseDevice parses a device given as family:serial, both in hex.
func parseDevice(s string) (owdev.Identity, error) {
	fam, serial, ok := strings.Cut(s, ":")
	if !ok {
		return owdev.Identity{}, fmt.Errorf("device %q: expected family:serial", s)
	}
	f, err := strconv.ParseUint(fam, 16, 8)
	if err != nil {
		return owdev.Identity{}, fmt.Errorf("device %q: %w", s, err)
	}
	b, err := hex.DecodeString(serial)
	if err != nil {
		return owdev.Identity{}, fmt.Errorf("device %q: %w", s, err)
	}
	return owdev.Parse(owdev.Family(f), b)
}
