// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// microlan emulates a DS2490 USB to 1-wire bridge and replays a request
// script against it.
//
// Usage:
//
//	microlan [options] [script]
//
// The script is read from stdin when no file is given. Every packet the
// bridge sends is printed on stdout as "ack", "status <hex>" or "data <hex>".
//
// The 1-wire bus behind the bridge is a DS2482/DS2483 when -i2c is set, an
// emulated bus populated with -dev devices otherwise. Without either, a search
// reports a fixed placeholder ROM code.
//
// Options:
//
//	-v              Enable verbose (debug) logging
//	-json           Use JSON log format
//	-dev fam:serial Attach an emulated device, e.g. 0c:4754464f2121 (repeatable)
//	-i2c name       I²C bus of a DS248x bus master, "" for the first one
//	                (default "-", none)
//	-addr addr      I²C address of the DS248x (default 0x18)
//	-alt n          Alternate setting selected before replay
//	-leds           Show the bridge state as terminal lamps on stderr
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/GermanBionicSystems/microlan/ds248x"
	"github.com/GermanBionicSystems/microlan/ds2490"
	"github.com/GermanBionicSystems/microlan/ds2490/ds2490test"
	"github.com/GermanBionicSystems/microlan/indicator"
	"github.com/GermanBionicSystems/microlan/owbus"
	"github.com/GermanBionicSystems/microlan/owdev"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/host/v3"
)

// devices implements flag.Value for the repeatable -dev flag.
type devices []owdev.Identity

func (d *devices) String() string {
	s := make([]string, 0, len(*d))
	for _, id := range *d {
		s = append(s, id.String())
	}
	return strings.Join(s, ",")
}

func (d *devices) Set(v string) error {
	id, err := parseDevice(v)
	if err != nil {
		return err
	}
	*d = append(*d, id)
	return nil
}

func mainImpl() error {
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	var devs devices
	flag.Var(&devs, "dev", "emulated device as family:serial in hex (repeatable)")
	i2cName := flag.String("i2c", "-", "I²C bus of a DS248x bus master, \"\" for the first one, \"-\" for none")
	addr := flag.Uint("addr", 0x18, "I²C address of the DS248x")
	alt := flag.Uint("alt", 0, "alternate setting selected before replay")
	leds := flag.Bool("leds", false, "show the bridge state as terminal lamps")
	flag.Parse()

	if flag.NArg() > 1 {
		return errors.New("too many arguments")
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, hopts)
	if *jsonLog {
		h = slog.NewJSONHandler(os.Stderr, hopts)
	}
	logger := slog.New(h)

	in := io.Reader(os.Stdin)
	if flag.NArg() == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	a, err := toUint16("addr", *addr)
	if err != nil {
		return err
	}
	altSetting, err := toUint16("alt", *alt)
	if err != nil {
		return err
	}
	bus, err := openBus(*i2cName, a, devs)
	if err != nil {
		return err
	}
	if bus != nil {
		logger.Info("1-wire bus", "bus", bus.String())
	}

	rec := &ds2490test.Record{Transport: &printer{w: os.Stdout}}
	opts := ds2490.DefaultOpts
	opts.Bus = bus
	opts.Strings = []string{"Dallas Semiconductor", "DS1490F 2-in-1 Fob"}
	opts.Logger = logger
	d, err := ds2490.New(rec, &opts)
	if err != nil {
		return err
	}
	defer d.Halt()
	logger.Info("bridge", "dev", d.String())

	var show func()
	if *leds {
		ind := indicator.New(&indicator.Opts{Out: colorable.NewColorableStderr()})
		defer ind.Halt()
		show = func() {
			if err := ind.Update(lamps(d)...); err != nil {
				logger.Warn("indicator", "err", err)
			}
		}
	}

	if altSetting != 0 {
		if err := d.SetInterface(0, altSetting); err != nil {
			return err
		}
	}
	if err := replay(d, in, os.Stdout, show); err != nil {
		return err
	}
	logger.Info("done",
		"acks", rec.Count(ds2490test.Ack),
		"status", rec.Count(ds2490test.Status),
		"data", rec.Count(ds2490test.Data))
	return nil
}

// toUint16 narrows the value of a numeric flag, rejecting values that do not
// fit instead of truncating them.
func toUint16(name string, v uint) (uint16, error) {
	if v > 0xffff {
		return 0, fmt.Errorf("-%s %d is out of range", name, v)
	}
	return uint16(v), nil
}

// openBus returns the 1-wire bus the bridge searches, or nil.
func openBus(i2cName string, addr uint16, devs []owdev.Identity) (onewire.Bus, error) {
	if i2cName == "-" {
		if len(devs) == 0 {
			return nil, nil
		}
		return owbus.New(devs...), nil
	}
	if len(devs) != 0 {
		return nil, errors.New("-dev and -i2c are mutually exclusive")
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(i2cName)
	if err != nil {
		return nil, err
	}
	m, err := ds248x.New(b, addr, &ds248x.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, err
	}
	return m, nil
}

// lamps maps the bridge state to indicator lamps.
func lamps(d *ds2490.Dev) []indicator.Lamp {
	s := d.Status()
	return []indicator.Lamp{
		{Name: "ready", On: d.Ready(), Color: indicator.Green},
		{Name: "search", On: d.SearchPending(), Color: indicator.Yellow},
		{Name: "spu", On: s.StrongPullup, Color: indicator.Red},
		{Name: "od", On: s.Speed == ds2490.Overdrive, Color: indicator.Blue},
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "microlan: %s.\n", err)
		os.Exit(1)
	}
}
