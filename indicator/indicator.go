// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package indicator renders a row of status lamps on a terminal using ANSI
// color codes.
//
// The emulated fob has no LED of its own; this stands in for one while
// watching a host driver talk to it.
package indicator

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Lamp is one status light.
type Lamp struct {
	Name  string
	On    bool
	Color color.NRGBA // when lit
}

// Opts represents the options available for the indicator.
type Opts struct {
	Out     io.Writer        // defaults to a colorable stdout
	Palette *ansi256.Palette // defaults to ansi256.Default
	Off     *color.NRGBA     // unlit lamps, defaults to Gray

	_ struct{}
}

// Common lamp colors.
var (
	Green  = color.NRGBA{0x00, 0xc0, 0x00, 0xff}
	Yellow = color.NRGBA{0xe0, 0xc0, 0x00, 0xff}
	Red    = color.NRGBA{0xe0, 0x00, 0x00, 0xff}
	Blue   = color.NRGBA{0x20, 0x40, 0xff, 0xff}
	Gray   = color.NRGBA{0x30, 0x30, 0x30, 0xff}
)

// Dev is a lamp row that outputs to the console.
type Dev struct {
	w       io.Writer
	palette ansi256.Palette
	off     color.NRGBA

	last []Lamp
	buf  bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		w:       opts.Out,
		palette: *p,
		off:     Gray,
	}
	if d.w == nil {
		d.w = colorable.NewColorableStdout()
	}
	if opts.Off != nil {
		d.off = *opts.Off
	}
	return d
}

func (d *Dev) String() string {
	return "Indicator"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors and moves to the next line.
func (d *Dev) Halt() error {
	_, err := io.WriteString(d.w, "\n\033[0m")
	return err
}

// Update redraws the row in place if any lamp changed since the last call.
func (d *Dev) Update(lamps ...Lamp) error {
	if len(lamps) == 0 {
		return errors.New("indicator: no lamp")
	}
	if equal(d.last, lamps) {
		return nil
	}
	d.last = append(d.last[:0], lamps...)
	return d.refresh()
}

func (d *Dev) refresh() error {
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	for i, l := range d.last {
		if i != 0 {
			_ = d.buf.WriteByte(' ')
		}
		c := d.off
		if l.On {
			c = l.Color
		}
		_, _ = io.WriteString(&d.buf, d.palette.Block(c))
		_, _ = fmt.Fprintf(&d.buf, "\033[0m %s", l.Name)
	}
	_, _ = d.buf.WriteString("\033[0m ")
	_, err := d.buf.WriteTo(d.w)
	return err
}

func equal(a, b []Lamp) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ fmt.Stringer = &Dev{}
