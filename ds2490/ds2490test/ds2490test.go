// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds2490test is meant to be used to test code driving or wrapping a
// ds2490.Dev.
package ds2490test

import (
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/microlan/ds2490"
)

// Channel identifies where a packet was sent.
type Channel int

// Channels a bridge answers on.
const (
	Ack Channel = iota
	Status
	Data
)

func (c Channel) String() string {
	switch c {
	case Ack:
		return "ack"
	case Status:
		return "status"
	case Data:
		return "data"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// IO registers one packet sent by the bridge.
type IO struct {
	Channel Channel
	B       []byte
}

func (io IO) String() string {
	if io.Channel == Ack {
		return "ack"
	}
	return fmt.Sprintf("%s % x", io.Channel, io.B)
}

// Record implements ds2490.Transport and records everything sent through it.
//
// If Transport is set, each packet is forwarded to it after being recorded.
type Record struct {
	sync.Mutex
	Transport ds2490.Transport
	Ops       []IO
}

// Ack implements ds2490.Transport.
func (r *Record) Ack() error {
	return r.record(Ack, nil)
}

// SendStatus implements ds2490.Transport.
func (r *Record) SendStatus(b []byte) error {
	return r.record(Status, b)
}

// SendData implements ds2490.Transport.
func (r *Record) SendData(b []byte) error {
	return r.record(Data, b)
}

// Count returns the number of packets recorded on a channel.
func (r *Record) Count(c Channel) int {
	r.Lock()
	defer r.Unlock()
	n := 0
	for _, op := range r.Ops {
		if op.Channel == c {
			n++
		}
	}
	return n
}

// Reset forgets everything recorded so far.
func (r *Record) Reset() {
	r.Lock()
	defer r.Unlock()
	r.Ops = nil
}

func (r *Record) record(c Channel, b []byte) error {
	r.Lock()
	defer r.Unlock()
	io := IO{Channel: c}
	if b != nil {
		io.B = append([]byte(nil), b...)
	}
	r.Ops = append(r.Ops, io)
	if r.Transport == nil {
		return nil
	}
	switch c {
	case Status:
		return r.Transport.SendStatus(b)
	case Data:
		return r.Transport.SendData(b)
	default:
		return r.Transport.Ack()
	}
}

// Failing implements ds2490.Transport and fails every call with Err.
type Failing struct {
	Err error
}

// Ack implements ds2490.Transport.
func (f *Failing) Ack() error { return f.Err }

// SendStatus implements ds2490.Transport.
func (f *Failing) SendStatus([]byte) error { return f.Err }

// SendData implements ds2490.Transport.
func (f *Failing) SendData([]byte) error { return f.Err }

var _ ds2490.Transport = &Record{}
var _ ds2490.Transport = &Failing{}
