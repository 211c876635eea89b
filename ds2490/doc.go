// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds2490 emulates the protocol of the Maxim DS2490 USB to 1-wire
// bridge, as found in the DS1490F 2-in-1 fob.
//
// The package is the device side of the bridge. A USB device emulation owns
// the endpoints and calls into a Dev as requests arrive:
//
//   - vendor requests on the control endpoint go to HandleRequest, one per
//     command class (control, communication, mode);
//   - polls of the interrupt endpoint go to PollStatus;
//   - polls of the bulk IN endpoint go to PollData.
//
// Dev answers through a Transport: an empty acknowledgment for every control
// transfer, and status or data packets when a search result is pending.
//
// Communication commands are recognized by mask: a command matches when all
// the bits of its mask are set in the request value. Masks overlap, so they
// are tested in a fixed priority order and the first match wins.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS2490.pdf
package ds2490
