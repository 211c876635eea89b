// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owdev models the identity of a device attached to a 1-wire bus.
//
// A device is identified by a family code and a 48-bit serial number. Its
// 64-bit ROM code adds a CRC8 over both, so that a bus master can detect a
// corrupted search result.
//
// The byte order of a ROM code depends on who consumes it. ROM returns the
// order used by the DS2490 USB bridge (CRC first, family last), while
// Address returns the onewire.Address used by periph.io drivers.
package owdev
