// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package microlan is a container for a DS2490 USB to 1-wire bridge emulator
// and the 1-wire pieces around it.
//
// ds2490 answers the bridge's vendor requests and endpoint polls. The bus
// behind it is either owbus, an in-memory bus of emulated devices identified
// through owdev, or a real bus driven by a ds248x I²C bus master.
package microlan
