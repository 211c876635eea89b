// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds2490

import (
	"fmt"
	"unicode/utf16"

	"github.com/ardnew/softusb/device"
)

// USB identity of the emulated DS1490F 2-in-1 fob.
const (
	VendorID      = 0x04fa // Dallas Semiconductor
	ProductID     = 0x2490
	DeviceRelease = 0x0200
	USBRelease    = 0x0200
	MaxPacketEP0  = 64
)

// Endpoint numbers.
const (
	EPControl = 0x0
	EPStatus  = 0x1 // interrupt IN
	EPDataOut = 0x2 // bulk OUT
	EPDataIn  = 0x3 // bulk IN
)

// StatusMaxPacket is the maximum packet size of the status endpoint.
const StatusMaxPacket = 32

// AltSetting describes one alternate setting of the bridge interface.
type AltSetting struct {
	PollInterval  uint8  // status endpoint polling interval in ms
	BulkMaxPacket uint16 // data endpoints max packet size
}

// AltSettings lists the alternate settings of interface 0.
var AltSettings = [...]AltSetting{
	{PollInterval: 10, BulkMaxPacket: 16},
	{PollInterval: 10, BulkMaxPacket: 64},
	{PollInterval: 1, BulkMaxPacket: 16},
	{PollInterval: 1, BulkMaxPacket: 64},
}

// DeviceDescriptorSize is the size of a device descriptor in bytes.
const DeviceDescriptorSize = device.DeviceDescriptorSize

// maxStringUnits is the number of UTF-16 code units that fit in a string
// descriptor, whose length is a single byte.
const maxStringUnits = (255 - 2) / 2

// DeviceDescriptor returns the device descriptor. String indexes are set for
// as many of manufacturer, product and serial number as strings are
// configured.
func (d *Dev) DeviceDescriptor() [DeviceDescriptorSize]byte {
	d.Lock()
	defer d.Unlock()
	dd := device.DeviceDescriptor{
		USBVersion:        USBRelease,
		DeviceClass:       device.ClassVendor,
		DeviceSubClass:    device.ClassVendor,
		DeviceProtocol:    device.ClassVendor,
		MaxPacketSize0:    MaxPacketEP0,
		VendorID:          VendorID,
		ProductID:         ProductID,
		DeviceVersion:     DeviceRelease,
		NumConfigurations: 1,
	}
	idx := []*uint8{&dd.ManufacturerIndex, &dd.ProductIndex, &dd.SerialNumberIndex}
	for i := 0; i < len(idx) && i < len(d.strings); i++ {
		*idx[i] = uint8(i + 1)
	}
	var b [DeviceDescriptorSize]byte
	dd.MarshalTo(b[:])
	return b
}

// ConfigurationDescriptor returns the configuration descriptor, followed by
// the interface and endpoint descriptors of every alternate setting.
func ConfigurationDescriptor() []byte {
	perAlt := device.InterfaceDescriptorSize + 3*device.EndpointDescriptorSize
	b := make([]byte, device.ConfigurationDescriptorSize+len(AltSettings)*perAlt)
	c := device.ConfigurationDescriptor{
		TotalLength:        uint16(len(b)),
		NumInterfaces:      1,
		ConfigurationValue: 1,
		Attributes:         device.ConfigAttrBusPowered | device.ConfigAttrSelfPowered | device.ConfigAttrRemoteWakeup,
		MaxPower:           50, // 100mA
	}
	n := c.MarshalTo(b)
	for alt, s := range AltSettings {
		iface := device.InterfaceDescriptor{
			AlternateSetting:  uint8(alt),
			NumEndpoints:      3,
			InterfaceClass:    device.ClassVendor,
			InterfaceSubClass: device.ClassVendor,
			InterfaceProtocol: device.ClassVendor,
		}
		n += iface.MarshalTo(b[n:])
		for _, ep := range []device.EndpointDescriptor{
			{EndpointAddress: device.EndpointDirectionIn | EPStatus, Attributes: device.EndpointTypeInterrupt, MaxPacketSize: StatusMaxPacket, Interval: s.PollInterval},
			{EndpointAddress: device.EndpointDirectionOut | EPDataOut, Attributes: device.EndpointTypeBulk, MaxPacketSize: s.BulkMaxPacket},
			{EndpointAddress: device.EndpointDirectionIn | EPDataIn, Attributes: device.EndpointTypeBulk, MaxPacketSize: s.BulkMaxPacket},
		} {
			n += ep.MarshalTo(b[n:])
		}
	}
	return b
}

// StringDescriptor returns string descriptor index encoded as UTF-16LE.
//
// Index 0 is the language table. ErrDescriptorNotFound is returned for any
// index past the configured strings. Strings too long for a descriptor are
// cut on a character boundary.
func (d *Dev) StringDescriptor(index uint8) ([]byte, error) {
	d.Lock()
	defer d.Unlock()
	if index == 0 {
		b := make([]byte, 4)
		return b[:device.LanguageDescriptorTo(b, device.LangIDUSEnglish)], nil
	}
	i := int(index) - 1
	if i >= len(d.strings) {
		d.log.Debug("string descriptor not found", "index", index)
		return nil, fmt.Errorf("%w: string %d", ErrDescriptorNotFound, index)
	}
	units := utf16.Encode([]rune(d.strings[i]))
	if len(units) > maxStringUnits {
		units = units[:maxStringUnits]
		// Never leave half of a surrogate pair.
		if utf16.IsSurrogate(rune(units[len(units)-1])) && units[len(units)-1] < 0xdc00 {
			units = units[:len(units)-1]
		}
	}
	b := make([]byte, 2+2*len(units))
	b[0] = byte(len(b))
	b[1] = device.DescriptorTypeString
	for j, u := range units {
		b[2+2*j] = byte(u)
		b[3+2*j] = byte(u >> 8)
	}
	return b, nil
}
