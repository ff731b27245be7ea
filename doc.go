// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package aht10 controls an AHT10 device over I²C.
// The sensor is a temperature and humidity sensor with a typical accuracy of ±2% RH and ±0.3°C.
// The aht10.Dev type implements the physic.SenseEnv interface.
//
// Unlike the AHT20 the device reports no CRC on most firmware revisions; when a
// seventh response byte is present it is discarded without validation.
//
// Every measurement is fully synchronous. With the default options a single
// read blocks for the ~100ms conversion settle plus up to 40 polls at 10ms
// each, so a worst case call takes on the order of half a second, and close to
// a full second when the plausibility retry fires. Device initialization adds
// a one-off ~340ms on construction.
//
// **Datasheet:** https://server4.eca.ir/eshop/AHT10/Aosong_AHT10_en_draft_0c.pdf
package aht10
