// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// aht10 reads an AHT10 humidity/temperature sensor and prints the calibrated
// values together with the derived dew point and heat index. With -scan it
// enumerates responding I²C addresses instead.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/dasbahn/aht10"
	"github.com/dasbahn/aht10/meteo"
)

var (
	busName = flag.String("bus", "", "I²C bus name, empty for the first available")
	addr    = flag.String("addr", "0x38", "7-bit device address")
	every   = flag.Duration("every", 0, "read continuously at this interval instead of once")
	scan    = flag.Bool("scan", false, "scan the bus for responding addresses and exit")
)

func main() {
	flag.Parse()

	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	b, err := i2creg.Open(*busName)
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	if *scan {
		scanBus(b)
		return
	}

	a, err := strconv.ParseUint(*addr, 0, 16)
	if err != nil {
		log.Fatalf("invalid address %q: %v", *addr, err)
	}
	d, err := aht10.NewI2C(b, uint16(a), nil)
	if err != nil {
		log.Fatalf("failed to initialize AHT10: %v", err)
	}

	if *every > 0 {
		ch, err := d.SenseContinuous(*every)
		if err != nil {
			log.Fatal(err)
		}
		defer d.Halt()
		for e := range ch {
			printEnv(e)
		}
		return
	}

	e := physic.Env{}
	if err := d.Sense(&e); err != nil {
		log.Fatal(err)
	}
	printEnv(e)

	// The derived metrics sample temperature and humidity again, separately.
	dp, err := d.DewPoint()
	if err != nil {
		log.Fatal(err)
	}
	hi, err := d.HeatIndex()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("dew point:  %6.2f°C\n", dp.Celsius())
	fmt.Printf("heat index: %6.2f°C\n", hi.Celsius())
}

func printEnv(e physic.Env) {
	tC := e.Temperature.Celsius()
	fmt.Printf("temperature: %6.2f°C (%6.2f°F)  humidity: %s\n", tC, meteo.Fahrenheit(tC), e.Humidity)
}

// scanBus probes every valid 7-bit address. A NACK just means nobody is
// home at that address.
func scanBus(b i2c.Bus) {
	found := 0
	for a := uint16(0x08); a <= 0x77; a++ {
		d := i2c.Dev{Bus: b, Addr: a}
		if err := d.Tx(nil, make([]byte, 1)); err != nil {
			continue
		}
		fmt.Printf("device present at %#02x\n", a)
		found++
	}
	if found == 0 {
		fmt.Println("no devices found")
	}
}
