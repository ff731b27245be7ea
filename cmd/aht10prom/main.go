// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// aht10prom exposes AHT10 readings as Prometheus gauges.
package main

import (
	"flag"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/dasbahn/aht10"
	"github.com/dasbahn/aht10/meteo"
)

// CLI args
var (
	listenAddr   = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests.")
	readInterval = flag.Duration("read-int", 30*time.Second, "time interval between sensor reads")
	busName      = flag.String("bus", "", "I²C bus name, empty for the first available")
	devAddr      = flag.String("addr", "0x38", "7-bit device address")
)

// metrics to expose to Prometheus
var (
	gaugeHumidity    = newGauge("air_humidity", "Relative Humidity (units: %RH)")
	gaugeTemperature = newGauge("air_temperature", "Air Temperature (units: degrees Celsius)")
	gaugeDewPoint    = newGauge("air_dew_point", "Dew Point (units: degrees Celsius)")
	gaugeHeatIndex   = newGauge("air_heat_index", "Heat Index (units: degrees Celsius)")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"address"},
	)
}

func init() {
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeDewPoint)
	prometheus.MustRegister(gaugeHeatIndex)

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	// logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	flag.Parse()

	addr, err := strconv.ParseUint(*devAddr, 0, 16)
	if err != nil {
		log.Fatalf("invalid address %q: %s", *devAddr, err)
	}

	if _, err := host.Init(); err != nil {
		log.Fatalf("failed to initialize host: %s", err)
	}
	b, err := i2creg.Open(*busName)
	if err != nil {
		log.Fatalf("failed to open I²C: %s", err)
	}
	defer b.Close()

	d, err := aht10.NewI2C(b, uint16(addr), nil)
	if err != nil {
		log.Fatalf("failed to initialize AHT10: %s", err)
	}
	label := *devAddr

	go func() {
		// Expose the registered metrics via HTTP.
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(*listenAddr, nil))
	}()

	for {
		readAndPublish(d, label)
		time.Sleep(*readInterval)
	}
}

// readAndPublish takes one combined reading so humidity, temperature and the
// derived metrics all describe the same physical sample.
func readAndPublish(d *aht10.Dev, label string) {
	e := physic.Env{}
	if err := d.Sense(&e); err != nil {
		log.Errorf("failed to read from sensor: %s", err)
		return
	}

	tC := e.Temperature.Celsius()
	rh := float64(e.Humidity) / float64(physic.PercentRH)
	dp := meteo.DewPointC(tC, rh)
	hi := meteo.HeatIndexC(tC, rh)

	log.Printf("Received: %.2f°C %.2f%%RH dew %.2f°C heat index %.2f°C", tC, rh, dp, hi)

	gaugeTemperature.WithLabelValues(label).Set(tC)
	gaugeHumidity.WithLabelValues(label).Set(rh)
	gaugeDewPoint.WithLabelValues(label).Set(dp)
	gaugeHeatIndex.WithLabelValues(label).Set(hi)
}
