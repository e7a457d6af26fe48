//go:build rp2040

package main

import "time"

const (
	// Sampling configuration
	SAMPLE_PERIOD = 250 * time.Millisecond // Delay between reports
	SEQUENCE      = 3                      // Sequencer index reported to the sampler

	// ADC configuration
	ADC_TEMP_CHANNEL = 4 // RP2040 internal temperature sensor input

	// Serial configuration
	// "Temperature %3d *C\r" is 19 bytes, 4 lines/sec = 76 bytes/sec.
	// 9600 baud 8N1 moves 960 bytes/sec.
	UART_BAUD_RATE = 9600
)
