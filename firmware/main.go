//go:build rp2040

//go:generate tinygo flash -target=pico

package main

import (
	"context"
	"machine"

	"github.com/itohio/gotemp/pkg/adc"
	"github.com/itohio/gotemp/pkg/console"
	"github.com/itohio/gotemp/pkg/sampler"
	"github.com/itohio/gotemp/pkg/thermo"
)

var uart = machine.UART0

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	loop := sampler.New(&rpSequencer{}, console.NewWriter(uart, "\r"),
		sampler.WithSequence(adc.SequenceID(SEQUENCE)),
		sampler.WithPeriod(SAMPLE_PERIOD),
		sampler.WithConverter(thermo.Convert),
		sampler.WithBanner(true),
	)

	// Never returns: there is no timeout and the context is never cancelled.
	if err := loop.Run(context.Background()); err != nil {
		println("sampler stopped:", err.Error())
	}
	select {}
}
