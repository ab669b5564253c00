package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/midi/midimsg"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/leandrodaf/midibridge/sdk/midi"
)

func main() {
	log := logger.NewDevelopmentLogger()

	driver, err := midi.NewDriver(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI driver", log.Field().Error("error", err))
		return
	}
	defer driver.Close()

	devices, err := driver.Inputs()
	if err != nil || len(devices) == 0 {
		log.Error("No MIDI inputs found or error listing inputs", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI inputs:", devices)

	in, err := driver.OpenInput(devices[0].Name)
	if err != nil {
		log.Error("Failed to open MIDI input", log.Field().Error("error", err))
		return
	}

	stop, err := in.Listen(func(deltaTime float64, msg []byte) {
		log.Info("MIDI message",
			log.Field().Float64("deltaTime", deltaTime),
			log.Field().String("bytes", midimsg.Hex(msg)),
		)
	})
	if err != nil {
		log.Error("Failed to listen", log.Field().Error("error", err))
		return
	}
	defer stop()

	fmt.Println("Capturing MIDI messages... Press Ctrl+C to exit.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}
