package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/neospi/internal/config"
	"github.com/coreman2200/neospi/internal/effect"
	"github.com/coreman2200/neospi/internal/led"
	"github.com/coreman2200/neospi/internal/preview"
	"github.com/coreman2200/neospi/internal/sched"
	"github.com/coreman2200/neospi/internal/strip"
)

func main() {
	// The strip is driven from the main goroutine; pin it so the realtime
	// class set on its thread sticks.
	runtime.LockOSThread()

	def := config.Default()

	// ---- Flags (config file overrides them where set) ----
	var (
		configPath  = flag.String("config", "", "path to a YAML config file")
		writeConfig = flag.String("write-config", "", "save the effective config to this path")
		driver      = flag.String("driver", def.Driver, "driver: spi | spidev | sim")
		dev         = flag.String("dev", def.SPI.Dev, "SPI device")
		leds        = flag.Int("leds", def.LEDs, "number of pixels on the strip")
		variant     = flag.String("variant", def.Variant, "strip type: ws2812b | sk6812rgbw")
		speedHz     = flag.Int("speed-hz", def.SPI.SpeedHz, "SPI clock in Hz")
		resetUs     = flag.Int("reset-us", def.SPI.ResetUs, "idle time ahead of each frame in µs")
		frameMs     = flag.Int("frame-ms", def.FrameMs, "delay between animation frames in ms")
		effectName  = flag.String("effect", def.Effect, "animation: show | cylon | droplets")
		realtime    = flag.Bool("realtime", false, "run the refresh thread at SCHED_FIFO")
		priority    = flag.Int("priority", def.Priority, "SCHED_FIFO priority with -realtime")
		addr        = flag.String("addr", "", "preview server listen address, e.g. :8080")
		seed        = flag.Uint64("seed", 0, "random seed, 0 picks one")
		debug       = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	flags := config.Config{
		Driver:   *driver,
		LEDs:     *leds,
		Variant:  *variant,
		Effect:   *effectName,
		FrameMs:  *frameMs,
		Seed:     *seed,
		Realtime: *realtime,
		Priority: *priority,
		Addr:     *addr,
		SPI:      config.SPI{Dev: *dev, SpeedHz: *speedHz, ResetUs: *resetUs},
	}

	// ---- Load config (optional) ----
	var cfg *config.Config
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
		} else {
			cfg = c
		}
	}
	eff := cfg.Override(flags)
	if err := eff.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	v, err := eff.LEDVariant()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *writeConfig != "" {
		if err := config.Save(*writeConfig, &eff); err != nil {
			log.Fatal().Err(err).Str("path", *writeConfig).Msg("write config failed")
		}
		log.Info().Str("path", *writeConfig).Msg("effective config written")
	}

	os.Exit(run(eff, v))
}

func run(cfg config.Config, v led.Variant) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	asm := led.NewAssembler(v, cfg.BusSpeed(), cfg.ResetTime())
	open := opener(cfg, asm)

	var prio sched.Priority = sched.Nop{}
	if cfg.Realtime {
		prio = sched.Realtime{Priority: uint32(cfg.Priority)}
	}

	opts := strip.Options{
		Count:    cfg.LEDs,
		Variant:  v,
		Speed:    cfg.BusSpeed(),
		Reset:    cfg.ResetTime(),
		Open:     open,
		Priority: prio,
	}

	// ---- Preview server ----
	if cfg.Addr != "" {
		hub := preview.NewHub(cfg.LEDs, cfg.Driver)
		opts.OnRefresh = hub.Publish
		go func() {
			if err := preview.Serve(ctx, cfg.Addr, hub); err != nil {
				log.Error().Err(err).Str("addr", cfg.Addr).Msg("preview server stopped")
			}
		}()
	}

	s, err := strip.New(opts)
	if err != nil {
		log.Error().Err(err).Msg("strip setup failed")
		return 1
	}

	rng := effect.NewRand(cfg.Seed)
	e, err := effect.ByName(cfg.Effect, cfg.LEDs, rng)
	if err != nil {
		log.Error().Err(err).Msg("effect setup failed")
		return 1
	}

	log.Info().
		Str("driver", cfg.Driver).
		Str("variant", v.String()).
		Int("leds", cfg.LEDs).
		Int("frame_bytes", asm.FrameSize(cfg.LEDs)).
		Int("padding", asm.Padding()).
		Str("effect", e.Name()).
		Msg("starting")

	err = strip.Run(ctx, s, func(ctx context.Context) error {
		return effect.Run(ctx, s, e, cfg.FrameInterval())
	})
	if err != nil {
		log.Error().Err(err).Msg("strip stopped")
		return 1
	}
	log.Info().Uint64("frames", s.Frames()).Msg("done")
	return 0
}

func opener(cfg config.Config, asm *led.Assembler) led.Opener {
	return func() (led.Transport, error) {
		var (
			t     led.Transport
			bus   led.BusConfig
			maxTx int
			err   error
		)
		switch cfg.Driver {
		case "sim":
			return led.NewConsoleSim(asm, cfg.LEDs), nil
		case "spidev":
			var d *led.Spidev
			if d, err = led.OpenSpidev(cfg.BusConfig()); err == nil {
				t, bus = d, d.Config()
			}
		default:
			var d *led.SPI
			if d, err = led.OpenSPI(cfg.BusConfig()); err == nil {
				t, bus, maxTx = d, d.Config(), d.MaxTxSize()
			}
		}
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("dev", bus.Device).
			Str("speed", bus.Speed.String()).
			Int("bits", bus.BitsPerWord).
			Int("mode", int(bus.Mode)).
			Int("max_tx", maxTx).
			Int("frame_bytes", asm.FrameSize(cfg.LEDs)).
			Msg("spi bus open")
		return t, nil
	}
}
