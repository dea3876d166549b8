package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/woutdenolf/coilmq/config"
	"github.com/woutdenolf/coilmq/service/stomp"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

var (
	configFile           string
	generateSampleConfig bool
)

func init() {
	flag.StringVar(&configFile, "c", "coilmq.toml", "-c=coilmq.toml")
	flag.BoolVar(&generateSampleConfig, "gencfg", false, "-gencfg")

	flag.Parse()
}

func main() {
	func() {
		if generateSampleConfig {
			fs := afero.NewOsFs()
			f, err := fs.Create("coilmq.toml.example")
			if err != nil {
				panic(err)
			}
			defer f.Close()
			if err := config.WriteDefault(f); err != nil {
				panic(err)
			}
			os.Exit(1)
		}
	}()

	coilCfg := new(config.CoilConfig)
	if len(configFile) > 0 {
		fs := afero.NewOsFs()
		cfgData, err := afero.ReadFile(fs, configFile)
		if err != nil {
			panic(err)
		}
		if err := toml.Unmarshal(cfgData, coilCfg); err != nil {
			panic(err)
		}
	} else {
		panic(errors.New("coilmq config file not specified"))
	}
	coilCfg = coilCfg.MergeDefault()
	if err := coilCfg.Validate(); err != nil {
		panic(err)
	}

	startService(coilCfg)
}

func startService(cfg *config.CoilConfig) {
	s, err := stomp.NewServer(cfg)
	if err != nil {
		panic(err)
	}
	if err := s.Start(); err != nil {
		panic(err)
	}

	waiting(s)
}

func waiting(s *stomp.Server) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	sig := <-sigs
	log.Printf("terminating: %v", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
