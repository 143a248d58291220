/*
Extserver runs an extension channel session server
*/
package main

import (
	"flag"
	"log"
	"net"

	"github.com/HimbeerserverDE/extchannel"
	"github.com/HimbeerserverDE/extchannel/simworld"
)

func main() {
	confPath := flag.String("config", extchannel.DefaultConfigPath, "configuration file")
	flag.Parse()

	cfg, err := extchannel.LoadConfig(*confPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := extchannel.InitLogging(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Close()

	store, err := extchannel.OpenStorage(cfg.StorageDir)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	lc, err := net.ListenPacket("udp", cfg.Host)
	if err != nil {
		log.Fatal(err)
	}

	log.Print("Listening on " + cfg.Host)

	l := extchannel.Listen(lc, cfg.PlayerLimit, store)
	srv, err := extchannel.NewServer(cfg, l, store, simworld.New(cfg.Level))
	if err != nil {
		log.Fatal(err)
	}

	ended := extchannel.EndOnSignal(srv)

	if cfg.StatusListen != "" {
		go func() {
			if err := srv.ServeStatus(cfg.StatusListen); err != nil {
				log.Print(err)
			}
		}()
	}

	go srv.Serve()
	srv.Run()

	<-ended
}
