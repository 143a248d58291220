package extchannel

import (
	"log"
	"os"
	"os/signal"
	"syscall"
)

// EndOnSignal ends s on SIGINT or SIGTERM
// and closes done once it has
func EndOnSignal(s *Server) (done <-chan struct{}) {
	ch := make(chan struct{})

	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
		<-signalChan

		log.Print("Caught SIGINT or SIGTERM, shutting down")

		s.End(false)
		close(ch)
	}()

	return ch
}
