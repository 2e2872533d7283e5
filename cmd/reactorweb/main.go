// Command reactorweb runs the reactor-based static file server: parse
// flags into a config.Config, build the Server facade, and run it until
// SIGINT or SIGTERM.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/s00inx/reactorweb/internal/config"
	"github.com/s00inx/reactorweb/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "reactorweb: %v\n", err)
		return 2
	}

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reactorweb: %v\n", err)
		return 1
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Run()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, unix.SIGINT, unix.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			fmt.Fprintf(os.Stderr, "reactorweb: %v\n", err)
			return 1
		}
		return 0
	case <-sigc:
		srv.Stop()
		return 0
	}
}
