package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/loopback"
)

func main() {
	log.Printf("zenoh-go version: %s", zenoh.WrapperVersion())
	log.Printf("zenoh-c upstream: %s (%s)", zenoh.UpstreamVersion(), zenoh.UpstreamDir)

	lib, err := zenoh.NewLibrary()
	if err != nil {
		if errors.Is(err, zenoh.ErrCGONotEnabled) || errors.Is(err, zenoh.ErrNotBuilt) {
			fmt.Printf("native engine unavailable: %v\n", err)
			reportLoopback()
			return
		}
		log.Fatalf("unexpected failure binding native engine: %v", err)
	}
	report(lib, "native")
}

func reportLoopback() {
	e := loopback.New()
	defer func() {
		if cerr := e.Shutdown(); cerr != nil {
			log.Printf("shutdown error: %v", cerr)
		}
	}()
	lib, err := zenoh.NewLibrary(zenoh.WithEngine(e))
	if err != nil {
		log.Fatalf("bind loopback engine: %v", err)
	}
	report(lib, "loopback")
}

func report(lib *zenoh.Library, name string) {
	sess, err := lib.Open(nil)
	if err != nil {
		fmt.Printf("%s engine: open failed: %v\n", name, err)
		return
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Printf("close error: %v", cerr)
		}
	}()
	fmt.Printf("%s engine opened session %s\n", name, sess.ZID())
}
