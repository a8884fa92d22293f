package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/visionguard/visionguard/server"
)

func main() {
	parser := argparse.NewParser("visionguard", "Object detection web service for images, videos, and live camera")
	configFilePath := parser.String("c", "config", &argparse.Options{Help: "Config file path", Default: "visionguard.json"})
	port := parser.String("p", "port", &argparse.Options{Help: "HTTP listen address", Default: ":8080"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	s, err := server.NewServer(*configFilePath)
	if err != nil {
		panic(err)
	}
	s.ListenForKillSignals()
	if err := s.ListenHTTP(*port); err != nil {
		fmt.Printf("%v\n", err)
	}
}
