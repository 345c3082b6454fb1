package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"allocation/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv(envConfigPath), "path to YAML config file")
	flag.Parse()

	engine := server.NewEngine(newAllocationService(*configPath), server.WithVersion(version))
	if err := engine.Start(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const envConfigPath = "ALLOCATION_CONFIG"
