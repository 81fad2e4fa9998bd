package main

import (
	"os"

	_ "time/tzdata"

	appLog "plansheet/internal/log"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("plansheet failed", err)
		os.Exit(1)
	}
}
