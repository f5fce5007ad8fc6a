package main

import (
	"flag"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"crimedb/common"
	"crimedb/www/server"
)

var logLevel = flag.String("log_level", "info", "Log level: debug, info, warn, error.")

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file found: %v", err)
	}
	flag.Parse()
	common.SetLogLevel(*logLevel)

	server.StartService()
}
