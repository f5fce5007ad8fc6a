// Package server exposes the published CrimeDB file tree over HTTP.
package server

import (
	"flag"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"crimedb/api"
)

var (
	serverPort = flag.Int("port", 8080, "The port used by the service.")
	dataDir    = flag.String("data_dir", "www-data",
		"Directory holding the published region trees.")
)

func StartService() {
	log.Info("Starting the service...")

	h := &handlers{dataDir: *dataDir}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET(api.RegionsEndpoint, h.ListRegions)
	router.GET(api.MetaEndpoint, h.GetMeta)
	router.GET(api.MonthEndpoint, h.GetMonth)
	router.GET(api.TileEndpoint, h.GetTile)

	router.Run(fmt.Sprintf(":%d", *serverPort))
	log.Info("Finished the service. Should not ever being seen.")
}
