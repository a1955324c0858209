package main

import (
	"log"
)

var (
	GitCommit string
	GitTag    string
	BuildTime string
)

//	@title			Books Catalogue API
//	@version		1.0
//	@description	Catalogue of books identified by generated 13 digits isbn.

//	@contact.name	Jerome Amon

//	@license.name	MIT

//	@host		localhost:8080
//	@BasePath	/
//	@schemes	http

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatal("application failed to initialized: ", err)
	}
	err = app.Run()
	if err != nil {
		log.Fatal("application exited. check logs for more details.", err)
	}
}
