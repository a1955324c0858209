package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupBookRoutes injects book related the api endpoints.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.GET("/", m.public(api.Index))
	router.GET("/status", m.public(api.Status))
	router.POST("/v1/books", m.public(api.CreateBook))
	router.GET("/v1/books", m.public(api.GetAllBooks))
	router.GET("/v1/books/:isbn", m.public(api.GetOneBook))
	router.PUT("/v1/books/:isbn", m.public(api.UpdateBook))
	router.PATCH("/v1/books/:isbn", m.public(api.PatchBook))
	router.DELETE("/v1/books/:isbn", m.public(api.DeleteOneBook))
	return router
}
