package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
//
//	@Summary		Service status
//	@Description	Reports the service uptime.
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/status [get]
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(
		map[string]interface{}{
			"requestid": requestID,
			"status":    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
			"message":   "Hello. Books catalogue api is available. Enjoy :)",
		},
	); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send status response", zap.Error(err))
	}
}

// sendError logs the failure of a catalogue operation and sends its mapped error response.
func (api *APIHandler) sendError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger := api.GetLoggerFromContext(r.Context())
	errResp := NewAPIErrorFromError(GetValueFromContext(r.Context(), RequestIDContextKey), err)
	if errResp.Status == http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Warn(msg, zap.Int("status", errResp.Status), zap.Error(err))
	}
	if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
		logger.Error("failed to send error response", zap.Error(err))
	}
}

// sendBadRequest reports an undecodable request body.
func (api *APIHandler) sendBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger := api.GetLoggerFromContext(r.Context())
	logger.Warn(msg, zap.Error(err))
	errResp := NewAPIError(GetValueFromContext(r.Context(), RequestIDContextKey), http.StatusBadRequest, msg, err.Error())
	if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
		logger.Error("failed to send error response", zap.Error(err))
	}
}

func (api *APIHandler) send(w http.ResponseWriter, r *http.Request, resp *APIResponse) {
	if err := WriteResponse(r.Context(), w, resp); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send response", zap.Error(err))
	}
}

// CreateBook adds a new book to the catalogue.
//
//	@Summary		Create a book
//	@Description	Validates the book, assigns a fresh isbn and stores it.
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			book	body		Book	true	"book to create"
//	@Success		201		{object}	APIResponse{data=Book}
//	@Failure		400		{object}	APIError{data=[]FieldError}
//	@Failure		409		{object}	APIError
//	@Failure		500		{object}	APIError
//	@Router			/v1/books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var book Book
	if err := DecodeBookRequestBody(r, &book); err != nil {
		api.sendBadRequest(w, r, "failed to decode book creation request", err)
		return
	}

	created, err := api.bookService.Create(r.Context(), book)
	if err != nil {
		api.sendError(w, r, "failed to create book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to create book", zap.Int64("book.isbn", created.ISBN))
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	api.send(w, r, GenericResponse(requestID, http.StatusCreated, "Book created successfully.", nil, created))
}

// GetAllBooks lists the catalogue or searches it when any filter is supplied.
//
//	@Summary		List or search books
//	@Description	Without query parameters every book is returned. Supplied filters are combined and a search without match is 404.
//	@Tags			books
//	@Produce		json
//	@Param			title			query		string	false	"case-insensitive title substring"
//	@Param			author			query		string	false	"case-insensitive author substring"
//	@Param			genre			query		string	false	"case-insensitive genre"
//	@Param			isbn			query		string	false	"exact isbn"
//	@Param			rate			query		number	false	"exact rate"
//	@Param			display			query		bool	false	"visibility flag"
//	@Param			publicationDate	query		string	false	"exact publication date (YYYY-MM-DD)"
//	@Success		200				{object}	APIResponse{data=[]Book}
//	@Failure		400				{object}	APIError{data=[]FieldError}
//	@Failure		404				{object}	APIError
//	@Failure		500				{object}	APIError
//	@Router			/v1/books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	query := r.URL.Query()

	if !HasSearchParameters(query) {
		books, err := api.bookService.List(r.Context())
		if err != nil {
			api.sendError(w, r, "failed to get all books", err)
			return
		}
		total := len(books)
		api.send(w, r, GenericResponse(requestID, http.StatusOK, "All books fetched successfully.", &total, books))
		return
	}

	criteria, fields := ParseSearchCriteria(query)
	if err := NewValidationError(fields); err != nil {
		api.sendError(w, r, "invalid search parameters", err)
		return
	}

	books, err := api.bookService.Search(r.Context(), criteria)
	if err != nil {
		api.sendError(w, r, "failed to search books", err)
		return
	}
	if len(books) == 0 {
		api.GetLoggerFromContext(r.Context()).Info("no book matches the search", zap.String("request.query", r.URL.RawQuery))
		errResp := NewAPIError(requestID, http.StatusNotFound, "no book matches the search criteria", []Book{})
		if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.GetLoggerFromContext(r.Context()).Error("failed to send error response", zap.Error(err))
		}
		return
	}
	total := len(books)
	api.send(w, r, GenericResponse(requestID, http.StatusOK, "Books found successfully.", &total, books))
}

// GetOneBook returns a single book.
//
//	@Summary		Get a book
//	@Tags			books
//	@Produce		json
//	@Param			isbn	path		string	true	"13 digits isbn"
//	@Success		200		{object}	APIResponse{data=Book}
//	@Failure		400		{object}	APIError{data=[]FieldError}
//	@Failure		404		{object}	APIError
//	@Failure		500		{object}	APIError
//	@Router			/v1/books/{isbn} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	isbn, err := ParseISBNParam(ps.ByName("isbn"))
	if err != nil {
		api.sendError(w, r, "book isbn provided is not valid", err)
		return
	}
	book, err := api.bookService.GetOne(r.Context(), isbn)
	if err != nil {
		api.sendError(w, r, "failed to get book", err)
		return
	}
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	api.send(w, r, GenericResponse(requestID, http.StatusOK, "Book fetched successfully.", nil, book))
}

// UpdateBook replaces every mutable field of a book.
//
//	@Summary		Replace a book
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			isbn	path		string	true	"13 digits isbn"
//	@Param			book	body		Book	true	"replacement book"
//	@Success		200		{object}	APIResponse{data=Book}
//	@Failure		400		{object}	APIError{data=[]FieldError}
//	@Failure		404		{object}	APIError
//	@Failure		409		{object}	APIError
//	@Failure		500		{object}	APIError
//	@Router			/v1/books/{isbn} [put]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	isbn, err := ParseISBNParam(ps.ByName("isbn"))
	if err != nil {
		api.sendError(w, r, "book isbn provided is not valid", err)
		return
	}
	var book Book
	if err = DecodeBookRequestBody(r, &book); err != nil {
		api.sendBadRequest(w, r, "failed to decode book update request", err)
		return
	}

	updated, err := api.bookService.Update(r.Context(), isbn, book)
	if err != nil {
		api.sendError(w, r, "failed to update book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to update book", zap.Int64("book.isbn", isbn))
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	api.send(w, r, GenericResponse(requestID, http.StatusOK, "Book updated successfully.", nil, updated))
}

// PatchBook updates only the supplied fields of a book.
//
//	@Summary		Partially update a book
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			isbn	path		string		true	"13 digits isbn"
//	@Param			patch	body		BookPatch	true	"fields to update"
//	@Success		200		{object}	APIResponse{data=Book}
//	@Failure		400		{object}	APIError{data=[]FieldError}
//	@Failure		404		{object}	APIError
//	@Failure		409		{object}	APIError
//	@Failure		500		{object}	APIError
//	@Router			/v1/books/{isbn} [patch]
func (api *APIHandler) PatchBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	isbn, err := ParseISBNParam(ps.ByName("isbn"))
	if err != nil {
		api.sendError(w, r, "book isbn provided is not valid", err)
		return
	}
	var patch BookPatch
	if err = DecodeBookPatchRequestBody(r, &patch); err != nil {
		api.sendBadRequest(w, r, "failed to decode book patch request", err)
		return
	}

	patched, err := api.bookService.Patch(r.Context(), isbn, patch)
	if err != nil {
		api.sendError(w, r, "failed to patch book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to patch book", zap.Int64("book.isbn", isbn))
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	api.send(w, r, GenericResponse(requestID, http.StatusOK, "Book patched successfully.", nil, patched))
}

// DeleteOneBook removes a book from the catalogue.
//
//	@Summary		Delete a book
//	@Tags			books
//	@Produce		json
//	@Param			isbn	path		string	true	"13 digits isbn"
//	@Success		200		{object}	APIResponse{data=DeleteResult}
//	@Failure		400		{object}	APIError{data=[]FieldError}
//	@Failure		404		{object}	APIError{data=DeleteResult}
//	@Failure		500		{object}	APIError
//	@Router			/v1/books/{isbn} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	isbn, err := ParseISBNParam(ps.ByName("isbn"))
	if err != nil {
		api.sendError(w, r, "book isbn provided is not valid", err)
		return
	}
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	logger := api.GetLoggerFromContext(r.Context()).With(zap.Int64("book.isbn", isbn))

	deleted, err := api.bookService.Delete(r.Context(), isbn)
	if err != nil {
		api.sendError(w, r, "failed to delete book", err)
		return
	}
	if !deleted {
		logger.Info("book does not exist")
		errResp := NewAPIError(requestID, http.StatusNotFound, "book does not exist", DeleteResult{Deleted: false})
		if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
			logger.Error("failed to send error response", zap.Error(err))
		}
		return
	}
	logger.Info("success to delete book")
	api.send(w, r, GenericResponse(requestID, http.StatusOK, "Book deleted successfully.", nil, DeleteResult{Deleted: true}))
}
