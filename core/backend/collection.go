// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/relabs-tech/galaxy/core"
	"github.com/relabs-tech/galaxy/core/logger"
)

// collectionConfiguration describes one collection resource
type collectionConfiguration struct {
	// Resource is the name used in notifications and statistics
	Resource string
	// Title is the name used in messages, e.g. "Planet not found"
	Title string
	// Route is the collection route. Items live at Route/{id}
	Route string
	// CreateSchemaID validates request bodies for POST
	CreateSchemaID string
	// UpdateSchemaID validates request bodies for PUT
	UpdateSchemaID string
	// Properties are the JSON properties which can be written. They equal the column names.
	Properties []string
	// Defaults are applied before the request body on creation
	Defaults map[string]interface{}
	// ConflictMessage is returned when a unique index is violated. If empty, conflicts are
	// reported as internal errors.
	ConflictMessage string
}

// record is a model which can be written from a validated JSON object
type record interface {
	assign(values map[string]interface{})
}

type recordPointer[T any] interface {
	*T
	record
}

func createCollectionResource[T any, PT recordPointer[T]](b *Backend, router *mux.Router, rc collectionConfiguration) {
	resource := rc.Resource
	rlog := logger.Default()
	rlog.Debugln("create collection:", resource)

	for _, id := range []string{rc.CreateSchemaID, rc.UpdateSchemaID} {
		if !b.jsonValidator.HasSchema(id) {
			rlog.Errorf("invalid configuration for resource %s, schemaID %s is unknown", resource, id)
			panic("invalid configuration")
		}
	}

	listRoute := rc.Route
	itemRoute := rc.Route + "/{id:[0-9]+}"
	notFound := rc.Title + " not found"

	rlog.Debugln("  handle collection routes:", listRoute, "GET,POST")
	rlog.Debugln("  handle item routes:", itemRoute, "GET,PUT,DELETE")

	itemID := func(r *http.Request) (uint, bool) {
		id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 0)
		return uint(id), err == nil
	}

	list := func(w http.ResponseWriter, r *http.Request) {
		records := []T{}
		err := b.db.WithContext(r.Context()).Order("id").Find(&records).Error
		if err != nil {
			storageFailure(w, r, err, "4701", "list "+resource, "", "")
			return
		}
		writeJSON(w, http.StatusOK, records)
	}

	read := func(w http.ResponseWriter, r *http.Request) {
		id, ok := itemID(r)
		if !ok {
			writeMessage(w, http.StatusNotFound, notFound)
			return
		}
		var rec T
		err := b.db.WithContext(r.Context()).First(&rec, id).Error
		if err != nil {
			storageFailure(w, r, err, "4702", "read "+resource, notFound, "")
			return
		}
		writeJSON(w, http.StatusOK, &rec)
	}

	create := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, msg := readObject(w, r)
		if msg != "" {
			writeMessage(w, http.StatusBadRequest, msg)
			return
		}
		if !b.validate(w, r, body, rc.CreateSchemaID) {
			return
		}

		var rec T
		PT(&rec).assign(rc.Defaults)
		PT(&rec).assign(body)
		err := b.db.WithContext(ctx).Create(&rec).Error
		if err != nil {
			storageFailure(w, r, err, "4703", "create "+resource, "", rc.ConflictMessage)
			return
		}
		b.notify(ctx, resource, core.OperationCreate, &rec)
		writeJSON(w, http.StatusCreated, &rec)
	}

	update := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := itemID(r)
		if !ok {
			writeMessage(w, http.StatusNotFound, notFound)
			return
		}
		var rec T
		err := b.db.WithContext(ctx).First(&rec, id).Error
		if err != nil {
			storageFailure(w, r, err, "4704", "read "+resource, notFound, "")
			return
		}

		body, msg := readObject(w, r)
		if msg != "" {
			writeMessage(w, http.StatusBadRequest, msg)
			return
		}
		if !b.validate(w, r, body, rc.UpdateSchemaID) {
			return
		}

		// only properties present in the body are written, unknown ones are ignored
		var columns []string
		for _, property := range rc.Properties {
			if _, ok := body[property]; ok {
				columns = append(columns, property)
			}
		}
		if len(columns) == 0 {
			writeJSON(w, http.StatusOK, &rec)
			return
		}

		PT(&rec).assign(body)
		err = b.db.WithContext(ctx).Model(&rec).Select(columns).Updates(&rec).Error
		if err != nil {
			storageFailure(w, r, err, "4705", "update "+resource, notFound, rc.ConflictMessage)
			return
		}
		var updated T
		err = b.db.WithContext(ctx).First(&updated, id).Error
		if err != nil {
			storageFailure(w, r, err, "4706", "read "+resource, notFound, "")
			return
		}
		b.notify(ctx, resource, core.OperationUpdate, &updated)
		writeJSON(w, http.StatusOK, &updated)
	}

	remove := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := itemID(r)
		if !ok {
			writeMessage(w, http.StatusNotFound, notFound)
			return
		}
		var rec T
		err := b.db.WithContext(ctx).First(&rec, id).Error
		if err != nil {
			storageFailure(w, r, err, "4707", "read "+resource, notFound, "")
			return
		}
		res := b.db.WithContext(ctx).Delete(&rec)
		if res.Error != nil {
			storageFailure(w, r, res.Error, "4708", "delete "+resource, notFound, "")
			return
		}
		if res.RowsAffected == 0 {
			writeMessage(w, http.StatusNotFound, notFound)
			return
		}
		b.notify(ctx, resource, core.OperationDelete, &rec)
		writeMessage(w, http.StatusOK, rc.Title+" deleted successfully")
	}

	// CREATE
	router.Handle(listRoute, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		create(w, r)
	}))).Methods(http.MethodOptions, http.MethodPost)

	// LIST
	router.Handle(listRoute, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		list(w, r)
	}))).Methods(http.MethodOptions, http.MethodGet)

	// READ
	router.Handle(itemRoute, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		read(w, r)
	}))).Methods(http.MethodOptions, http.MethodGet)

	// UPDATE
	router.Handle(itemRoute, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		update(w, r)
	}))).Methods(http.MethodOptions, http.MethodPut)

	// DELETE
	router.Handle(itemRoute, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		remove(w, r)
	}))).Methods(http.MethodOptions, http.MethodDelete)
}

// validate checks object against schemaID and writes http.StatusBadRequest with the first
// missing or invalid property. Returns true if the object is valid.
func (b *Backend) validate(w http.ResponseWriter, r *http.Request, object map[string]interface{}, schemaID string) bool {
	result, err := b.jsonValidator.Check(object, schemaID)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4709: cannot validate with %s", schemaID)
		writeMessage(w, http.StatusInternalServerError, "Error 4709: validation failed")
		return false
	}
	if !result.Valid() {
		writeMessage(w, http.StatusBadRequest, result.Message())
		return false
	}
	return true
}
