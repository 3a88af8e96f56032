// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/relabs-tech/galaxy/core"
	"github.com/relabs-tech/galaxy/core/access"
	"github.com/relabs-tech/galaxy/core/csql"
	"github.com/relabs-tech/galaxy/core/logger"
	"github.com/relabs-tech/galaxy/core/schema"
)

//go:embed schemas
var schemaFS embed.FS

// Backend is the galaxy rest backend
type Backend struct {
	db            *csql.DB
	router        *mux.Router
	handler       http.Handler
	notifier      core.Notifier
	jsonValidator *schema.Validator
	defaultUserID uint
}

// Builder is a builder helper for the Backend
type Builder struct {
	// DB is the database. This is mandatory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Notifier receives a notification for every successful create, update and delete.
	// This is optional.
	Notifier core.Notifier
	// DefaultUserID is the principal for requests without bearer token. Defaults to 1.
	DefaultUserID uint
	// JWTSecret is the HS256 key for bearer tokens. If empty, bearer tokens are ignored.
	JWTSecret []byte
	// UpdateSchema runs the auto migration for all models
	UpdateSchema bool
}

// New realizes the actual backend. It migrates the tables if requested and adds
// the routes to the router
func New(bb *Builder) *Backend {

	if bb.DB == nil {
		panic("DB is missing")
	}

	if bb.Router == nil {
		panic("Router is missing")
	}

	schemas, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		panic(err)
	}
	validator, err := schema.NewValidatorFromFS(schemas)
	if err != nil {
		panic(err)
	}

	if bb.UpdateSchema {
		logger.Default().Infoln("backend: update schema")
		if err := bb.DB.AutoMigrate(Models()...); err != nil {
			panic(err)
		}
	}

	defaultUserID := bb.DefaultUserID
	if defaultUserID == 0 {
		defaultUserID = 1
	}

	b := &Backend{
		db:            bb.DB,
		router:        bb.Router,
		notifier:      bb.Notifier,
		jsonValidator: validator,
		defaultUserID: defaultUserID,
	}

	b.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	b.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	logger.AddRequestID(b.router)
	b.handleCORS()
	b.router.Use(access.NewPrincipalMiddleware(&access.PrincipalMiddlewareBuilder{
		DefaultUserID: defaultUserID,
		Secret:        bb.JWTSecret,
	}))
	b.handleRoutes(b.router)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger.Default()),
		handlers.PrintRecoveryStack(true),
	)
	b.handler = recovery(trimTrailingSlash(b.router))
	return b
}

// ServeHTTP makes the backend a http.Handler. Use the backend, not the router, as the
// server's handler, otherwise trailing slashes are significant and panics are not recovered.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.handler.ServeHTTP(w, r)
}

// HandleRoutes adds all necessary handlers
func (b *Backend) handleRoutes(router *mux.Router) {

	logger.Default().Debugln("backend: HandleRoutes")

	createCollectionResource[User](b, router, collectionConfiguration{
		Resource:        "user",
		Title:           "User",
		Route:           "/user",
		CreateSchemaID:  schemaID("user"),
		UpdateSchemaID:  schemaID("user-update"),
		Properties:      []string{"email", "password", "is_active"},
		Defaults:        map[string]interface{}{"is_active": true},
		ConflictMessage: "User with this email already exists",
	})
	createCollectionResource[Person](b, router, collectionConfiguration{
		Resource:       "people",
		Title:          "Person",
		Route:          "/people",
		CreateSchemaID: schemaID("person"),
		UpdateSchemaID: schemaID("person-update"),
		Properties:     []string{"name", "birth_year", "gender", "height", "hair_color"},
	})
	createCollectionResource[Planet](b, router, collectionConfiguration{
		Resource:       "planet",
		Title:          "Planet",
		Route:          "/planets",
		CreateSchemaID: schemaID("planet"),
		UpdateSchemaID: schemaID("planet-update"),
		Properties:     []string{"name", "climate", "terrain", "population"},
	})

	createFavoriteResource[Planet](b, router, favoriteConfiguration{
		Resource: "favorite_planet",
		Title:    "Planet",
		Route:    "/favorite/planet/{planet_id:[0-9]+}",
		Param:    "planet_id",
	}, func(userID, planetID uint) *FavoritePlanet {
		return &FavoritePlanet{UserID: userID, PlanetID: planetID}
	})
	createFavoriteResource[Person](b, router, favoriteConfiguration{
		Resource: "favorite_people",
		Title:    "Person",
		Route:    "/favorite/people/{people_id:[0-9]+}",
		Param:    "people_id",
	}, func(userID, peopleID uint) *FavoritePerson {
		return &FavoritePerson{UserID: userID, PeopleID: peopleID}
	})
	b.handleFavorites(router)

	b.handleVersion(router)
	b.handleStatistics(router)
	b.handleSitemap(router)
}

func schemaID(name string) string {
	return "http://galaxy.relabs.tech/schemas/" + name + ".json"
}

// principalUserID returns the user the request acts on behalf of
func (b *Backend) principalUserID(r *http.Request) uint {
	if principal, ok := access.PrincipalFromContext(r.Context()); ok {
		return principal.UserID
	}
	return b.defaultUserID
}

func (b *Backend) notify(ctx context.Context, resource string, operation core.Operation, object interface{}) {
	if b.notifier == nil {
		return
	}
	payload, err := json.Marshal(object)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4710: cannot marshal notification for %s", resource)
		return
	}
	b.notifier.Notify(ctx, resource, operation, payload)
}

func trimTrailingSlash(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path := r.URL.Path; len(path) > 1 && strings.HasSuffix(path, "/") {
			r.URL.Path = strings.TrimRight(path, "/")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
			r.URL.RawPath = ""
		}
		h.ServeHTTP(w, r)
	})
}
