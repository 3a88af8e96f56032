package backend

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm/clause"

	"github.com/relabs-tech/galaxy/core"
	"github.com/relabs-tech/galaxy/core/csql"
	"github.com/relabs-tech/galaxy/core/logger"
)

const msgUserNotFound = "User not found"

// favoriteConfiguration describes the favorite relation between the principal user and
// a target resource
type favoriteConfiguration struct {
	// Resource is the name used in notifications
	Resource string
	// Title is the target's name used in messages, e.g. "Planet added to favorites"
	Title string
	// Route is the item route, with the target id as parameter Param
	Route string
	// Param is the route parameter and the column which holds the target id
	Param string
}

// favoritesResponse is the response of GET /users/favorites
type favoritesResponse struct {
	Planets []Planet `json:"planets"`
	People  []Person `json:"people"`
}

func createFavoriteResource[Target any, Favorite any](b *Backend, router *mux.Router, fc favoriteConfiguration, newFavorite func(userID, targetID uint) *Favorite) {
	logger.Default().Debugln("create favorite:", fc.Resource)
	logger.Default().Debugln("  handle favorite route:", fc.Route, "POST,DELETE")

	notFound := fc.Title + " not found"

	targetID := func(r *http.Request) (uint, bool) {
		id, err := strconv.ParseUint(mux.Vars(r)[fc.Param], 10, 0)
		return uint(id), err == nil
	}

	create := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := b.principalUserID(r)

		found, err := b.exists(ctx, &User{}, userID)
		if err != nil {
			storageFailure(w, r, err, "4711", "read user", "", "")
			return
		}
		if !found {
			writeMessage(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		id, ok := targetID(r)
		if ok {
			found, err = b.exists(ctx, new(Target), id)
			if err != nil {
				storageFailure(w, r, err, "4712", "read "+fc.Param, "", "")
				return
			}
		}
		if !ok || !found {
			writeMessage(w, http.StatusNotFound, notFound)
			return
		}

		// the unique index decides about duplicates, concurrent requests included
		favorite := newFavorite(userID, id)
		err = b.db.WithContext(ctx).Omit(clause.Associations).Create(favorite).Error
		if err != nil {
			storageFailure(w, r, err, "4713", "create "+fc.Resource, notFound, fc.Title+" already in favorites")
			return
		}
		b.notify(ctx, fc.Resource, core.OperationCreate, favorite)
		writeMessage(w, http.StatusCreated, fc.Title+" added to favorites")
	}

	remove := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := b.principalUserID(r)

		found, err := b.exists(ctx, &User{}, userID)
		if err != nil {
			storageFailure(w, r, err, "4714", "read user", "", "")
			return
		}
		if !found {
			writeMessage(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		notInFavorites := fc.Title + " not in favorites"
		id, ok := targetID(r)
		if !ok {
			writeMessage(w, http.StatusNotFound, notInFavorites)
			return
		}

		favorite := new(Favorite)
		err = b.db.WithContext(ctx).Where("user_id = ? AND "+fc.Param+" = ?", userID, id).First(favorite).Error
		if err != nil {
			storageFailure(w, r, err, "4715", "read "+fc.Resource, notInFavorites, "")
			return
		}
		res := b.db.WithContext(ctx).Delete(favorite)
		if res.Error != nil {
			storageFailure(w, r, res.Error, "4716", "delete "+fc.Resource, notInFavorites, "")
			return
		}
		if res.RowsAffected == 0 {
			writeMessage(w, http.StatusNotFound, notInFavorites)
			return
		}
		b.notify(ctx, fc.Resource, core.OperationDelete, favorite)
		writeMessage(w, http.StatusOK, fc.Title+" removed from favorites")
	}

	// CREATE
	router.Handle(fc.Route, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		create(w, r)
	}))).Methods(http.MethodOptions, http.MethodPost)

	// DELETE
	router.Handle(fc.Route, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		remove(w, r)
	}))).Methods(http.MethodOptions, http.MethodDelete)
}

// handleFavorites adds the route which lists the principal's favorites
func (b *Backend) handleFavorites(router *mux.Router) {
	logger.Default().Debugln("  handle favorites route: /users/favorites GET")

	list := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := b.principalUserID(r)

		found, err := b.exists(ctx, &User{}, userID)
		if err != nil {
			storageFailure(w, r, err, "4717", "read user", "", "")
			return
		}
		if !found {
			writeMessage(w, http.StatusNotFound, msgUserNotFound)
			return
		}

		response := favoritesResponse{Planets: []Planet{}, People: []Person{}}
		err = b.db.WithContext(ctx).
			Select("planets.*").
			Joins("JOIN favorite_planets ON favorite_planets.planet_id = planets.id").
			Where("favorite_planets.user_id = ?", userID).
			Order("favorite_planets.id").
			Find(&response.Planets).Error
		if err != nil {
			storageFailure(w, r, err, "4718", "list favorite planets", "", "")
			return
		}
		err = b.db.WithContext(ctx).
			Select("people.*").
			Joins("JOIN favorite_people ON favorite_people.people_id = people.id").
			Where("favorite_people.user_id = ?", userID).
			Order("favorite_people.id").
			Find(&response.People).Error
		if err != nil {
			storageFailure(w, r, err, "4719", "list favorite people", "", "")
			return
		}
		writeJSON(w, http.StatusOK, response)
	}

	router.Handle("/users/favorites", handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		list(w, r)
	}))).Methods(http.MethodOptions, http.MethodGet)
}

// exists returns true if a record of model with the primary key id exists
func (b *Backend) exists(ctx context.Context, model interface{}, id uint) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error
	if err != nil && csql.Classify(err) != csql.KindNotFound {
		return false, err
	}
	return count > 0, nil
}
