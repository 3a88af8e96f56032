// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/relabs-tech/galaxy/core/logger"
)

// resourceStatistics represents information about a resource
type resourceStatistics struct {
	Resource string `json:"resource"`
	Count    int64  `json:"count"`
}

// statistics represents information about the backend resources
type statisticsDetails struct {
	Collections []resourceStatistics `json:"collections"`
	Relations   []resourceStatistics `json:"relations"`
}

func (b *Backend) handleStatistics(router *mux.Router) {
	logger.Default().Debugln("statistics")
	logger.Default().Debugln("  handle statistics route: /statistics GET")
	router.Handle("/statistics", handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		b.statistics(w, r)
	}))).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) statistics(w http.ResponseWriter, r *http.Request) {
	type countable struct {
		resource string
		model    interface{}
	}
	collections := []countable{
		{"people", &Person{}},
		{"planet", &Planet{}},
		{"user", &User{}},
	}
	relations := []countable{
		{"favorite_people", &FavoritePerson{}},
		{"favorite_planet", &FavoritePlanet{}},
	}

	queryStatisticsFromDB := func(stats *[]resourceStatistics, resources []countable) bool {
		*stats = []resourceStatistics{} // do not return null in json, but empty array
		for _, resource := range resources {
			var count int64
			if err := b.db.WithContext(r.Context()).Model(resource.model).Count(&count).Error; err != nil {
				storageFailure(w, r, err, "4720", "count "+resource.resource, "", "")
				return false
			}
			*stats = append(*stats, resourceStatistics{
				Resource: resource.resource,
				Count:    count,
			})
		}
		return true
	}

	s := statisticsDetails{}
	if !queryStatisticsFromDB(&s.Collections, collections) || !queryStatisticsFromDB(&s.Relations, relations) {
		return
	}
	writeJSON(w, http.StatusOK, s)
}
