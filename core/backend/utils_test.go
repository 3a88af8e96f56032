// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/galaxy/core"
	"github.com/relabs-tech/galaxy/core/backend"
	"github.com/relabs-tech/galaxy/core/client"
	"github.com/relabs-tech/galaxy/core/csql"
)

var testSecret = []byte("test secret")

// TestService is a backend on a fresh sqlite database
type TestService struct {
	backend  *backend.Backend
	client   client.Client
	notifier *recordingNotifier
	Db       *csql.DB
	Router   *mux.Router
}

// CreateTestService creates a new service that can be used for testing. The database
// lives in the test's temporary directory and is closed when the test ends.
func CreateTestService(t *testing.T) *TestService {
	t.Helper()

	s := TestService{}
	var err error
	s.Db, err = csql.Open(filepath.Join(t.TempDir(), "galaxy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Db.Close() })

	s.Router = mux.NewRouter()
	s.notifier = &recordingNotifier{}
	builder := backend.Builder{
		DB:           s.Db,
		Router:       s.Router,
		Notifier:     s.notifier,
		JWTSecret:    testSecret,
		UpdateSchema: true,
	}
	s.backend = backend.New(&builder)
	s.client = client.NewWithHandler(s.backend)
	return &s
}

type notification struct {
	Resource  string
	Operation core.Operation
	Payload   map[string]interface{}
}

// recordingNotifier remembers all notifications
type recordingNotifier struct {
	mutex         sync.Mutex
	notifications []notification
}

func (n *recordingNotifier) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	var object map[string]interface{}
	json.Unmarshal(payload, &object)
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.notifications = append(n.notifications, notification{Resource: resource, Operation: operation, Payload: object})
}

func (n *recordingNotifier) all() []notification {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]notification{}, n.notifications...)
}

// messageOf returns the message of a client error
func messageOf(err error) string {
	var clientErr *client.Error
	if errors.As(err, &clientErr) {
		return clientErr.Message
	}
	return ""
}

func (s *TestService) createUser(t *testing.T, email string) backend.User {
	t.Helper()
	var user backend.User
	_, err := s.client.Collection("user").Create(map[string]interface{}{"email": email, "password": "secret"}, &user)
	require.NoError(t, err)
	return user
}

func (s *TestService) createPlanet(t *testing.T, name string) backend.Planet {
	t.Helper()
	var planet backend.Planet
	_, err := s.client.Collection("planets").Create(map[string]interface{}{
		"name":       name,
		"climate":    "temperate",
		"terrain":    "grasslands, mountains",
		"population": "2000000000",
	}, &planet)
	require.NoError(t, err)
	return planet
}

func (s *TestService) createPerson(t *testing.T, name string) backend.Person {
	t.Helper()
	var person backend.Person
	_, err := s.client.Collection("people").Create(map[string]interface{}{
		"name":       name,
		"birth_year": "19BBY",
		"gender":     "male",
		"height":     "172",
		"hair_color": "blond",
	}, &person)
	require.NoError(t, err)
	return person
}
