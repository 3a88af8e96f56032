/*
Package backend implements the galaxy REST backend

A backend manages a relational database through gorm and provides a RESTful-API for
users, people, planets and the favorites of users.

Routes

The backend creates the following REST routes:

	GET /user
	POST /user
	GET /user/{id}
	PUT /user/{id}
	DELETE /user/{id}
	GET /people
	POST /people
	GET /people/{id}
	PUT /people/{id}
	DELETE /people/{id}
	GET /planets
	POST /planets
	GET /planets/{id}
	PUT /planets/{id}
	DELETE /planets/{id}
	GET /users/favorites
	POST /favorite/planet/{planet_id}
	DELETE /favorite/planet/{planet_id}
	POST /favorite/people/{people_id}
	DELETE /favorite/people/{people_id}
	GET /
	GET /version
	GET /statistics

Trailing slashes are ignored. Identifiers are integers assigned by the database, a
non-integer identifier does not match any route.

The models look like this:

	User
	{
		"id": INTEGER,
		"email": STRING,
		"is_active": BOOLEAN
	}

	Person
	{
		"id": INTEGER,
		"name": STRING,
		"birth_year": STRING,
		"gender": STRING,
		"height": STRING,
		"hair_color": STRING
	}

	Planet
	{
		"id": INTEGER,
		"name": STRING,
		"climate": STRING,
		"terrain": STRING,
		"population": STRING
	}

Users also have a password. It is required on creation, stored as bcrypt hash and never returned.
New users are active unless "is_active" is false in the request.

Request bodies are validated with the JSON schemas embedded from the schemas directory.
POST requires all properties of a model except "id" and "is_active". PUT overwrites only
the properties present in the request body. Unknown properties are ignored.

Favorites

Favorites belong to the principal, see package access. Without bearer token the principal
is the default user, which is user 1 unless configured otherwise.

	GET /users/favorites

returns the favored planets and people, in the order they were favored:

	{
		"planets": [Planet],
		"people": [Person]
	}

A planet or person can be favored only once per user. Deleting a user, a planet or a
person removes the affected favorites as well.

Messages

Everything which is not a model is returned as message object

	{
		"msg": STRING
	}

Validation errors and duplicate favorites are http.StatusBadRequest, unknown identifiers
http.StatusNotFound. Failing database operations are http.StatusInternalServerError with
a message "Error <code>: <operation> failed"; the code identifies the failing statement in
the logs.

Notifications

If the builder has a notifier, every successful create, update and delete is passed
to it with the JSON representation of the affected record.
*/
package backend
