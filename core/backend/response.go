package backend

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/galaxy/core/csql"
	"github.com/relabs-tech/galaxy/core/logger"
)

// bodies larger than this are rejected
const maxBodySize = 1 << 20

const (
	msgBodyRequired    = "Body is required"
	msgInvalidJSONBody = "Invalid JSON body"
)

// message is the uniform envelope for everything that is not a record
type message struct {
	Msg string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, status int, object interface{}) {
	jsonData, err := json.MarshalWithOption(object, json.DisableHTMLEscape())
	if err != nil {
		logger.Default().WithError(err).Errorln("Error 4700: cannot marshal response")
		http.Error(w, "Error 4700", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, message{Msg: msg})
}

// readObject reads the request body as JSON object. Gzipped bodies are accepted.
//
// An empty body, null or {} yield msgBodyRequired, anything which is not a JSON object
// yields msgInvalidJSONBody. The returned message is empty on success.
func readObject(w http.ResponseWriter, r *http.Request) (map[string]interface{}, string) {
	if r.Body == nil {
		return nil, msgBodyRequired
	}
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxBodySize)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, msgInvalidJSONBody
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, msgInvalidJSONBody
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, msgBodyRequired
	}

	var object map[string]interface{}
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, msgInvalidJSONBody
	}
	if len(object) == 0 {
		return nil, msgBodyRequired
	}
	return object, ""
}

// storageFailure reports a failed storage operation. Missing records become http.StatusNotFound
// with notFound, unique violations http.StatusBadRequest with conflict. Everything else is
// logged with code and reported as http.StatusInternalServerError.
func storageFailure(w http.ResponseWriter, r *http.Request, err error, code, operation, notFound, conflict string) {
	switch kind := csql.Classify(err); {
	case (kind == csql.KindNotFound || kind == csql.KindMissingReference) && notFound != "":
		writeMessage(w, http.StatusNotFound, notFound)
		return
	case kind == csql.KindConflict && conflict != "":
		writeMessage(w, http.StatusBadRequest, conflict)
		return
	}
	logger.FromContext(r.Context()).WithError(err).Errorf("Error %s: %s failed", code, operation)
	writeMessage(w, http.StatusInternalServerError, "Error "+code+": "+operation+" failed")
}
