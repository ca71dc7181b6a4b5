package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

// MaxJSONBodySize is the maximum size for JSON request bodies. Deploy drafts
// can carry an inline build file, so it is larger than a typical API body.
const MaxJSONBodySize = 4 << 20

// DecodeJSON decodes JSON from the request body into v. On failure it writes
// the error response and returns false.
//
//	var draft deployment.Config
//	if !httputil.DecodeJSON(w, r, &draft) {
//	    return
//	}
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return DecodeJSONWithLimit(w, r, v, MaxJSONBodySize)
}

// DecodeJSONWithLimit decodes JSON with a custom size limit.
func DecodeJSONWithLimit(w http.ResponseWriter, r *http.Request, v any, maxSize int64) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		InvalidJSON(w, r, err)
		return false
	}
	if int64(len(body)) > maxSize {
		RequestTooLarge(w, r, maxSize)
		return false
	}
	if len(body) == 0 {
		InvalidJSON(w, r, io.EOF)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		InvalidJSON(w, r, err)
		return false
	}
	return true
}
