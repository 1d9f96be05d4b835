package http

import "encoding/json"

// DecodeJSON unmarshals a response body into dest.
func DecodeJSON(body []byte, dest interface{}) error {
    return json.Unmarshal(body, dest)
}
