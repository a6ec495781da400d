package dispatch

import (
	"bytes"
	"io"
	"net/http"
)

func jsonReader(body []byte) io.Reader {
	if len(body) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(body)
}
