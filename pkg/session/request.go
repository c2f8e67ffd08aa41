package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Request is one evaluation request as received from a client.
type Request struct {
	Script  string  `mapstructure:"script" json:"script"`
	Dialect string  `mapstructure:"dialect" json:"dialect,omitempty"`
	Quality float64 `mapstructure:"quality" json:"quality,omitempty"`
	Format  string  `mapstructure:"format" json:"format,omitempty"`
}

// DecodeRequest converts a loosely typed payload, such as a decoded
// socket.io event argument, into a Request. A bare string is taken as the
// script itself.
func DecodeRequest(payload any) (Request, error) {
	var req Request
	if s, ok := payload.(string); ok {
		req.Script = s
		return req, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return req, err
	}
	if err := dec.Decode(payload); err != nil {
		return req, fmt.Errorf("session: decode request: %w", err)
	}
	return req, nil
}

// CacheKey identifies the output of req. Requests with equal keys produce
// equal results.
func CacheKey(req Request) string {
	h := sha256.New()
	for _, part := range []string{
		req.Dialect,
		strconv.FormatFloat(req.Quality, 'g', -1, 64),
		req.Format,
		req.Script,
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
