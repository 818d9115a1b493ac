package restyutil

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

// message ids are unique per process, several clients may share one output
var idcounter atomic.Uint64

// InstrumentClient writes every completed request/response pair to output.
// A nil output makes this a no-op.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := fmt.Sprintf("%04d_%s.txt", idcounter.Add(1), res.Request.Method)
		output.Write(id, formatHttpMessage(res))
		slog.Debug(
			"request recorded",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"message_id", id,
		)
		return nil
	})
}
