package llmmw

import (
	"context"
	"log"
	"time"

	llmclient "uigen/internal/llm/client"
)

// WithLogging logs request size, latency and errors. Provide a custom logger
// or nil to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next llmclient.Client) llmclient.Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next llmclient.Client
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	start := time.Now()
	l.log.Printf("llm request (%s model=%s): %d bytes", l.next.Name(), req.Model, len(req.Prompt))
	resp, err := l.next.Generate(ctx, req)
	if err != nil {
		l.log.Printf("llm error (%s) after %s: %v", l.next.Name(), time.Since(start).Round(time.Millisecond), err)
		return resp, err
	}
	l.log.Printf("llm response (%s): %d bytes in %s", l.next.Name(), len(resp.Text), time.Since(start).Round(time.Millisecond))
	return resp, nil
}
