package llmmw

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "uigen/internal/llm/client"
)

func TestUsageLedgerRecordsRequestsAndErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage", "ledger.json")
	fake := llmclient.NewFakeClient()
	calls := 0
	fake.Respond = func(req llmclient.Request) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("boom")
		}
		return "abcd", nil
	}
	cli := Wrap(fake, WithLogging(nil), WithUsageLedger(path))

	_, err := cli.Generate(context.Background(), llmclient.Request{Model: "gemini-pro", Prompt: "abcd"})
	require.NoError(t, err)
	_, err = cli.Generate(context.Background(), llmclient.Request{Model: "gemini-pro", Prompt: "abcd"})
	require.Error(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var f usageLedgerFile
	require.NoError(t, json.Unmarshal(b, &f))

	day := f.Days[time.Now().UTC().Format("2006-01-02")]
	assert.EqualValues(t, 2, day.Requests)
	assert.EqualValues(t, 1, day.Errors)
	assert.EqualValues(t, 2, day.Models["gemini-pro"].Requests)
	assert.EqualValues(t, 3, day.Tokens)
}

func TestWrapOrderAndNilMiddleware(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next llmclient.Client) llmclient.Client {
			order = append(order, name)
			return next
		}
	}
	fake := llmclient.NewFakeClient()
	out := Wrap(fake, tag("outer"), nil, tag("inner"), WithUsageLedger(""))
	assert.Equal(t, []string{"inner", "outer"}, order)
	assert.Equal(t, fake.Name(), out.Name())
}
