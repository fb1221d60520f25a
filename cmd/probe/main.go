// Command probe checks that a running server answers other requests while
// one worker is busy with /sleep.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrSerialized = errors.New("probe: /index waited for /sleep")

// minLead is how much earlier than /sleep the /index response has to
// arrive to count as served concurrently.
const minLead = 50 * time.Millisecond

type Result struct {
	Path     string
	Status   int
	Body     string
	Duration time.Duration
	Done     time.Time
	Err      error
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	timeout := flag.Duration("timeout", 30*time.Second, "overall probe timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	sleep, index, err := probe(ctx, client, "http://"+*addr)
	report(os.Stdout, sleep)
	report(os.Stdout, index)
	if err != nil {
		log.Fatalln(err)
	}
}

// probe requests /sleep and, once it is in flight, /index. The server is
// concurrent when /index finishes before /sleep does.
func probe(ctx context.Context, client *http.Client, baseURL string) (Result, Result, error) {
	var (
		wg    sync.WaitGroup
		sleep Result
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sleep = fetch(ctx, client, baseURL, "/sleep")
	}()

	// Give /sleep a head start to reach a worker.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
	}

	index := fetch(ctx, client, baseURL, "/index")
	wg.Wait()

	if sleep.Err != nil || index.Err != nil {
		return sleep, index, errors.Join(sleep.Err, index.Err)
	}
	if !index.Done.Before(sleep.Done.Add(-minLead)) {
		return sleep, index, ErrSerialized
	}
	return sleep, index, nil
}

func fetch(ctx context.Context, client *http.Client, baseURL, path string) (result Result) {
	result.Path = path
	start := time.Now()
	defer func() {
		result.Done = time.Now()
		result.Duration = result.Done.Sub(start)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		result.Err = err
		return result
	}

	res, err := client.Do(req)
	if err != nil {
		result.Err = err
		return result
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	result.Status = res.StatusCode
	result.Body = string(body)
	result.Err = err
	return result
}

func report(w io.Writer, result Result) {
	if result.Err != nil {
		fmt.Fprintf(w, "%-8s error after %s: %v\n", result.Path, result.Duration.Round(time.Millisecond), result.Err)
		return
	}
	fmt.Fprintf(w, "%-8s %d in %s\n", result.Path, result.Status, result.Duration.Round(time.Millisecond))
}
