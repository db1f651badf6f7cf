// Command loadtest hammers one ticket type of a seeded event with concurrent
// reservations and then checks the event for oversell.
//
//	go run ./cmd/loadtest -event <uuid> -ticket-type GA -requests 500 -concurrency 50
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	Host        string
	EventID     string
	TicketType  string
	Requests    int
	Concurrency int
	Buyers      int
	Quantity    int
	Replay      bool
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type errorBody struct {
	Errors struct {
		Kind string `json:"kind"`
	} `json:"errors"`
}

type authData struct {
	AccessToken string `json:"access_token"`
}

type eventData struct {
	Title       string `json:"title"`
	TicketTypes []struct {
		Name              string `json:"name"`
		Capacity          int    `json:"quantity"`
		RemainingQuantity int    `json:"remaining_quantity"`
	} `json:"ticket_types"`
}

// Metrics are updated by every worker.
type Metrics struct {
	created     atomic.Int64
	replayed    atomic.Int64
	soldOut     atomic.Int64
	conflicts   atomic.Int64
	rateLimited atomic.Int64
	failures    atomic.Int64
	ticketsSold atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) observe(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

func (m *Metrics) percentile(p float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := slices.Clone(m.latencies)
	slices.Sort(sorted)
	return sorted[int(float64(len(sorted)-1)*p)]
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.Host, "host", "", "API base URL (overrides API_HOST)")
	flag.StringVar(&cfg.EventID, "event", os.Getenv("EVENT_ID"), "Event ID to book")
	flag.StringVar(&cfg.TicketType, "ticket-type", "GA", "Ticket type to book")
	flag.IntVar(&cfg.Requests, "requests", 200, "Total number of reservations")
	flag.IntVar(&cfg.Concurrency, "concurrency", 50, "Number of concurrent workers")
	flag.IntVar(&cfg.Buyers, "buyers", 20, "Number of distinct buyer accounts")
	flag.IntVar(&cfg.Quantity, "quantity", 1, "Tickets per reservation")
	flag.BoolVar(&cfg.Replay, "replay", true, "Resend every created booking with the same Idempotency-Key")
	flag.Parse()

	if cfg.Host == "" {
		cfg.Host = os.Getenv("API_HOST")
		if cfg.Host == "" {
			cfg.Host = "http://localhost:8080/api/v1"
		}
	}
	if cfg.EventID == "" {
		fmt.Println("an event id is required (-event or EVENT_ID)")
		os.Exit(2)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	before, err := fetchEvent(client, cfg)
	if err != nil {
		fmt.Printf("Could not load event: %v\n", err)
		os.Exit(1)
	}
	capacity, remainingBefore, ok := poolState(before, cfg.TicketType)
	if !ok {
		fmt.Printf("Event %q has no ticket type %q\n", before.Title, cfg.TicketType)
		os.Exit(1)
	}

	fmt.Println("========================================")
	fmt.Println("eventbook reservation load test")
	fmt.Println("========================================")
	fmt.Printf("Host:        %s\n", cfg.Host)
	fmt.Printf("Event:       %s (%s)\n", before.Title, cfg.EventID)
	fmt.Printf("Ticket type: %s capacity=%d remaining=%d\n", cfg.TicketType, capacity, remainingBefore)
	fmt.Printf("Requests:    %d x %d tickets\n", cfg.Requests, cfg.Quantity)
	fmt.Printf("Concurrency: %d workers, %d buyers\n", cfg.Concurrency, cfg.Buyers)
	fmt.Println("========================================")

	tokens, err := registerBuyers(client, cfg)
	if err != nil {
		fmt.Printf("Could not create buyers: %v\n", err)
		os.Exit(1)
	}

	metrics := &Metrics{latencies: make([]time.Duration, 0, cfg.Requests)}
	jobs := make(chan int, cfg.Requests)
	for i := 0; i < cfg.Requests; i++ {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				book(client, cfg, tokens[i%len(tokens)], metrics)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := fetchEvent(client, cfg)
	if err != nil {
		fmt.Printf("Could not reload event: %v\n", err)
		os.Exit(1)
	}
	_, remainingAfter, _ := poolState(after, cfg.TicketType)

	sold := metrics.ticketsSold.Load()
	fmt.Println("\nResults")
	fmt.Printf("  Created:        %d\n", metrics.created.Load())
	fmt.Printf("  Replayed:       %d\n", metrics.replayed.Load())
	fmt.Printf("  Sold out:       %d\n", metrics.soldOut.Load())
	fmt.Printf("  Conflicts:      %d\n", metrics.conflicts.Load())
	fmt.Printf("  Rate limited:   %d\n", metrics.rateLimited.Load())
	fmt.Printf("  Other failures: %d\n", metrics.failures.Load())
	fmt.Printf("  Elapsed:        %s (%.1f req/s)\n", elapsed.Round(time.Millisecond), float64(cfg.Requests)/elapsed.Seconds())
	fmt.Printf("  Latency p50=%s p95=%s p99=%s\n", metrics.percentile(0.50), metrics.percentile(0.95), metrics.percentile(0.99))
	fmt.Printf("  Remaining:      %d -> %d\n", remainingBefore, remainingAfter)

	switch {
	case remainingAfter < 0:
		fmt.Println("FAIL: remaining quantity went negative")
		os.Exit(1)
	case int64(remainingBefore-remainingAfter) != sold:
		fmt.Printf("FAIL: %d tickets booked but remaining dropped by %d\n", sold, remainingBefore-remainingAfter)
		os.Exit(1)
	case sold > int64(remainingBefore):
		fmt.Printf("FAIL: oversold, %d booked with only %d available\n", sold, remainingBefore)
		os.Exit(1)
	}
	fmt.Println("PASS: no oversell and every booking accounted for")
}

func book(client *http.Client, cfg Config, token string, m *Metrics) {
	key := uuid.NewString()
	body, _ := json.Marshal(map[string]any{"ticket_type": cfg.TicketType, "quantity": cfg.Quantity})

	started := time.Now()
	status, kind, err := reserve(client, cfg, token, key, body)
	m.observe(time.Since(started))
	if err != nil {
		m.failures.Add(1)
		return
	}

	switch status {
	case http.StatusCreated:
		m.created.Add(1)
		m.ticketsSold.Add(int64(cfg.Quantity))
		if cfg.Replay {
			// The same key must hand back the original booking without selling again
			if again, _, err := reserve(client, cfg, token, key, body); err == nil && again == http.StatusOK {
				m.replayed.Add(1)
			} else {
				m.failures.Add(1)
			}
		}
	case http.StatusConflict, http.StatusServiceUnavailable:
		if kind == "INSUFFICIENT_INVENTORY" {
			m.soldOut.Add(1)
		} else {
			m.conflicts.Add(1)
		}
	case http.StatusTooManyRequests:
		m.rateLimited.Add(1)
	default:
		m.failures.Add(1)
	}
}

func reserve(client *http.Client, cfg Config, token, key string, body []byte) (int, string, error) {
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/events/%s/bookings", cfg.Host, cfg.EventID), bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", key)

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}
	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	return resp.StatusCode, eb.Errors.Kind, nil
}

func registerBuyers(client *http.Client, cfg Config) ([]string, error) {
	run := uuid.NewString()[:8]
	tokens := make([]string, 0, cfg.Buyers)
	for i := 0; i < cfg.Buyers; i++ {
		payload := map[string]string{
			"first_name": "Load",
			"last_name":  "Tester",
			"email":      fmt.Sprintf("load-%s-%d@eventbook.dev", run, i),
			"password":   "loadtest123",
		}
		var auth authData
		if err := postJSON(client, cfg.Host+"/auth/register", payload, &auth); err != nil {
			return nil, fmt.Errorf("register buyer %d: %w", i, err)
		}
		tokens = append(tokens, auth.AccessToken)
	}
	return tokens, nil
}

func postJSON(client *http.Client, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func fetchEvent(client *http.Client, cfg Config) (*eventData, error) {
	resp, err := client.Get(fmt.Sprintf("%s/events/%s", cfg.Host, cfg.EventID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var event eventData
	if err := decode(resp, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func decode(resp *http.Response, out any) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d: %s", resp.StatusCode, env.Message)
	}
	return json.Unmarshal(env.Data, out)
}

func poolState(event *eventData, name string) (capacity, remaining int, ok bool) {
	for _, tt := range event.TicketTypes {
		if tt.Name == name {
			return tt.Capacity, tt.RemainingQuantity, true
		}
	}
	return 0, 0, false
}
