package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	apiURL       = flag.String("api", "http://localhost:8000", "Ticketing service base URL")
	redisURL     = flag.String("redis", "", "Redis address (host:port) for store stats, empty to skip")
	redisPass    = flag.String("password", "", "Redis password")
	numUsers     = flag.Int("users", 100, "Number of users to simulate")
	roles        = flag.String("roles", "premium,standard,guest", "Roles assigned round-robin")
	batchSize    = flag.Int("batch-size", 20, "Number of users registered concurrently")
	joinRate     = flag.Duration("join-rate", 10*time.Millisecond, "Pause between batches (0 for maximum speed)")
	pollInterval = flag.Duration("poll-interval", 2*time.Second, "Interval between link polls")
	timeout      = flag.Duration("timeout", 2*time.Minute, "Give up waiting for links after this long")
)

type simUser struct {
	Username string
	Role     string
	Token    string
	Link     string
}

type apiResponse struct {
	Message     string `json:"message"`
	Link        string `json:"link"`
	BearerToken string `json:"bearer_token"`
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	flag.Parse()

	roleList := strings.Split(*roles, ",")
	if *numUsers <= 0 || len(roleList) == 0 || *batchSize <= 0 {
		fmt.Println("Error: --users and --batch-size must be positive and --roles non-empty")
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()[:8]
	users := registerUsers(ctx, runID, roleList)
	fmt.Printf("\n✅ Registered and logged in %d users (run %s)\n", len(users), runID)

	requested, duplicates := requestLinks(ctx, users)
	fmt.Printf("📨 Link requests accepted: %d, duplicates rejected: %d\n", requested, duplicates)
	if duplicates != requested {
		fmt.Println("⚠️  Every user sent two requests; expected one duplicate per accepted request")
	}

	waitForLinks(ctx, users)
	redeemLinks(ctx, users)

	if *redisURL != "" {
		printStoreStats(ctx, runID)
	}
}

func registerUsers(ctx context.Context, runID string, roleList []string) []*simUser {
	users := make([]*simUser, 0, *numUsers)
	var mu sync.Mutex

	fmt.Printf("\n🚀 Registering %d users in batches of %d...\n", *numUsers, *batchSize)
	start := time.Now()

	for batchStart := 0; batchStart < *numUsers; batchStart += *batchSize {
		batchEnd := min(batchStart+*batchSize, *numUsers)

		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			u := &simUser{
				Username: fmt.Sprintf("sim-%s-%d", runID, i+1),
				Role:     strings.TrimSpace(roleList[i%len(roleList)]),
			}
			wg.Go(func() {
				if err := registerAndLogin(ctx, u); err != nil {
					fmt.Printf("❌ %s: %v\n", u.Username, err)
					return
				}
				mu.Lock()
				users = append(users, u)
				mu.Unlock()
			})
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
		if *joinRate > 0 {
			time.Sleep(*joinRate)
		}
	}

	fmt.Printf("⏱  Registration took %s\n", time.Since(start).Round(time.Millisecond))
	return users
}

func registerAndLogin(ctx context.Context, u *simUser) error {
	password := uuid.NewString()

	body, _ := json.Marshal(map[string]string{
		"username": u.Username,
		"password": password,
		"role":     u.Role,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *apiURL+"/register", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := do(req); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	form := url.Values{"username": {u.Username}, "password": {password}}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, *apiURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	u.Token = resp.BearerToken
	return nil
}

// requestLinks sends every user's request twice, concurrently.
func requestLinks(ctx context.Context, users []*simUser) (requested, duplicates int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, u := range users {
		for range 2 {
			wg.Go(func() {
				resp, err := getAs(ctx, "/request_for_ticketing_link", u.Token)
				if err != nil {
					fmt.Printf("❌ request %s: %v\n", u.Username, err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				switch resp.Message {
				case "link requested":
					requested++
				case "ticket already requested":
					duplicates++
				}
			})
		}
	}
	wg.Wait()

	return requested, duplicates
}

func waitForLinks(ctx context.Context, users []*simUser) {
	fmt.Printf("\n🎬 Polling for links every %v (timeout %v)\n", *pollInterval, *timeout)

	deadline := time.After(*timeout)
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	for {
		ready := 0
		for _, u := range users {
			if u.Link != "" {
				ready++
				continue
			}
			resp, err := getAs(ctx, "/get_ticketing_link", u.Token)
			if err == nil && resp.Link != "" {
				u.Link = resp.Link
				ready++
			}
		}

		fmt.Printf("📊 Links ready: %d/%d\n", ready, len(users))
		if ready == len(users) {
			return
		}

		select {
		case <-ctx.Done():
			fmt.Println("🛑 Interrupted")
			return
		case <-deadline:
			fmt.Println("⏰ Timed out waiting for links, is the rule service running?")
			return
		case <-ticker.C:
		}
	}
}

func redeemLinks(ctx context.Context, users []*simUser) {
	counts := map[string]int{}

	for _, u := range users {
		if u.Link == "" {
			counts["no link"]++
			continue
		}

		i := strings.LastIndex(u.Link, "/buy_ticket/")
		resp, err := getAs(ctx, u.Link[i:], u.Token)
		if err != nil {
			counts["error"]++
			continue
		}

		switch {
		case strings.HasPrefix(resp.Message, "Hello,"):
			counts[u.Role+": welcome"]++
		case strings.HasPrefix(resp.Message, "Page will be available from"):
			counts[u.Role+": scheduled"]++
		case strings.HasPrefix(resp.Message, "Page will be active in"):
			counts[u.Role+": countdown"]++
		default:
			counts[u.Role+": "+resp.Message]++
		}
	}

	fmt.Println("\n🎟  Redemption results:")
	for k, v := range counts {
		fmt.Printf("   %-28s %d\n", k, v)
	}
}

func printStoreStats(ctx context.Context, runID string) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     *redisURL,
		Password: *redisPass,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("Failed to connect to Redis: %v\n", err)
		return
	}

	var pending, activated int
	iter := rdb.Scan(ctx, 0, fmt.Sprintf("ticketing:ticket_link:sim-%s-*", runID), 100).Iterator()
	for iter.Next(ctx) {
		ok, err := rdb.HExists(ctx, iter.Val(), "access_token").Result()
		if err != nil {
			continue
		}
		if ok {
			activated++
		} else {
			pending++
		}
	}
	if err := iter.Err(); err != nil {
		fmt.Printf("Failed to scan ticket links: %v\n", err)
		return
	}

	fmt.Printf("\n🗄  Stored ticket links: %d activated, %d pending\n", activated, pending)
}

func getAs(ctx context.Context, path, token string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *apiURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return do(req)
}

func do(req *http.Request) (*apiResponse, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, out.Message)
	}

	return &out, nil
}
