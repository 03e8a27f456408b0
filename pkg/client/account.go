package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// AccountService handles coin ledger API calls
type AccountService struct {
	client *Client
}

// Session starts a session: the account is created on first use and topped
// up once per day
func (s *AccountService) Session(ctx context.Context) (*Session, error) {
	var session Session
	if err := s.client.doRequest(ctx, "POST", "/api/v1/session", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Get retrieves the account
func (s *AccountService) Get(ctx context.Context) (*Account, error) {
	var acct Account
	if err := s.client.doRequest(ctx, "GET", "/api/v1/me/account", nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// WatchAd claims the ad reward
func (s *AccountService) WatchAd(ctx context.Context) (*RewardResult, error) {
	return s.claim(ctx, "ad")
}

// ShareReward claims the share reward
func (s *AccountService) ShareReward(ctx context.Context) (*RewardResult, error) {
	return s.claim(ctx, "share")
}

func (s *AccountService) claim(ctx context.Context, kind string) (*RewardResult, error) {
	var result RewardResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/me/rewards/"+kind, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Spend debits amount coins
func (s *AccountService) Spend(ctx context.Context, amount int64) (*Account, error) {
	var acct Account
	body := map[string]int64{"amount": amount}
	if err := s.client.doRequest(ctx, "POST", "/api/v1/me/spend", body, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Transactions lists ledger entries, newest first. limit <= 0 uses the server default.
func (s *AccountService) Transactions(ctx context.Context, limit int) ([]Transaction, error) {
	path := "/api/v1/me/transactions"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	var txs []Transaction
	if err := s.client.doRequest(ctx, "GET", path, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Watch follows the account stream and calls onChange with the current state
// and every later one. It blocks until ctx is done (returning nil) or the
// stream fails.
func (s *AccountService) Watch(ctx context.Context, onChange func(*Account)) error {
	req, err := s.client.newRequest(ctx, "GET", "/api/v1/me/account/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// the request timeout would cut the stream off
	stream := &http.Client{
		Transport:     s.client.httpClient.Transport,
		CheckRedirect: s.client.httpClient.CheckRedirect,
		Jar:           s.client.httpClient.Jar,
	}
	resp, err := stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	err = readEvents(resp.Body, func(event string, data []byte) error {
		if event != "" && event != "account" {
			return nil
		}
		var acct Account
		if err := json.Unmarshal(data, &acct); err != nil {
			return fmt.Errorf("failed to parse event: %w", err)
		}
		onChange(&acct)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readEvents parses a text/event-stream body. Comment lines are heartbeats
// and are skipped; multi-line data fields are joined with newlines.
func readEvents(r io.Reader, fn func(event string, data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		event string
		data  []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if err := fn(event, []byte(strings.Join(data, "\n"))); err != nil {
					return err
				}
			}
			event, data = "", data[:0]
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
