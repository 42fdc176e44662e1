package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	boxd "github.com/lnbitsbox/boxd/pkg"
)

// apiClient talks to the boxd admin API.
type apiClient struct {
	http *resty.Client
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newAPIClient(baseURL string) *apiClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &apiClient{http: c}
}

func (c *apiClient) check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	if e, ok := resp.Error().(*apiError); ok {
		if e.Error != "" {
			return errors.New(e.Error)
		}
		if e.Message != "" {
			return errors.New(e.Message)
		}
	}
	return fmt.Errorf("request failed: %s", resp.Status())
}

// login exchanges the admin password for a session token. An empty
// password skips login, which works against a box in dev mode.
func (c *apiClient) login(password string) error {
	if password == "" {
		return nil
	}
	var out struct {
		Token string `json:"token"`
	}
	err := c.check(c.http.R().
		SetBody(map[string]string{"password": password}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/box/api/login"))
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.http.SetAuthToken(out.Token)
	return nil
}

func (c *apiClient) scan() ([]boxd.ScanResult, error) {
	var out struct {
		Networks []boxd.ScanResult `json:"networks"`
	}
	err := c.check(c.http.R().SetResult(&out).SetError(&apiError{}).Post("/box/api/wifi/scan"))
	return out.Networks, err
}

func (c *apiClient) connect(ssid, password string) error {
	return c.check(c.http.R().
		SetBody(map[string]string{"ssid": ssid, "password": password}).
		SetError(&apiError{}).
		Post("/box/api/wifi/connect"))
}

func (c *apiClient) connectStatus() (boxd.ConnectionAttempt, error) {
	var out boxd.ConnectionAttempt
	err := c.check(c.http.R().SetResult(&out).SetError(&apiError{}).Get("/box/api/wifi/connect/status"))
	return out, err
}

// waitForAttempt polls the attempt status until it is terminal or the
// timeout passes.
func (c *apiClient) waitForAttempt(interval, timeout time.Duration, progress func(boxd.ConnectionAttempt)) (boxd.ConnectionAttempt, error) {
	deadline := time.Now().Add(timeout)
	for {
		attempt, err := c.connectStatus()
		if err != nil {
			return attempt, err
		}
		progress(attempt)
		if attempt.Status.Terminal() {
			return attempt, nil
		}
		if time.Now().After(deadline) {
			return attempt, errors.New("timed out waiting for the connection attempt")
		}
		time.Sleep(interval)
	}
}

type statsResponse struct {
	Current boxd.StatsSample `json:"current"`
}

func (c *apiClient) stats() (boxd.StatsSample, error) {
	var out statsResponse
	err := c.check(c.http.R().SetResult(&out).SetError(&apiError{}).Get("/box/api/stats"))
	return out.Current, err
}

func (c *apiClient) network() (boxd.NetworkInfo, error) {
	var out boxd.NetworkInfo
	err := c.check(c.http.R().SetResult(&out).SetError(&apiError{}).Get("/box/api/network"))
	return out, err
}
