package system

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/utils"
)

// SparkClient asks the spark sidecar for the wallet balance.
type SparkClient struct {
	client     *resty.Client
	apiKeyFile string
}

func NewSparkClient(config boxd.ServerConfig) SparkClient {
	client := resty.New()
	client.SetBaseURL(config.Spark.URL)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(5 * time.Second)
	return SparkClient{client: client, apiKeyFile: config.Spark.APIKeyFile}
}

type sparkBalanceResponse struct {
	BalanceMsat *int64 `json:"balance_msat"`
	BalanceSats *int64 `json:"balance_sats"`
}

// Balance returns nil when the sidecar is unreachable or answers with
// something unexpected.
func (t SparkClient) Balance(ctx context.Context) *boxd.SparkBalance {
	var body sparkBalanceResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", t.apiKey()).
		SetResult(&body).
		Post("/v1/balance")
	if err != nil || !resp.IsSuccess() {
		return nil
	}

	switch {
	case body.BalanceMsat != nil:
		return &boxd.SparkBalance{Balance: *body.BalanceMsat / 1000}
	case body.BalanceSats != nil:
		return &boxd.SparkBalance{Balance: *body.BalanceSats}
	}
	return nil
}

// The key file holds a single KEY=value line written by the wizard.
func (t SparkClient) apiKey() string {
	contents, err := utils.ReadTrimmed(t.apiKeyFile)
	if err != nil {
		return ""
	}
	_, key, ok := strings.Cut(contents, "=")
	if !ok {
		return ""
	}
	return key
}

var _ boxd.LNbitsChecker = LNbitsChecker{}

type LNbitsChecker struct {
	client *resty.Client
}

func NewLNbitsChecker(config boxd.ServerConfig) LNbitsChecker {
	client := resty.New()
	client.SetBaseURL(config.LNbits.URL)
	client.SetTimeout(3 * time.Second)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return LNbitsChecker{client: client}
}

// Status maps the HTTP answer of the LNbits front page: caddy answers
// 502 while LNbits is still booting.
func (t LNbitsChecker) Status(ctx context.Context) boxd.LNbitsStatus {
	resp, err := t.client.R().SetContext(ctx).Get("/")
	if err != nil {
		return boxd.LNbitsStatus{Status: "stopped"}
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return boxd.LNbitsStatus{Status: "running"}
	case http.StatusBadGateway:
		return boxd.LNbitsStatus{Status: "starting"}
	default:
		return boxd.LNbitsStatus{Status: "error", Code: resp.StatusCode()}
	}
}

// OnionAddress reads the hostname file of the tor hidden service.
func OnionAddress(path string) *string {
	addr, err := utils.ReadTrimmed(path)
	if err != nil || addr == "" {
		return nil
	}
	return &addr
}
