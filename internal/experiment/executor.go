package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"chaos-shop/internal/deployment"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	maxProbeBodyBytes  = 1 << 20
)

// Executor は実験アクティビティを実行する
type Executor struct {
	deployment *deployment.Deployment
	client     *http.Client
}

// NewExecutor は新しいExecutorを作成する
// d が nil の場合、serviceプロバイダのアクティビティはエラーになる
func NewExecutor(d *deployment.Deployment) *Executor {
	return &Executor{
		deployment: d,
		client:     &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Run はアクティビティを1つ実行する
// プローブの場合は tolerance を評価して ok を返す
// アクションの場合は実行成功で ok=true となる
func (e *Executor) Run(ctx context.Context, a Activity) (output any, ok bool, err error) {
	if a.Pauses != nil && a.Pauses.Before > 0 {
		if err := sleep(ctx, secondsToDuration(a.Pauses.Before)); err != nil {
			return nil, false, err
		}
	}

	switch a.Provider.Type {
	case "http":
		output, ok, err = e.runHTTP(ctx, a)
	case "service":
		output, ok, err = e.runService(a)
	default:
		return nil, false, fmt.Errorf("unknown provider type %q", a.Provider.Type)
	}
	if err != nil {
		return output, false, err
	}

	if a.Pauses != nil && a.Pauses.After > 0 {
		if err := sleep(ctx, secondsToDuration(a.Pauses.After)); err != nil {
			return output, ok, err
		}
	}

	return output, ok, nil
}

// httpResult はHTTPアクティビティの実行結果
type httpResult struct {
	Status int    `json:"status"`
	Body   string `json:"body,omitempty"`
}

func (e *Executor) runHTTP(ctx context.Context, a Activity) (any, bool, error) {
	method := strings.ToUpper(a.Provider.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if a.Provider.Body != "" {
		body = strings.NewReader(a.Provider.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.Provider.URL, body)
	if err != nil {
		return nil, false, fmt.Errorf("invalid request for %q: %w", a.Name, err)
	}
	for k, v := range a.Provider.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := e.client
	if a.Provider.Timeout > 0 {
		client = &http.Client{Timeout: secondsToDuration(a.Provider.Timeout)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request for %q failed: %w", a.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("reading response for %q: %w", a.Name, err)
	}

	result := httpResult{Status: resp.StatusCode, Body: string(raw)}

	if a.Type == "probe" && a.Tolerance != nil {
		ok, err := evaluateTolerance(*a.Tolerance, result)
		return result, ok, err
	}
	return result, true, nil
}

func (e *Executor) runService(a Activity) (any, bool, error) {
	if e.deployment == nil {
		return nil, false, fmt.Errorf("no deployment available for service activity %q", a.Name)
	}

	svc, exists := e.deployment.Get(a.Provider.Service)
	if !exists {
		return nil, false, fmt.Errorf("service %q not found", a.Provider.Service)
	}

	switch a.Provider.Action {
	case "kill":
		if err := svc.Stop(); err != nil {
			return nil, false, err
		}
	case "suspend":
		if err := svc.Suspend(); err != nil {
			return nil, false, err
		}
	case "resume":
		if err := svc.Resume(); err != nil {
			return nil, false, err
		}
	case "delay":
		d, err := time.ParseDuration(a.Provider.Delay)
		if err != nil {
			return nil, false, fmt.Errorf("invalid delay %q: %w", a.Provider.Delay, err)
		}
		svc.SetDelay(d)
	case "restart":
		if err := svc.Start(context.Background()); err != nil {
			return nil, false, err
		}
	case "clear":
		svc.Faults().Clear()
	default:
		return nil, false, fmt.Errorf("unknown service action %q", a.Provider.Action)
	}

	return a.Provider.Action, true, nil
}

// evaluateTolerance はプローブ結果がtoleranceを満たすか判定する
func evaluateTolerance(t Tolerance, result httpResult) (bool, error) {
	if len(t.Statuses) > 0 {
		return slices.Contains(t.Statuses, result.Status), nil
	}

	if t.Path != "" {
		var doc any
		if err := json.Unmarshal([]byte(result.Body), &doc); err != nil {
			return false, fmt.Errorf("response body is not JSON: %w", err)
		}
		got, err := jsonpath.Get(t.Path, doc)
		if err != nil {
			return false, nil // パスが無いことは許容条件の不成立として扱う
		}
		return valuesEqual(got, t.Expect), nil
	}

	return false, fmt.Errorf("empty tolerance")
}

// valuesEqual は数値型の違い（JSONのfloat64とYAMLのint）を吸収して比較する
func valuesEqual(got, want any) bool {
	if gf, gok := asFloat(got); gok {
		if wf, wok := asFloat(want); wok {
			return gf == wf
		}
		return false
	}
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
