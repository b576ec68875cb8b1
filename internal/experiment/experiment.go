package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Experiment は宣言的なカオス実験の定義
type Experiment struct {
	Version     string      `json:"version,omitempty" yaml:"version,omitempty"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	SteadyState *Hypothesis `json:"steady-state-hypothesis,omitempty" yaml:"steady-state-hypothesis,omitempty"`
	Method      []Activity  `json:"method,omitempty" yaml:"method,omitempty"`
	Rollbacks   []Activity  `json:"rollbacks,omitempty" yaml:"rollbacks,omitempty"`
}

// Hypothesis は定常状態仮説（実験前後で成立すべきプローブの集合）
type Hypothesis struct {
	Title  string     `json:"title" yaml:"title"`
	Probes []Activity `json:"probes" yaml:"probes"`
}

// Activity はプローブまたはアクション
type Activity struct {
	Type      string     `json:"type" yaml:"type"` // "probe" または "action"
	Name      string     `json:"name" yaml:"name"`
	Tolerance *Tolerance `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Provider  Provider   `json:"provider" yaml:"provider"`
	Pauses    *Pauses    `json:"pauses,omitempty" yaml:"pauses,omitempty"`
}

// Pauses はアクティビティ前後の待機時間（秒）
type Pauses struct {
	Before float64 `json:"before,omitempty" yaml:"before,omitempty"`
	After  float64 `json:"after,omitempty" yaml:"after,omitempty"`
}

// Provider はアクティビティの実行方法
type Provider struct {
	Type string `json:"type" yaml:"type"` // "http" または "service"

	// HTTPプロバイダ
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout float64           `json:"timeout,omitempty" yaml:"timeout,omitempty"` // 秒

	// サービスプロバイダ
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	Action  string `json:"action,omitempty" yaml:"action,omitempty"` // kill/suspend/resume/delay/restart/clear
	Delay   string `json:"delay,omitempty" yaml:"delay,omitempty"`   // delay アクション用
}

// Tolerance はプローブの許容条件
// ステータスコード単体、コードのリスト、または jsonpath 条件を受け付ける
type Tolerance struct {
	Statuses []int  // HTTPステータスコードによる許容
	Path     string // jsonpath 式
	Expect   any    // jsonpath の期待値
}

// jsonpathTolerance は {"type":"jsonpath","path":...,"expect":...} 形式
type jsonpathTolerance struct {
	Type   string `json:"type" yaml:"type"`
	Path   string `json:"path" yaml:"path"`
	Expect any    `json:"expect" yaml:"expect"`
}

// UnmarshalJSON は3形式のtoleranceを受け付ける
func (t *Tolerance) UnmarshalJSON(data []byte) error {
	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		t.Statuses = []int{single}
		return nil
	}

	var list []int
	if err := json.Unmarshal(data, &list); err == nil {
		t.Statuses = list
		return nil
	}

	var jp jsonpathTolerance
	if err := json.Unmarshal(data, &jp); err == nil && jp.Type == "jsonpath" {
		t.Path = jp.Path
		t.Expect = jp.Expect
		return nil
	}

	return fmt.Errorf("unsupported tolerance: %s", string(data))
}

// MarshalJSON は正規化した形式で出力する
func (t Tolerance) MarshalJSON() ([]byte, error) {
	if t.Path != "" {
		return json.Marshal(jsonpathTolerance{Type: "jsonpath", Path: t.Path, Expect: t.Expect})
	}
	if len(t.Statuses) == 1 {
		return json.Marshal(t.Statuses[0])
	}
	return json.Marshal(t.Statuses)
}

// UnmarshalYAML は3形式のtoleranceを受け付ける
func (t *Tolerance) UnmarshalYAML(node *yaml.Node) error {
	var single int
	if err := node.Decode(&single); err == nil {
		t.Statuses = []int{single}
		return nil
	}

	var list []int
	if err := node.Decode(&list); err == nil {
		t.Statuses = list
		return nil
	}

	var jp jsonpathTolerance
	if err := node.Decode(&jp); err == nil && jp.Type == "jsonpath" {
		t.Path = jp.Path
		t.Expect = jp.Expect
		return nil
	}

	return fmt.Errorf("unsupported tolerance at line %d", node.Line)
}

// LoadFile は実験定義ファイルを読み込む（拡張子でJSON/YAMLを判定）
func LoadFile(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported experiment format: %s", ext)
	}
}

// ParseJSON はJSON形式の実験定義を解析する
func ParseJSON(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON experiment: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// ParseYAML はYAML形式の実験定義を解析する
func ParseYAML(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to parse YAML experiment: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// Validate は実験定義の妥当性を検証する
func (e *Experiment) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("experiment title is required")
	}

	if e.SteadyState != nil {
		for i, p := range e.SteadyState.Probes {
			if p.Type != "probe" {
				return fmt.Errorf("steady-state activity %d: type must be \"probe\", got %q", i, p.Type)
			}
			if p.Tolerance == nil {
				return fmt.Errorf("steady-state probe %q: tolerance is required", p.Name)
			}
			if err := p.Provider.validate(); err != nil {
				return fmt.Errorf("steady-state probe %q: %w", p.Name, err)
			}
		}
	}

	for _, a := range e.Method {
		if a.Type != "probe" && a.Type != "action" {
			return fmt.Errorf("method activity %q: unknown type %q", a.Name, a.Type)
		}
		if err := a.Provider.validate(); err != nil {
			return fmt.Errorf("method activity %q: %w", a.Name, err)
		}
	}

	for _, a := range e.Rollbacks {
		if a.Type != "action" {
			return fmt.Errorf("rollback %q: type must be \"action\", got %q", a.Name, a.Type)
		}
		if err := a.Provider.validate(); err != nil {
			return fmt.Errorf("rollback %q: %w", a.Name, err)
		}
	}

	return nil
}

func (p Provider) validate() error {
	switch p.Type {
	case "http":
		if p.URL == "" {
			return fmt.Errorf("http provider requires a url")
		}
	case "service":
		if p.Service == "" {
			return fmt.Errorf("service provider requires a service id")
		}
		switch p.Action {
		case "kill", "suspend", "resume", "delay", "restart", "clear":
		default:
			return fmt.Errorf("unknown service action %q", p.Action)
		}
	default:
		return fmt.Errorf("unknown provider type %q", p.Type)
	}
	return nil
}
