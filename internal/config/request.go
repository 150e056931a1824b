package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnalysisRequest describes one analysis run: which snapshot files to load
// and which analyses to perform on them.
type AnalysisRequest struct {
	Name   string `yaml:"name"`
	Output string `yaml:"output"`

	// Input snapshot files, JSON arrays of the corresponding model types.
	Inputs struct {
		Assets          string `yaml:"assets"`
		Vulnerabilities string `yaml:"vulnerabilities"`
		Indicators      string `yaml:"indicators"`
		Threats         string `yaml:"threats"`
		Events          string `yaml:"events"`
		Entities        string `yaml:"entities"`
		AttackPaths     string `yaml:"attack_paths"`
		Attacks         string `yaml:"attacks"`
		RiskHistory     string `yaml:"risk_history"`
	} `yaml:"inputs"`

	Analyses struct {
		Confidence  bool `yaml:"confidence"`
		Correlation bool `yaml:"correlation"`
		Risk        bool `yaml:"risk"`
		AttackPaths bool `yaml:"attack_paths"`
		Predictive  bool `yaml:"predictive"`
	} `yaml:"analyses"`

	// Per-run overrides; zero values fall back to engine defaults.
	Parameters struct {
		TemporalWindowHours int     `yaml:"temporal_window_hours"`
		ForecastDays        int     `yaml:"forecast_days"`
		AnomalyThresholdStd float64 `yaml:"anomaly_threshold_std"`
	} `yaml:"parameters"`
}

// ValidatorFunc is a function that validates an analysis request.
type ValidatorFunc func(*AnalysisRequest) error

// RequestParser handles parsing of analysis request YAML files.
type RequestParser struct {
	strictMode bool
	validators []ValidatorFunc
}

// RequestParserOption configures the parser.
type RequestParserOption func(*RequestParser)

// WithStrictMode enables strict parsing mode.
func WithStrictMode(strict bool) RequestParserOption {
	return func(p *RequestParser) {
		p.strictMode = strict
	}
}

// WithValidator adds a custom validator.
func WithValidator(v ValidatorFunc) RequestParserOption {
	return func(p *RequestParser) {
		p.validators = append(p.validators, v)
	}
}

// NewRequestParser creates a new analysis request parser.
func NewRequestParser(opts ...RequestParserOption) *RequestParser {
	p := &RequestParser{
		strictMode: true,
		validators: []ValidatorFunc{validateRequest},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ParseFile parses an analysis request from a file path.
func (p *RequestParser) ParseFile(path string) (*AnalysisRequest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open request file: %w", err)
	}
	defer file.Close()

	req, err := p.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return req, nil
}

// Parse parses an analysis request from a reader.
func (p *RequestParser) Parse(r io.Reader) (*AnalysisRequest, error) {
	var req AnalysisRequest

	decoder := yaml.NewDecoder(r)
	if p.strictMode {
		decoder.KnownFields(true)
	}

	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("yaml decode error: %w", err)
	}

	p.setDefaults(&req)

	for _, validator := range p.validators {
		if err := validator(&req); err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
	}

	return &req, nil
}

// ParseString parses an analysis request from a YAML string.
func (p *RequestParser) ParseString(content string) (*AnalysisRequest, error) {
	return p.Parse(strings.NewReader(content))
}

// setDefaults sets default values for the request.
func (p *RequestParser) setDefaults(req *AnalysisRequest) {
	if req.Name == "" {
		req.Name = "analysis"
	}
	if req.Output == "" {
		req.Output = "report.json"
	}
	if req.Parameters.TemporalWindowHours == 0 {
		req.Parameters.TemporalWindowHours = 24
	}
	if req.Parameters.ForecastDays == 0 {
		req.Parameters.ForecastDays = 30
	}
	if req.Parameters.AnomalyThresholdStd == 0 {
		req.Parameters.AnomalyThresholdStd = 2.0
	}
}

// validateRequest checks that every enabled analysis has the inputs it needs.
func validateRequest(req *AnalysisRequest) error {
	if req.Analyses.Correlation && req.Inputs.Indicators == "" && req.Inputs.Events == "" {
		return fmt.Errorf("correlation analysis requires indicators or events input")
	}
	if req.Analyses.Risk && req.Inputs.Vulnerabilities == "" {
		return fmt.Errorf("risk analysis requires vulnerabilities input")
	}
	if req.Analyses.AttackPaths && req.Inputs.AttackPaths == "" {
		return fmt.Errorf("attack path analysis requires attack_paths input")
	}
	if req.Parameters.TemporalWindowHours < 0 {
		return fmt.Errorf("temporal_window_hours must not be negative")
	}
	if req.Parameters.ForecastDays < 0 {
		return fmt.Errorf("forecast_days must not be negative")
	}
	return nil
}
