package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	httpclient "query-orchestrator/internal/common/http"
)

// Operation IDs served over HTTP.
const (
	IDWeather       = "weather"
	IDEvents        = "events"
	IDGeocode       = "geocode"
	IDIPGeolocation = "ip-geolocation"
	IDPhotos        = "photos"
	IDWebSearch     = "web-search"
)

// HTTPConfig describes one JSON-over-HTTP data source.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// QueryBuilder turns operation params into the request's query string.
type QueryBuilder func(params map[string]interface{}) (url.Values, error)

// HTTPOperation issues a GET against BaseURL+path and returns the decoded
// JSON body.
type HTTPOperation struct {
	id     string
	url    string
	apiKey string
	build  QueryBuilder
	client *httpclient.Client
}

func NewHTTPOperation(id, path string, cfg HTTPConfig, build QueryBuilder, opts ...httpclient.Option) *HTTPOperation {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPOperation{
		id:     id,
		url:    strings.TrimRight(cfg.BaseURL, "/") + path,
		apiKey: cfg.APIKey,
		build:  build,
		client: httpclient.NewClient(cfg.Timeout, opts...),
	}
}

func (o *HTTPOperation) Call(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	query, err := o.build(params)
	if err != nil {
		return nil, err
	}
	if o.apiKey != "" && query.Get("key") == "" {
		query.Set("key", o.apiKey)
	}

	body, err := o.client.GetJSON(ctx, o.url, query)
	if err != nil {
		return nil, err
	}

	var result interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", o.id, err)
	}
	return result, nil
}

func NewWeather(cfg HTTPConfig, opts ...httpclient.Option) *HTTPOperation {
	return NewHTTPOperation(IDWeather, "/weather", cfg, locationQuery, opts...)
}

func NewGeocode(cfg HTTPConfig, opts ...httpclient.Option) *HTTPOperation {
	return NewHTTPOperation(IDGeocode, "/geocode", cfg, locationQuery, opts...)
}

func NewEvents(cfg HTTPConfig, opts ...httpclient.Option) *HTTPOperation {
	return NewHTTPOperation(IDEvents, "/events", cfg, func(params map[string]interface{}) (url.Values, error) {
		q, err := locationQuery(params)
		if err != nil {
			return nil, err
		}
		if tf := stringParam(params, "timeframe"); tf != "" {
			q.Set("timeframe", tf)
		}
		return q, nil
	}, opts...)
}

func NewIPGeolocation(cfg HTTPConfig, opts ...httpclient.Option) *HTTPOperation {
	return NewHTTPOperation(IDIPGeolocation, "/lookup", cfg, func(params map[string]interface{}) (url.Values, error) {
		ip, err := requireString(params, "ip")
		if err != nil {
			return nil, err
		}
		return url.Values{"ip": {ip}}, nil
	}, opts...)
}

func NewPhotos(cfg HTTPConfig, opts ...httpclient.Option) *HTTPOperation {
	return NewHTTPOperation(IDPhotos, "/photos", cfg, func(params map[string]interface{}) (url.Values, error) {
		q := stringParam(params, "query")
		if q == "" {
			q = stringParam(params, "location")
		}
		if q == "" {
			return nil, fmt.Errorf("%w: query", ErrMissingParameter)
		}
		return url.Values{"q": {q}}, nil
	}, opts...)
}

// NewWebSearch queries a custom search endpoint. The engine ID is sent as cx
// next to the API key.
func NewWebSearch(cfg HTTPConfig, engineID string, opts ...httpclient.Option) *HTTPOperation {
	return NewHTTPOperation(IDWebSearch, "", cfg, func(params map[string]interface{}) (url.Values, error) {
		q, err := requireString(params, "query")
		if err != nil {
			return nil, err
		}
		values := url.Values{"q": {q}}
		if engineID != "" {
			values.Set("cx", engineID)
		}
		return values, nil
	}, opts...)
}

func locationQuery(params map[string]interface{}) (url.Values, error) {
	loc, err := requireString(params, "location")
	if err != nil {
		return nil, err
	}
	return url.Values{"q": {loc}}, nil
}
