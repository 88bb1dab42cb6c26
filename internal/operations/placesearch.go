package operations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"query-orchestrator/internal/common/errors"
)

const (
	IDPlaceSearch = "place-search"

	DefaultPlacesIndex = "places"
	defaultSearchSize  = 20
)

// PlaceSearch runs full-text place queries against an Elasticsearch index.
type PlaceSearch struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewPlaceSearch(client *elasticsearch.Client, index string) *PlaceSearch {
	if index == "" {
		index = DefaultPlacesIndex
	}
	return &PlaceSearch{client: client, index: index, size: defaultSearchSize}
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			ID     string                 `json:"_id"`
			Score  *float64               `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Call expects {query, categories, locations}. Categories filter on the
// category keyword; locations boost matches on city and address.
func (p *PlaceSearch) Call(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	body, err := json.Marshal(buildPlaceQuery(
		stringParam(params, "query"),
		stringsParam(params, "categories"),
		stringsParam(params, "locations"),
	))
	if err != nil {
		return nil, fmt.Errorf("encode place query: %w", err)
	}

	size := p.size
	req := esapi.SearchRequest{
		Index: []string{p.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return nil, p.failed(err, true)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := fmt.Errorf("search %s: %s", p.index, res.Status())
		return nil, p.failed(err, res.StatusCode == 429 || res.StatusCode >= 500)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, p.failed(fmt.Errorf("decode search response: %w", err), false)
	}

	places := make([]interface{}, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		place := make(map[string]interface{}, len(hit.Source)+1)
		for k, v := range hit.Source {
			place[k] = v
		}
		if _, ok := place["id"]; !ok {
			place["id"] = hit.ID
		}
		places = append(places, place)
	}

	return map[string]interface{}{
		"total":  parsed.Hits.Total.Value,
		"took":   parsed.Took,
		"places": places,
	}, nil
}

func buildPlaceQuery(text string, categories, locations []string) map[string]interface{} {
	must := []interface{}{}
	if text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"name^3", "category^2", "description", "address"},
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(categories) > 0 {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"terms": map[string]interface{}{"category": categories}},
		}
	}
	if len(locations) > 0 {
		should := make([]interface{}, 0, len(locations)*2)
		for _, loc := range locations {
			should = append(should,
				map[string]interface{}{"match_phrase": map[string]interface{}{"city": loc}},
				map[string]interface{}{"match_phrase": map[string]interface{}{"address": loc}},
			)
		}
		boolQuery["should"] = should
	}

	return map[string]interface{}{"query": map[string]interface{}{"bool": boolQuery}}
}

// failed reports a search failure. Transport errors and 429/5xx responses stay
// retryable; the index is kept in the error details.
func (p *PlaceSearch) failed(err error, transient bool) error {
	if transient {
		err = &TransientError{Operation: IDPlaceSearch, Err: err}
	}
	searchErr := errors.NewSearchQueryFailedError(p.index, err)
	searchErr.Retryable = transient
	return searchErr
}
