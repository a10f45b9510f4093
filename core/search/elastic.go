package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ElasticConfig describes how to reach one Elasticsearch cluster.
type ElasticConfig struct {
	// Address is the base URL of the REST API.
	Address string
	// ClusterName must match the cluster's name when set.
	ClusterName string
	// Username and Password enable basic auth when set.
	Username string
	Password string
	// RequestTimeout bounds every request. Zero means 30 seconds.
	RequestTimeout time.Duration
}

// ElasticSink implements Sink on the Elasticsearch REST API.
//
// Single-document index and delete calls go through the bulk endpoint so
// record identities never have to be escaped into a URL path.
type ElasticSink struct {
	client    *elasticsearch.Client
	transport *http.Transport
	cfg       ElasticConfig
	logger    *zap.Logger
}

var _ Sink = (*ElasticSink)(nil)

// NewElasticSink connects to the cluster and verifies its name.
func NewElasticSink(ctx context.Context, cfg ElasticConfig, logger *zap.Logger) (*ElasticSink, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{cfg.Address},
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	s := &ElasticSink{
		client:    client,
		transport: transport,
		cfg:       cfg,
		logger:    logger.With(zap.String("search_address", cfg.Address)),
	}
	if err := s.Ping(ctx); err != nil {
		transport.CloseIdleConnections()
		return nil, err
	}
	return s, nil
}

// Ping implements Sink. It also checks the cluster name.
func (s *ElasticSink) Ping(ctx context.Context) error {
	var info struct {
		ClusterName string `json:"cluster_name"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := s.do(ctx, esapi.InfoRequest{}, &info); err != nil {
		return fmt.Errorf("search engine unreachable at %s: %w", s.cfg.Address, err)
	}
	if s.cfg.ClusterName != "" && info.ClusterName != s.cfg.ClusterName {
		return fmt.Errorf("search engine at %s belongs to cluster %q, expected %q",
			s.cfg.Address, info.ClusterName, s.cfg.ClusterName)
	}
	s.logger.Debug("Search engine reachable",
		zap.String("cluster_name", info.ClusterName),
		zap.String("version", info.Version.Number))
	return nil
}

// Index implements Sink.
func (s *ElasticSink) Index(ctx context.Context, index, docType, id string, body any) error {
	return s.single(ctx, Operation{Type: OpIndex, Index: index, DocType: docType, ID: id, Body: body})
}

// Delete implements Sink.
func (s *ElasticSink) Delete(ctx context.Context, index, docType, id string) error {
	return s.single(ctx, Operation{Type: OpDelete, Index: index, DocType: docType, ID: id})
}

func (s *ElasticSink) single(ctx context.Context, op Operation) error {
	results, err := s.Bulk(ctx, []Operation{op}, false)
	if err != nil {
		return err
	}
	if len(results) == 1 && results[0].Err != nil {
		return results[0].Err
	}
	return nil
}

type bulkItem struct {
	ID     string         `json:"_id"`
	Status int            `json:"status"`
	Result string         `json:"result"`
	Error  *errorResponse `json:"error"`
}

type errorResponse struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Bulk implements Sink.
func (s *ElasticSink) Bulk(ctx context.Context, ops []Operation, refresh bool) ([]ItemResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	body, err := EncodeBulk(ops)
	if err != nil {
		return nil, err
	}

	req := esapi.BulkRequest{Body: bytes.NewReader(body)}
	if refresh {
		req.Refresh = "true"
	}

	var resp struct {
		Errors bool                  `json:"errors"`
		Items  []map[string]bulkItem `json:"items"`
	}
	if err := s.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) != len(ops) {
		return nil, fmt.Errorf("bulk response has %d items for %d operations", len(resp.Items), len(ops))
	}

	results := make([]ItemResult, len(ops))
	for i, entry := range resp.Items {
		var item bulkItem
		for _, v := range entry {
			item = v
		}
		results[i] = ItemResult{ID: ops[i].ID, Status: item.Status}
		switch {
		case ops[i].Type == OpDelete && item.Status == http.StatusNotFound:
			// already gone
		case item.Error != nil:
			results[i].Err = &ResponseError{Status: item.Status, Type: item.Error.Type, Reason: item.Error.Reason}
		case item.Status >= 300:
			results[i].Err = &ResponseError{Status: item.Status, Type: item.Result}
		}
	}
	return results, nil
}

// EncodeBulk renders operations as a bulk request body.
func EncodeBulk(ops []Operation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range ops {
		meta := map[string]map[string]string{
			op.Type.String(): {"_index": op.Index, "_id": op.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if op.Type == OpIndex {
			if err := enc.Encode(op.Body); err != nil {
				return nil, fmt.Errorf("failed to encode document %s: %w", op.ID, err)
			}
		}
	}
	return buf.Bytes(), nil
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r searchResponse) page() ScrollPage {
	page := ScrollPage{ScrollID: r.ScrollID, Hits: make([]Hit, 0, len(r.Hits.Hits))}
	for _, h := range r.Hits.Hits {
		docType, _ := h.Source["@class"].(string)
		page.Hits = append(page.Hits, Hit{ID: h.ID, DocType: docType})
	}
	return page
}

// TypeQuery matches the documents of one class, or every document when docType is empty.
func TypeQuery(docType string) map[string]any {
	if docType == "" {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"term": map[string]any{"@class": docType}},
				map[string]any{"term": map[string]any{"@class.keyword": docType}},
			},
			"minimum_should_match": 1,
		},
	}
}

// Scroll implements Sink.
func (s *ElasticSink) Scroll(ctx context.Context, index, docType string, size int, keepAlive time.Duration) (ScrollPage, error) {
	query, err := json.Marshal(map[string]any{
		"query":   TypeQuery(docType),
		"sort":    []string{"_doc"},
		"_source": []string{"@class"},
	})
	if err != nil {
		return ScrollPage{}, err
	}

	var resp searchResponse
	err = s.do(ctx, esapi.SearchRequest{
		Index:  []string{index},
		Body:   bytes.NewReader(query),
		Scroll: keepAlive,
		Size:   &size,
	}, &resp)
	if err != nil {
		return ScrollPage{}, err
	}
	return resp.page(), nil
}

// ScrollNext implements Sink.
func (s *ElasticSink) ScrollNext(ctx context.Context, scrollID string, keepAlive time.Duration) (ScrollPage, error) {
	body, err := json.Marshal(map[string]string{
		"scroll":    fmt.Sprintf("%ds", int(keepAlive.Seconds())),
		"scroll_id": scrollID,
	})
	if err != nil {
		return ScrollPage{}, err
	}

	var resp searchResponse
	if err := s.do(ctx, esapi.ScrollRequest{Body: bytes.NewReader(body)}, &resp); err != nil {
		return ScrollPage{}, err
	}
	return resp.page(), nil
}

// ClearScroll implements Sink.
func (s *ElasticSink) ClearScroll(ctx context.Context, scrollID string) error {
	if scrollID == "" {
		return nil
	}
	body, err := json.Marshal(map[string][]string{"scroll_id": {scrollID}})
	if err != nil {
		return err
	}
	err = s.do(ctx, esapi.ClearScrollRequest{Body: bytes.NewReader(body)}, nil)
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// DeleteIndex implements Sink.
func (s *ElasticSink) DeleteIndex(ctx context.Context, index string) error {
	return s.do(ctx, esapi.IndicesDeleteRequest{Index: []string{index}}, nil)
}

// Close implements Sink.
func (s *ElasticSink) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

type request interface {
	Do(ctx context.Context, transport esapi.Transport) (*esapi.Response, error)
}

func (s *ElasticSink) do(ctx context.Context, req request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode search engine response: %w", err)
	}
	return nil
}

func decodeError(res *esapi.Response) error {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	data, _ := io.ReadAll(res.Body)
	respErr := &ResponseError{Status: res.StatusCode}
	if json.Unmarshal(data, &body) == nil && len(body.Error) > 0 {
		var detail errorResponse
		if json.Unmarshal(body.Error, &detail) == nil {
			respErr.Type, respErr.Reason = detail.Type, detail.Reason
		} else {
			var reason string
			_ = json.Unmarshal(body.Error, &reason)
			respErr.Reason = reason
		}
	}
	if respErr.Reason == "" {
		respErr.Reason = http.StatusText(res.StatusCode)
	}
	return respErr
}
