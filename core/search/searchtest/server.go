// Package searchtest provides an in-memory Elasticsearch REST endpoint for tests.
package searchtest

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

type document struct {
	seq    int
	source map[string]any
}

type scroll struct {
	ids  []string
	docs map[string]map[string]any
	pos  int
	size int
}

// Server speaks the subset of the REST API used by search.ElasticSink.
type Server struct {
	*httptest.Server
	ClusterName string

	mu        sync.Mutex
	seq       int
	indices   map[string]map[string]*document
	scrolls   map[string]*scroll
	rejected  map[string]bool
	bulkCalls int
	bulkSizes []int
	cleared   int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		ClusterName: "elasticsearch",
		indices:     make(map[string]map[string]*document),
		scrolls:     make(map[string]*scroll),
		rejected:    make(map[string]bool),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Reject makes index operations for id fail with a mapping error.
func (s *Server) Reject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[id] = true
}

// Seed stores a document directly.
func (s *Server) Seed(index, id string, source map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(index, id, source)
}

// Doc returns a stored document source.
func (s *Server) Doc(index, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.indices[index][id]
	if !ok {
		return nil, false
	}
	return d.source, true
}

// IDs returns the sorted ids of the documents of class, or of all documents when class is empty.
func (s *Server) IDs(index, class string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, d := range s.indices[index] {
		if class == "" || d.source["@class"] == class {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasIndex reports whether the index exists.
func (s *Server) HasIndex(index string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indices[index]
	return ok
}

// BulkCalls returns the number of bulk requests received.
func (s *Server) BulkCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkCalls
}

// BulkSizes returns the number of actions in each bulk request received.
func (s *Server) BulkSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.bulkSizes...)
}

// ClearedScrolls returns the number of clear-scroll requests received.
func (s *Server) ClearedScrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

func (s *Server) put(index, id string, source map[string]any) {
	docs, ok := s.indices[index]
	if !ok {
		docs = make(map[string]*document)
		s.indices[index] = docs
	}
	s.seq++
	if existing, ok := docs[id]; ok {
		existing.source = source
		return
	}
	docs[id] = &document{seq: s.seq, source: source}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	s.mu.Lock()
	defer s.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case path == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"cluster_name": s.ClusterName,
			"version":      map[string]any{"number": "8.17.0"},
		})
	case path == "_bulk":
		s.bulk(w, r)
	case path == "_search/scroll" && r.Method == http.MethodDelete:
		s.cleared++
		writeJSON(w, http.StatusOK, map[string]any{"succeeded": true})
	case path == "_search/scroll":
		s.scrollNext(w, r)
	case strings.HasSuffix(path, "/_search"):
		s.search(w, r, strings.TrimSuffix(path, "/_search"))
	case r.Method == http.MethodDelete && !strings.Contains(path, "/"):
		if _, ok := s.indices[path]; !ok {
			writeIndexNotFound(w, path)
			return
		}
		delete(s.indices, path)
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"type": "illegal_argument_exception", "reason": "unsupported " + r.Method + " " + r.URL.Path},
		})
	}
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	s.bulkCalls++
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 64<<20)

	var items []map[string]any
	hasErrors := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var meta map[string]struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		}
		if err := json.Unmarshal(line, &meta); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "parse_exception", "reason": err.Error()}})
			return
		}
		for action, m := range meta {
			item := map[string]any{"_index": m.Index, "_id": m.ID}
			switch action {
			case "index":
				if !scanner.Scan() {
					writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"type": "parse_exception", "reason": "missing source"}})
					return
				}
				var source map[string]any
				_ = json.Unmarshal(scanner.Bytes(), &source)
				if s.rejected[m.ID] {
					hasErrors = true
					item["status"] = http.StatusBadRequest
					item["error"] = map[string]any{"type": "mapper_parsing_exception", "reason": "rejected " + m.ID}
					break
				}
				_, exists := s.indices[m.Index][m.ID]
				s.put(m.Index, m.ID, source)
				item["status"] = http.StatusCreated
				item["result"] = "created"
				if exists {
					item["status"] = http.StatusOK
					item["result"] = "updated"
				}
			case "delete":
				if _, ok := s.indices[m.Index][m.ID]; ok {
					delete(s.indices[m.Index], m.ID)
					item["status"] = http.StatusOK
					item["result"] = "deleted"
				} else {
					item["status"] = http.StatusNotFound
					item["result"] = "not_found"
				}
			}
			items = append(items, map[string]any{action: item})
		}
	}
	s.bulkSizes = append(s.bulkSizes, len(items))
	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, index string) {
	docs, ok := s.indices[index]
	if !ok {
		writeIndexNotFound(w, index)
		return
	}

	var body struct {
		Query struct {
			Bool struct {
				Should []struct {
					Term map[string]string `json:"term"`
				} `json:"should"`
			} `json:"bool"`
		} `json:"query"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	class := ""
	for _, clause := range body.Query.Bool.Should {
		if v, ok := clause.Term["@class"]; ok {
			class = v
		}
	}

	var matched []*struct {
		id  string
		doc *document
	}
	for id, d := range docs {
		if class == "" || d.source["@class"] == class {
			matched = append(matched, &struct {
				id  string
				doc *document
			}{id, d})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].doc.seq < matched[j].doc.seq })

	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size <= 0 {
		size = 10
	}
	sc := &scroll{size: size, docs: make(map[string]map[string]any, len(matched))}
	for _, m := range matched {
		sc.ids = append(sc.ids, m.id)
		sc.docs[m.id] = m.doc.source
	}
	id := "scroll-" + strconv.Itoa(len(s.scrolls)+1)
	s.scrolls[id] = sc
	s.writePage(w, id, sc)
}

func (s *Server) scrollNext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScrollID string `json:"scroll_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	sc, ok := s.scrolls[body.ScrollID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"type": "search_context_missing_exception", "reason": "no search context found"},
		})
		return
	}
	s.writePage(w, body.ScrollID, sc)
}

func (s *Server) writePage(w http.ResponseWriter, id string, sc *scroll) {
	end := min(sc.pos+sc.size, len(sc.ids))
	hits := make([]map[string]any, 0, end-sc.pos)
	for _, docID := range sc.ids[sc.pos:end] {
		hits = append(hits, map[string]any{
			"_id":     docID,
			"_source": map[string]any{"@class": sc.docs[docID]["@class"]},
		})
	}
	sc.pos = end
	writeJSON(w, http.StatusOK, map[string]any{
		"_scroll_id": id,
		"hits":       map[string]any{"total": map[string]any{"value": len(sc.ids)}, "hits": hits},
	})
}

func writeIndexNotFound(w http.ResponseWriter, index string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":  map[string]any{"type": "index_not_found_exception", "reason": "no such index [" + index + "]"},
		"status": http.StatusNotFound,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
