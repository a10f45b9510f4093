package policy

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"

	"essync/core/utils"

	"github.com/goccy/go-json"
)

const (
	// DefaultHost is used when the document has no es.host.
	DefaultHost = "localhost"
	// DefaultPort is used when the document has no es.port.
	DefaultPort = 9300
	// DefaultClusterName is used when the document has no es.clusterName.
	DefaultClusterName = "elasticsearch"

	restPort = 9200
)

// Endpoint locates the search cluster of one source database.
type Endpoint struct {
	Host        string
	Port        int
	ClusterName string
	// URL overrides Host and Port when set.
	URL string
}

// Address returns the base URL of the REST API.
// Port 9300 is the node transport port; it is served on 9200 instead.
func (e Endpoint) Address() string {
	if e.URL != "" {
		return strings.TrimRight(e.URL, "/")
	}
	port := e.Port
	if port == DefaultPort {
		port = restPort
	}
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(port))
}

// Document is a parsed per-database policy document.
type Document struct {
	Policy   *Configuration
	Endpoint Endpoint
}

// Default returns the policy used when a database has no document: sync
// everything to the default endpoint.
func Default() *Document {
	return &Document{
		Policy:   NewConfiguration(nil, nil, nil, nil),
		Endpoint: Endpoint{Host: DefaultHost, Port: DefaultPort, ClusterName: DefaultClusterName},
	}
}

// Parse reads a JSON policy document. Every key may be written nested
// ({"exclude":{"classes":[...]}}) or dotted ({"exclude.classes":[...]}).
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid policy document: %w", err)
	}

	includeClasses, err := fieldMap(raw, "include.classes")
	if err != nil {
		return nil, err
	}
	includeClusters, err := fieldMap(raw, "include.clusters")
	if err != nil {
		return nil, err
	}
	excludeClasses, _ := lookup(raw, "exclude.classes")
	excludeClusters, _ := lookup(raw, "exclude.clusters")

	doc := Default()
	doc.Policy = NewConfiguration(includeClasses, includeClusters,
		utils.ToStrings(excludeClasses), utils.ToStrings(excludeClusters))

	if v, ok := lookup(raw, "es.host"); ok && utils.ToString(v) != "" {
		doc.Endpoint.Host = utils.ToString(v)
	}
	if v, ok := lookup(raw, "es.port"); ok {
		doc.Endpoint.Port = utils.ToInt(v, DefaultPort)
	}
	if v, ok := lookup(raw, "es.clusterName"); ok && utils.ToString(v) != "" {
		doc.Endpoint.ClusterName = utils.ToString(v)
	}
	if v, ok := lookup(raw, "es.url"); ok {
		doc.Endpoint.URL = utils.ToString(v)
	}
	return doc, nil
}

func lookup(doc map[string]any, path string) (any, bool) {
	if v, ok := doc[path]; ok {
		return v, v != nil
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	sub, ok := doc[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(sub, rest)
}

func fieldMap(doc map[string]any, path string) (map[string][]string, error) {
	v, ok := lookup(doc, path)
	if !ok {
		return nil, nil
	}
	entries, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid policy document: %s must be an object", path)
	}
	out := make(map[string][]string, len(entries))
	for name, fields := range entries {
		out[name] = utils.ToStrings(fields)
	}
	return out, nil
}
