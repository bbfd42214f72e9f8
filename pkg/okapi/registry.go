package okapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Verb is an operation a resource endpoint supports.
type Verb string

const (
	VerbGet    Verb = "get"
	VerbList   Verb = "list"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
	VerbWatch  Verb = "watch"
	VerbProxy  Verb = "proxy"
)

// API prefixes. Kubernetes resources are served under "api", Origin
// resources under "oapi".
const (
	PrefixKubernetes = "api"
	PrefixOrigin     = "oapi"
)

// Endpoint describes one resource collection the API serves.
type Endpoint struct {
	// Name is the canonical lowercase plural, e.g. "pods".
	Name string

	// Kind is the object kind carried in payloads, e.g. "Pod".
	Kind string

	// Prefix selects the API group path segment, "api" or "oapi".
	Prefix string

	// Namespaced marks resources scoped to a namespace. Cluster-scoped
	// resources ignore the namespace in path resolution.
	Namespaced bool

	// LegacyName is the plural used by v1beta1 and v1beta2 when it differs
	// from Name, e.g. "minions" for nodes. Empty means no rename.
	LegacyName string

	// Verbs lists the operations the endpoint supports.
	Verbs []Verb

	// Subresources lists path suffixes addressable under an item, e.g.
	// "instantiate" for build configs.
	Subresources []string
}

// Supports reports whether the endpoint allows the given verb.
func (e Endpoint) Supports(verb Verb) bool {
	for _, v := range e.Verbs {
		if v == verb {
			return true
		}
	}

	return false
}

// HasSubresource reports whether the endpoint serves the given subresource.
func (e Endpoint) HasSubresource(name string) bool {
	for _, s := range e.Subresources {
		if s == name {
			return true
		}
	}

	return false
}

var (
	crudVerbs  = []Verb{VerbGet, VerbList, VerbCreate, VerbUpdate, VerbDelete, VerbWatch}
	nodeVerbs  = []Verb{VerbGet, VerbList, VerbCreate, VerbUpdate, VerbDelete, VerbWatch, VerbProxy}
	tokenVerbs = []Verb{VerbGet, VerbList, VerbDelete, VerbWatch}
)

// builtinEndpoints is the resource table the default registry starts from.
func builtinEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "pods", Kind: "Pod", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},
		{Name: "services", Kind: "Service", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},
		{Name: "replicationcontrollers", Kind: "ReplicationController", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},
		{Name: "nodes", Kind: "Node", Prefix: PrefixKubernetes, LegacyName: "minions", Verbs: nodeVerbs},
		{Name: "events", Kind: "Event", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},
		{Name: "endpoints", Kind: "Endpoints", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},
		{Name: "namespaces", Kind: "Namespace", Prefix: PrefixKubernetes, Verbs: crudVerbs},
		{Name: "secrets", Kind: "Secret", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},
		{Name: "resourcequotas", Kind: "ResourceQuota", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},
		{Name: "limitranges", Kind: "LimitRange", Prefix: PrefixKubernetes, Namespaced: true, Verbs: crudVerbs},

		{Name: "builds", Kind: "Build", Prefix: PrefixOrigin, Namespaced: true, Verbs: crudVerbs},
		{Name: "buildconfigs", Kind: "BuildConfig", Prefix: PrefixOrigin, Namespaced: true, Verbs: crudVerbs, Subresources: []string{"instantiate"}},
		{Name: "deploymentconfigs", Kind: "DeploymentConfig", Prefix: PrefixOrigin, Namespaced: true, Verbs: crudVerbs},
		{Name: "imagestreams", Kind: "ImageStream", Prefix: PrefixOrigin, Namespaced: true, Verbs: crudVerbs},
		{Name: "routes", Kind: "Route", Prefix: PrefixOrigin, Namespaced: true, Verbs: crudVerbs},
		{Name: "projects", Kind: "Project", Prefix: PrefixOrigin, Verbs: crudVerbs},
		{Name: "users", Kind: "User", Prefix: PrefixOrigin, Verbs: crudVerbs},
		{Name: "oauthaccesstokens", Kind: "OAuthAccessToken", Prefix: PrefixOrigin, Verbs: tokenVerbs},
	}
}

// Registry maps resource names to endpoint descriptions. Lookups are
// case-insensitive and accept legacy plurals.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	aliases   map[string]string
}

// NewRegistry creates a registry populated with the built-in resource table.
func NewRegistry() *Registry {
	registry := &Registry{
		endpoints: make(map[string]Endpoint),
		aliases:   make(map[string]string),
	}

	for _, endpoint := range builtinEndpoints() {
		registry.register(endpoint)
	}

	return registry
}

// Register adds or replaces an endpoint. The name must be non-empty and the
// prefix one of the known API prefixes.
func (r *Registry) Register(endpoint Endpoint) error {
	if endpoint.Name == "" {
		return &ParameterError{Param: "name", Detail: "endpoint name must not be empty"}
	}

	if endpoint.Prefix != PrefixKubernetes && endpoint.Prefix != PrefixOrigin {
		return &ParameterError{Param: "prefix", Detail: fmt.Sprintf("unknown API prefix %q", endpoint.Prefix)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(endpoint)

	return nil
}

func (r *Registry) register(endpoint Endpoint) {
	name := strings.ToLower(endpoint.Name)
	endpoint.Name = name
	r.endpoints[name] = endpoint

	if endpoint.LegacyName != "" {
		r.aliases[strings.ToLower(endpoint.LegacyName)] = name
	}
}

// Lookup resolves a resource name to its endpoint. Names are matched
// case-insensitively; legacy plurals resolve to their canonical endpoint.
func (r *Registry) Lookup(resource string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(resource))
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}

	endpoint, ok := r.endpoints[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}

	return endpoint, nil
}

// LookupKind resolves an object kind, e.g. "Pod", to its endpoint.
func (r *Registry) LookupKind(kind string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, endpoint := range r.endpoints {
		if strings.EqualFold(endpoint.Kind, kind) {
			return endpoint, nil
		}
	}

	return Endpoint{}, fmt.Errorf("%w: kind %q", ErrUnknownResource, kind)
}

// Endpoints returns all registered endpoints sorted by name.
func (r *Registry) Endpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Endpoint, 0, len(r.endpoints))
	for _, endpoint := range r.endpoints {
		result = append(result, endpoint)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}
