package okapi

import (
	"net/url"
	"strings"
)

// API versions the client understands.
const (
	VersionV1Beta1 = "v1beta1"
	VersionV1Beta2 = "v1beta2"
	VersionV1Beta3 = "v1beta3"
	VersionV1      = "v1"
)

// ProxyMarker is the reserved path segment that routes a request through the
// API server to the resource's own endpoint.
const ProxyMarker = "proxy"

// legacyResourceNames maps canonical plurals to the names the v1beta1 and
// v1beta2 APIs served them under.
var legacyResourceNames = map[string]string{
	"nodes": "minions",
}

// ValidVersions returns the API versions accepted by ResolvePath.
func ValidVersions() []string {
	return []string{VersionV1Beta1, VersionV1Beta2, VersionV1Beta3, VersionV1}
}

// IsLegacyVersion reports whether the version uses the pre-v1beta3
// conventions: renamed plurals and namespace carried as a query parameter.
func IsLegacyVersion(version string) bool {
	return version == VersionV1Beta1 || version == VersionV1Beta2
}

func validVersion(version string) bool {
	for _, v := range ValidVersions() {
		if v == version {
			return true
		}
	}

	return false
}

// PathOptions names the inputs of one path resolution.
type PathOptions struct {
	// Prefix is the API group segment, "api" or "oapi".
	Prefix string

	// Version is the API version segment.
	Version string

	// Resource is the collection name. It may carry a leading "proxy/"
	// marker to route through the API server proxy.
	Resource string

	// Name addresses one item within the collection. Empty targets the
	// collection itself.
	Name string

	// Subresource is a path suffix under the item, e.g. "instantiate".
	Subresource string

	// Namespace scopes the request. Ignored when empty.
	Namespace string
}

// ResolvePath maps the options to a canonical request path plus any query
// values the version's conventions require. The result has a leading slash,
// no adjacent or trailing slashes, and at most one proxy marker. Resolution
// is deterministic and has no side effects.
//
// Legacy versions (v1beta1, v1beta2) rename "nodes" to "minions" and carry
// the namespace as a "namespace" query parameter. Later versions lower-case
// the resource and scope it with "namespaces/{ns}" path segments.
func ResolvePath(opts PathOptions) (string, url.Values, error) {
	query := url.Values{}

	if strings.TrimSpace(opts.Resource) == "" {
		return "", nil, &ParameterError{Param: "resource", Detail: "resource name is required"}
	}

	if !validVersion(opts.Version) {
		return "", nil, &VersionError{Version: opts.Version, Valid: ValidVersions()}
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = PrefixKubernetes
	}

	resource, proxied := splitProxyMarker(opts.Resource)

	segments := []string{prefix, opts.Version}
	if proxied {
		segments = append(segments, ProxyMarker)
	}

	if IsLegacyVersion(opts.Version) {
		if name, ok := legacyResourceNames[strings.ToLower(resource)]; ok {
			resource = name
		}

		if opts.Namespace != "" {
			query.Set("namespace", opts.Namespace)
		}

		segments = append(segments, resource)
	} else {
		if opts.Namespace != "" {
			segments = append(segments, "namespaces", opts.Namespace)
		}

		segments = append(segments, strings.ToLower(resource))
	}

	segments = append(segments, opts.Name, opts.Subresource)

	return NormalizePath(strings.Join(segments, "/")), query, nil
}

// splitProxyMarker strips any leading proxy markers from the resource and
// reports whether one was present.
func splitProxyMarker(resource string) (string, bool) {
	rest := strings.Trim(resource, "/")
	proxied := false

	for {
		trimmed := strings.TrimPrefix(rest, ProxyMarker+"/")
		if trimmed == rest {
			break
		}

		proxied = true
		rest = strings.TrimLeft(trimmed, "/")
	}

	if rest == ProxyMarker {
		proxied = true
		rest = ""
	}

	return rest, proxied
}

// NormalizePath canonicalizes a resolved path: exactly one leading slash, no
// adjacent or trailing slashes, and runs of proxy markers collapsed to one.
// Applying it to an already-normalized path returns the path unchanged.
func NormalizePath(path string) string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		if part == ProxyMarker && len(segments) > 0 && segments[len(segments)-1] == ProxyMarker {
			continue
		}

		segments = append(segments, part)
	}

	return "/" + strings.Join(segments, "/")
}
