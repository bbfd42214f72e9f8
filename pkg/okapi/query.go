package okapi

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryParams represents query parameters accepted by list and watch
// requests.
type QueryParams struct {
	// LabelSelector restricts the result to resources whose labels match
	// the selector expression, e.g. "env=prod,tier!=cache".
	LabelSelector string

	// FieldSelector restricts the result by resource field values, e.g.
	// "status.phase=Running".
	FieldSelector string

	// ResourceVersion requests the collection state at or after the given
	// version. Watch requests use it as the resume point.
	ResourceVersion string

	// Watch asks the server to stream change events instead of returning
	// a one-shot collection.
	Watch bool

	// Limit caps the number of items returned in one page.
	Limit int

	// Continue resumes a paginated list from the token returned on the
	// previous page.
	Continue string

	// TimeoutSeconds bounds how long the server holds the request open.
	TimeoutSeconds int

	// Extra carries parameters with no dedicated field. Values are joined
	// with commas, matching the selector convention.
	Extra map[string][]string
}

// NewQueryParams creates a new QueryParams instance.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Extra: make(map[string][]string),
	}
}

// WithLabelSelector sets the label selector expression.
func (q *QueryParams) WithLabelSelector(selector string) *QueryParams {
	q.LabelSelector = selector

	return q
}

// WithFieldSelector sets the field selector expression.
func (q *QueryParams) WithFieldSelector(selector string) *QueryParams {
	q.FieldSelector = selector

	return q
}

// WithResourceVersion sets the collection version to read or resume from.
func (q *QueryParams) WithResourceVersion(version string) *QueryParams {
	q.ResourceVersion = version

	return q
}

// WithWatch marks the request as a streaming watch.
func (q *QueryParams) WithWatch() *QueryParams {
	q.Watch = true

	return q
}

// WithLimit caps the page size.
func (q *QueryParams) WithLimit(limit int) *QueryParams {
	q.Limit = limit

	return q
}

// WithContinue resumes pagination from a continue token.
func (q *QueryParams) WithContinue(token string) *QueryParams {
	q.Continue = token

	return q
}

// WithTimeout bounds the server-side request duration in seconds.
func (q *QueryParams) WithTimeout(seconds int) *QueryParams {
	q.TimeoutSeconds = seconds

	return q
}

// WithExtra appends values for a parameter with no dedicated field.
// Repeated calls for the same key accumulate.
func (q *QueryParams) WithExtra(key string, values ...string) *QueryParams {
	if q.Extra == nil {
		q.Extra = make(map[string][]string)
	}

	q.Extra[key] = append(q.Extra[key], values...)

	return q
}

// ToValues converts the parameters to url.Values for use in requests.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}

	if q == nil {
		return values
	}

	if q.LabelSelector != "" {
		values.Set("labelSelector", q.LabelSelector)
	}

	if q.FieldSelector != "" {
		values.Set("fieldSelector", q.FieldSelector)
	}

	if q.ResourceVersion != "" {
		values.Set("resourceVersion", q.ResourceVersion)
	}

	if q.Watch {
		values.Set("watch", "true")
	}

	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.Continue != "" {
		values.Set("continue", q.Continue)
	}

	if q.TimeoutSeconds > 0 {
		values.Set("timeoutSeconds", strconv.Itoa(q.TimeoutSeconds))
	}

	for key, vals := range q.Extra {
		if len(vals) > 0 {
			values.Set(key, strings.Join(vals, ","))
		}
	}

	return values
}
